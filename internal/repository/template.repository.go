package repository

import (
	"context"
	"encoding/json"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/template"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
)

type TemplateRepository struct {
	db *pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create stores a template with its detected placeholder names.
func (r *TemplateRepository) Create(ctx context.Context, tpl *model.Template) error {
	vars, err := json.Marshal(template.Placeholders(tpl.Content))
	if err != nil {
		return err
	}
	tpl.Variables = string(vars)
	tpl.IsActive = true
	return r.db.Write(ctx).Create(tpl).Error
}

func (r *TemplateRepository) Get(ctx context.Context, id int64) (*model.Template, error) {
	var tpl model.Template
	if err := r.db.Read(ctx).First(&tpl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]model.Template, error) {
	var templates []model.Template
	err := r.db.Read(ctx).Where("is_active = ?", true).Order("id").Find(&templates).Error
	return templates, err
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *model.Template) error {
	vars, err := json.Marshal(template.Placeholders(tpl.Content))
	if err != nil {
		return err
	}
	return r.db.Write(ctx).
		Model(&model.Template{}).
		Where("id = ?", tpl.ID).
		Updates(map[string]interface{}{
			"name":      tpl.Name,
			"content":   tpl.Content,
			"variables": string(vars),
		}).Error
}

// Delete is a soft delete, campaigns referencing the template keep working.
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	return r.db.Write(ctx).
		Model(&model.Template{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
