package repository

import (
	"context"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
)

type AttachmentRepository struct {
	db *pg.DB
}

func NewAttachmentRepository(db *pg.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return r.db.Write(ctx).Create(attachment).Error
}

func (r *AttachmentRepository) ForTemplate(ctx context.Context, templateID int64) ([]model.Attachment, error) {
	var attachments []model.Attachment
	err := r.db.Read(ctx).Where("template_id = ?", templateID).Order("id").Find(&attachments).Error
	return attachments, err
}
