package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
)

type ContactRepository struct {
	db *pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return r.db.Write(ctx).Create(contact).Error
}

func (r *ContactRepository) List(ctx context.Context) ([]model.Contact, error) {
	var contacts []model.Contact
	err := r.db.Read(ctx).Order("id").Find(&contacts).Error
	return contacts, err
}

func (r *ContactRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var contacts []model.Contact
	err := r.db.Read(ctx).Where("id IN ?", ids).Order("id").Find(&contacts).Error
	return contacts, err
}

func (r *ContactRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Read(ctx).Model(&model.Contact{}).Count(&n).Error
	return n, err
}

// BulkUpsert inserts contacts, updating the profile columns of rows whose
// phone number already exists. Returns how many rows were written.
func (r *ContactRepository) BulkUpsert(ctx context.Context, contacts []model.Contact) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	res := r.db.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "company", "extra_data", "updated_at"}),
	}).CreateInBatches(contacts, 500)
	return res.RowsAffected, res.Error
}
