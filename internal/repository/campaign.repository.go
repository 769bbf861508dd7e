package repository

import (
	"context"
	"time"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
)

type CampaignRepository struct {
	db *pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return r.db.Write(ctx).Create(campaign).Error
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := r.db.Read(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetDuePending returns pending campaigns that are ready to start: the
// scheduled time has passed or was never set. Unscheduled campaigns start
// inline on creation, so the sweep only sees them when that inline start
// failed and left the row stranded.
func (r *CampaignRepository) GetDuePending(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	err := r.db.Read(ctx).
		Where("status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)", model.CampaignStatusPending, now).
		Order("created_at").
		Find(&campaigns).Error
	return campaigns, err
}

func (r *CampaignRepository) Start(ctx context.Context, id int64, totalContacts int, executedAt time.Time) error {
	return r.db.Write(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.CampaignStatusRunning,
			"total_contacts": totalContacts,
			"executed_at":    executedAt,
		}).Error
}

func (r *CampaignRepository) SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	return r.db.Write(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// GetStats returns the per-campaign delivery rollup, newest first.
func (r *CampaignRepository) GetStats(ctx context.Context) ([]model.CampaignSummary, error) {
	var rows []model.CampaignSummary
	err := r.db.Read(ctx).Raw(`
		SELECT
			c.id, c.name, c.created_at, c.total_contacts,
			SUM(CASE WHEN m.status IN ('sent','delivered','read') THEN 1 ELSE 0 END) AS sent_messages,
			SUM(CASE WHEN m.status = 'delivered' THEN 1 ELSE 0 END) AS delivered,
			SUM(CASE WHEN m.status = 'read' THEN 1 ELSE 0 END) AS read,
			SUM(CASE WHEN m.status = 'failed' THEN 1 ELSE 0 END) AS failed
		FROM campaigns c
		LEFT JOIN messages m ON m.campaign_id = c.id
		GROUP BY c.id, c.name, c.created_at, c.total_contacts
		ORDER BY c.created_at DESC`).
		Scan(&rows).Error
	return rows, err
}
