package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
)

type MessageRepository struct {
	db *pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) BulkCreate(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.Write(ctx).CreateInBatches(messages, 500).Error
}

// GetPending returns the dispatch view: pending messages of running
// campaigns that still have retry budget, joined with the contact and
// template columns rendering needs. Oldest messages first.
func (r *MessageRepository) GetPending(ctx context.Context, limit int, maxRetry int) ([]model.PendingMessage, error) {
	var rows []model.PendingMessage
	err := r.db.Read(ctx).Raw(`
		SELECT
			m.id, m.campaign_id, m.contact_id, m.template_id, m.retry_count,
			c.phone_number, c.name AS contact_name, c.email, c.company, c.extra_data,
			t.content AS template_content
		FROM messages m
		JOIN campaigns cp ON cp.id = m.campaign_id
		JOIN contacts c ON c.id = m.contact_id
		JOIN templates t ON t.id = m.template_id
		WHERE m.status = ? AND m.retry_count < ? AND cp.status = ?
		ORDER BY m.id
		LIMIT ?`,
		model.MessageStatusPending, maxRetry, model.CampaignStatusRunning, limit).
		Scan(&rows).Error
	return rows, err
}

func (r *MessageRepository) MarkQueued(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Write(ctx).
		Model(&model.Message{}).
		Where("id IN ?", ids).
		Update("status", model.MessageStatusQueued).Error
}

func (r *MessageRepository) GetStatus(ctx context.Context, id int64) (model.MessageStatus, error) {
	var msg model.Message
	err := r.db.Read(ctx).
		Select("status").
		Where("id = ?", id).
		Take(&msg).Error
	if err != nil {
		return "", err
	}
	return msg.Status, nil
}

func (r *MessageRepository) SetSent(ctx context.Context, id int64, providerSID string, at time.Time) error {
	return r.db.Write(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.MessageStatusSent,
			"provider_sid":  providerSID,
			"sent_at":       at,
			"error_message": "",
		}).Error
}

// SetFailed records the error text and spends one retry unit.
func (r *MessageRepository) SetFailed(ctx context.Context, id int64, errorMessage string) error {
	return r.db.Write(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.MessageStatusFailed,
			"error_message": errorMessage,
			"retry_count":   gorm.Expr("retry_count + 1"),
		}).Error
}

// PromoteFailed flips aged-out failed messages with retry budget left back
// to pending, clearing the recorded error, and reports how many it touched.
func (r *MessageRepository) PromoteFailed(ctx context.Context, maxRetry int, olderThan time.Time) (int64, error) {
	res := r.db.Write(ctx).
		Model(&model.Message{}).
		Where("status = ? AND retry_count < ? AND updated_at < ?", model.MessageStatusFailed, maxRetry, olderThan).
		Updates(map[string]interface{}{
			"status":        model.MessageStatusPending,
			"error_message": "",
		})
	return res.RowsAffected, res.Error
}

// ListAwaitingReconcile returns sent messages with a provider SID whose
// send is older than the grace cutoff.
func (r *MessageRepository) ListAwaitingReconcile(ctx context.Context, sentBefore time.Time, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Read(ctx).
		Where("status = ? AND provider_sid <> '' AND sent_at < ?", model.MessageStatusSent, sentBefore).
		Order("sent_at").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) Reconcile(ctx context.Context, id int64, status model.MessageStatus, at time.Time) error {
	updates := map[string]interface{}{"status": status}
	switch status {
	case model.MessageStatusDelivered:
		updates["delivered_at"] = at
	case model.MessageStatusRead:
		updates["read_at"] = at
	}
	return r.db.Write(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CancelPending flips every not-yet-sent message of the campaign to
// cancelled. Messages already at the provider are left alone.
func (r *MessageRepository) CancelPending(ctx context.Context, campaignID int64) (int64, error) {
	res := r.db.Write(ctx).
		Model(&model.Message{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]model.MessageStatus{model.MessageStatusPending, model.MessageStatusQueued}).
		Update("status", model.MessageStatusCancelled)
	return res.RowsAffected, res.Error
}

type progressRow struct {
	Total     int64
	Pending   int64
	Sent      int64
	Delivered int64
	Failed    int64
}

// Progress returns the campaign delivery rollup. Percent counts resolved
// outcomes (sent, delivered, read, failed) against the total.
func (r *MessageRepository) Progress(ctx context.Context, campaignID int64) (*model.CampaignProgress, error) {
	var row progressRow
	err := r.db.Read(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ('pending','queued') THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status IN ('sent','read') THEN 1 ELSE 0 END), 0) AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
		FROM messages
		WHERE campaign_id = ?`, campaignID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	progress := &model.CampaignProgress{
		Total:     row.Total,
		Pending:   row.Pending,
		Sent:      row.Sent,
		Delivered: row.Delivered,
		Failed:    row.Failed,
	}
	if row.Total > 0 {
		progress.Percent = float64(row.Sent+row.Delivered+row.Failed) / float64(row.Total) * 100
	}
	return progress, nil
}

// Stats returns the global message rollup.
func (r *MessageRepository) Stats(ctx context.Context) (*model.MessageStats, error) {
	var stats model.MessageStats
	err := r.db.Read(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0) AS sent,
			COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = 'read' THEN 1 ELSE 0 END), 0) AS read,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
		FROM messages`).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
