package scheduler

import (
	"context"
	"time"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/provider"
)

// Store interfaces the scheduler depends on. The repositories under
// internal/repository satisfy them; tests substitute in-memory fakes.

type CampaignStore interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	// GetDuePending returns pending campaigns that are ready to start: the
	// scheduled time has passed or was never set. Unscheduled campaigns
	// normally start inline, the sweep picks them up only when that inline
	// start failed.
	GetDuePending(ctx context.Context, now time.Time) ([]model.Campaign, error)
	// Start flips a campaign to running, stamps executed_at and records the
	// contact total it was expanded against.
	Start(ctx context.Context, id int64, totalContacts int, executedAt time.Time) error
	SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error
}

type MessageStore interface {
	BulkCreate(ctx context.Context, messages []model.Message) error
	// GetPending returns the dispatch join view: pending messages of running
	// campaigns with retry budget left, oldest first.
	GetPending(ctx context.Context, limit int, maxRetry int) ([]model.PendingMessage, error)
	MarkQueued(ctx context.Context, ids []int64) error
	GetStatus(ctx context.Context, id int64) (model.MessageStatus, error)
	SetSent(ctx context.Context, id int64, providerSID string, at time.Time) error
	// SetFailed records the error and spends one retry unit.
	SetFailed(ctx context.Context, id int64, errorMessage string) error
	// PromoteFailed flips failed messages with retry budget left back to
	// pending, clearing the recorded error, once they have aged past
	// olderThan.
	PromoteFailed(ctx context.Context, maxRetry int, olderThan time.Time) (int64, error)
	// ListAwaitingReconcile returns sent messages carrying a provider SID
	// whose send is older than the grace cutoff.
	ListAwaitingReconcile(ctx context.Context, sentBefore time.Time, limit int) ([]model.Message, error)
	Reconcile(ctx context.Context, id int64, status model.MessageStatus, at time.Time) error
	CancelPending(ctx context.Context, campaignID int64) (int64, error)
	Progress(ctx context.Context, campaignID int64) (*model.CampaignProgress, error)
}

type ContactStore interface {
	List(ctx context.Context) ([]model.Contact, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Contact, error)
	Count(ctx context.Context) (int64, error)
}

type TemplateStore interface {
	Get(ctx context.Context, id int64) (*model.Template, error)
}

type AttachmentStore interface {
	ForTemplate(ctx context.Context, templateID int64) ([]model.Attachment, error)
}

// Provider is the outbound messaging boundary. *provider.Client satisfies it.
type Provider interface {
	Send(ctx context.Context, to string, body string, mediaURLs []string) provider.SendResult
	GetStatus(ctx context.Context, sid string) (string, bool)
	ValidatePhone(raw string) provider.PhoneValidation
}
