package model

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign. There is no explicit
// "completed" state: a campaign is implicitly done once every one of its
// messages has reached a terminal status.
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type Campaign struct {
	ID            int64          `json:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string         `json:"name"           gorm:"column:name;not null"`
	TemplateID    int64          `json:"template_id"    gorm:"column:template_id;not null;index"`
	ScheduledAt   *time.Time     `json:"scheduled_at"   gorm:"column:scheduled_at"` // nil means immediate
	CreatedBy     int64          `json:"created_by"     gorm:"column:created_by;not null"`
	TotalContacts int            `json:"total_contacts" gorm:"column:total_contacts;not null;default:0"`
	Status        CampaignStatus `json:"status"         gorm:"column:status;not null;default:pending;index"`
	ExecutedAt    *time.Time     `json:"executed_at"    gorm:"column:executed_at"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (Campaign) TableName() string { return "campaigns" }

// CampaignCreateRequest is the input for scheduling a campaign.
type CampaignCreateRequest struct {
	Name        string
	TemplateID  int64
	ScheduledAt *time.Time
	CreatedBy   int64
}

func (p CampaignCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.TemplateID == 0 {
		return errors.New("template_id is required")
	}
	if p.CreatedBy == 0 {
		return errors.New("created_by is required")
	}
	return nil
}

// ImmediateSendRequest is the input for an immediate send. The recipient
// list is pinned to these IDs at call time; the live contact book is not
// consulted.
type ImmediateSendRequest struct {
	TemplateID int64
	ContactIDs []int64
	CreatedBy  int64
}

func (p ImmediateSendRequest) Validate() error {
	if p.TemplateID == 0 {
		return errors.New("template_id is required")
	}
	if len(p.ContactIDs) == 0 {
		return errors.New("contact_ids is required")
	}
	if p.CreatedBy == 0 {
		return errors.New("created_by is required")
	}
	return nil
}

// CampaignProgress is the per-campaign delivery rollup. Percent counts
// terminal-ish outcomes (sent+delivered+failed) against the total.
type CampaignProgress struct {
	Total     int64   `json:"total"`
	Pending   int64   `json:"pending"`
	Sent      int64   `json:"sent"`
	Delivered int64   `json:"delivered"`
	Failed    int64   `json:"failed"`
	Percent   float64 `json:"progress_percentage"`
}

// CampaignSummary is one row of the campaign stats rollup.
type CampaignSummary struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	TotalContacts int       `json:"total_contacts"`
	SentMessages  int64     `json:"sent_messages"`
	Delivered     int64     `json:"delivered"`
	Read          int64     `json:"read"`
	Failed        int64     `json:"failed"`
}
