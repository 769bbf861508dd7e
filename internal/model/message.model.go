package model

import "time"

// MessageStatus is the lifecycle state of a single outbound message.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusCancelled MessageStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are expected.
// A failed message is not terminal until its retry budget is spent,
// but that is a query-level concern, not a status-level one.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case MessageStatusDelivered, MessageStatusRead, MessageStatusCancelled:
		return true
	}
	return false
}

type Message struct {
	ID           int64         `json:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID   int64         `json:"campaign_id"   gorm:"column:campaign_id;not null;index"`
	ContactID    int64         `json:"contact_id"    gorm:"column:contact_id;not null;index"`
	TemplateID   int64         `json:"template_id"   gorm:"column:template_id;not null"`
	Status       MessageStatus `json:"status"        gorm:"column:status;not null;default:pending;index"`
	RetryCount   int           `json:"retry_count"   gorm:"column:retry_count;not null;default:0"`
	ErrorMessage string        `json:"error_message" gorm:"column:error_message"`
	ProviderSID  string        `json:"provider_sid"  gorm:"column:provider_sid;index"`
	CreatedAt    time.Time     `json:"created_at"    gorm:"column:created_at;autoCreateTime"`
	SentAt       *time.Time    `json:"sent_at"       gorm:"column:sent_at"`
	DeliveredAt  *time.Time    `json:"delivered_at"  gorm:"column:delivered_at"`
	ReadAt       *time.Time    `json:"read_at"       gorm:"column:read_at"`
	UpdatedAt    time.Time     `json:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (Message) TableName() string { return "messages" }

// PendingMessage is the dispatch join view: a pending message together with
// the contact and template columns the renderer needs.
type PendingMessage struct {
	ID              int64  `json:"id"`
	CampaignID      int64  `json:"campaign_id"`
	ContactID       int64  `json:"contact_id"`
	TemplateID      int64  `json:"template_id"`
	RetryCount      int    `json:"retry_count"`
	PhoneNumber     string `json:"phone_number"`
	ContactName     string `json:"name"`
	Email           string `json:"email"`
	Company         string `json:"company"`
	ExtraData       string `json:"extra_data"`
	TemplateContent string `json:"template_content"`
}

// MessageStats is the global message rollup.
type MessageStats struct {
	Total     int64 `json:"total"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Read      int64 `json:"read"`
	Failed    int64 `json:"failed"`
}
