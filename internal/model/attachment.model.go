package model

import "time"

type Attachment struct {
	ID         int64     `json:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	TemplateID int64     `json:"template_id" gorm:"column:template_id;not null;index"`
	FileName   string    `json:"file_name"   gorm:"column:file_name;not null"`
	PublicURL  string    `json:"public_url"  gorm:"column:public_url"` // empty when no hosting is configured
	CreatedAt  time.Time `json:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string { return "attachments" }
