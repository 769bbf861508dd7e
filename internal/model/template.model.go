package model

import (
	"errors"
	"time"
)

type Template struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `json:"name"       gorm:"column:name;not null"`
	Content   string    `json:"content"    gorm:"column:content;not null"`
	Variables string    `json:"variables"  gorm:"column:variables"` // JSON array of detected placeholder names
	IsActive  bool      `json:"is_active"  gorm:"column:is_active;not null;default:true;index"`
	CreatedBy int64     `json:"created_by" gorm:"column:created_by"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Template) TableName() string { return "templates" }

type TemplateCreateRequest struct {
	Name      string
	Content   string
	CreatedBy int64
}

func (p TemplateCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Content == "" {
		return errors.New("content is required")
	}
	return nil
}
