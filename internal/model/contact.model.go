package model

import "time"

type Contact struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	PhoneNumber string    `json:"phone_number" gorm:"column:phone_number;not null;uniqueIndex"`
	Name        string    `json:"name"         gorm:"column:name"`
	Email       string    `json:"email"        gorm:"column:email"`
	Company     string    `json:"company"      gorm:"column:company"`
	ExtraData   string    `json:"extra_data"   gorm:"column:extra_data"` // JSON object with extension fields
	CreatedBy   int64     `json:"created_by"   gorm:"column:created_by"`
	CreatedAt   time.Time `json:"created_at"   gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (Contact) TableName() string { return "contacts" }

// FieldMap returns the placeholder substitution map for this contact.
// Keys follow the template vocabulary users write in message bodies.
func (c *Contact) FieldMap() map[string]string {
	return map[string]string{
		"nombre":   c.Name,
		"email":    c.Email,
		"empresa":  c.Company,
		"telefono": c.PhoneNumber,
	}
}
