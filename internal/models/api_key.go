package models

import "time"

// APIKey is an issued API credential. The secret value is minted once at
// creation and never regenerated in place; re-approvals reactivate the
// existing row instead of rotating the secret.
type APIKey struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	User             *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Key              string     `gorm:"size:128;not null;index" json:"key"`
	Name             string     `gorm:"size:200" json:"name"`
	Active           bool       `gorm:"not null;default:false;index" json:"active"`
	RejectionReason  string     `gorm:"type:text" json:"rejection_reason"`
	ReviewedByUserID *uint      `json:"reviewed_by_user_id"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
