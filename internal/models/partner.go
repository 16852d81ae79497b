package models

import "time"

// WalletProvider is the business-profile record for a partner that issues
// tracking wallets. APIKeyID is nil until provisioning completes.
type WalletProvider struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	User             *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrganizationName string    `gorm:"size:200" json:"organization_name"`
	APIKeyID         *uint     `gorm:"index" json:"api_key_id"`
	APIKey           *APIKey   `gorm:"foreignKey:APIKeyID" json:"api_key,omitempty"`
	Active           bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DataConsumer is the business-profile record for a partner that reads
// tracking data. Structurally parallel to WalletProvider.
type DataConsumer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	User             *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrganizationName string    `gorm:"size:200" json:"organization_name"`
	APIKeyID         *uint     `gorm:"index" json:"api_key_id"`
	APIKey           *APIKey   `gorm:"foreignKey:APIKeyID" json:"api_key,omitempty"`
	Active           bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
