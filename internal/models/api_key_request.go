package models

import "time"

// AccessRequestStatus defines lifecycle states for API access requests.
type AccessRequestStatus string

const (
	// AccessRequestStatusPending indicates the request is awaiting review.
	AccessRequestStatusPending AccessRequestStatus = "pending"
	// AccessRequestStatusApproved indicates the request was accepted and provisioned.
	AccessRequestStatusApproved AccessRequestStatus = "approved"
	// AccessRequestStatusRejected indicates the request was denied.
	AccessRequestStatusRejected AccessRequestStatus = "rejected"
)

// ParseAccessRequestStatus validates a raw status string against the three
// allowed lifecycle states.
func ParseAccessRequestStatus(raw string) (AccessRequestStatus, bool) {
	switch AccessRequestStatus(raw) {
	case AccessRequestStatusPending, AccessRequestStatusApproved, AccessRequestStatusRejected:
		return AccessRequestStatus(raw), true
	}
	return "", false
}

// PartnerKind identifies which side of the marketplace a partner joins.
type PartnerKind string

const (
	// PartnerKindWalletProvider is a partner that issues tracking wallets.
	PartnerKindWalletProvider PartnerKind = "wallet_provider"
	// PartnerKindDataConsumer is a partner that reads tracking data.
	PartnerKindDataConsumer PartnerKind = "data_consumer"
)

// OrDefault maps unrecognized or empty kinds to the business default,
// data_consumer. Unknown kinds are not an error at provisioning time.
func (k PartnerKind) OrDefault() PartnerKind {
	if k == PartnerKindWalletProvider {
		return PartnerKindWalletProvider
	}
	return PartnerKindDataConsumer
}

// APIKeyRequest is a user-submitted request for programmatic marketplace
// access as a wallet provider or data consumer.
type APIKeyRequest struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	UserID           uint                `gorm:"not null;index" json:"user_id"`
	User             *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Kind             PartnerKind         `gorm:"type:varchar(32)" json:"kind"`
	OrganizationName string              `gorm:"size:200" json:"organization_name"`
	Organization     string              `gorm:"size:200" json:"organization"`
	Status           AccessRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedByUserID *uint               `json:"reviewed_by_user_id"`
	ReviewedByUser   *User               `gorm:"foreignKey:ReviewedByUserID" json:"reviewed_by_user,omitempty"`
	ReviewedAt       *time.Time          `json:"reviewed_at"`
	RejectionReason  string              `gorm:"type:text" json:"rejection_reason"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
