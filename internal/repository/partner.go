package repository

import (
	"context"
	"errors"

	"waypost/internal/models"

	"gorm.io/gorm"
)

// PartnerProfile is the kind-tagged view of a provider or consumer row used
// by callers that do not care which of the two tables matched.
type PartnerProfile struct {
	ID               uint
	UserID           uint
	OrganizationName string
	Kind             models.PartnerKind
	Active           bool
}

// PartnerRepository defines read operations over the two profile tables.
type PartnerRepository interface {
	GetByAPIKeyID(ctx context.Context, apiKeyID uint) (*PartnerProfile, error)
	GetProviderByUserID(ctx context.Context, userID uint) (*models.WalletProvider, error)
	GetConsumerByUserID(ctx context.Context, userID uint) (*models.DataConsumer, error)
}

type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository returns a new PartnerRepository implementation.
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

// GetByAPIKeyID resolves the owning profile for a credential, checking the
// provider table first, then the consumer table.
func (r *partnerRepository) GetByAPIKeyID(ctx context.Context, apiKeyID uint) (*PartnerProfile, error) {
	var provider models.WalletProvider
	err := r.db.WithContext(ctx).Where("api_key_id = ?", apiKeyID).First(&provider).Error
	if err == nil {
		return &PartnerProfile{
			ID:               provider.ID,
			UserID:           provider.UserID,
			OrganizationName: provider.OrganizationName,
			Kind:             models.PartnerKindWalletProvider,
			Active:           provider.Active,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	var consumer models.DataConsumer
	err = r.db.WithContext(ctx).Where("api_key_id = ?", apiKeyID).First(&consumer).Error
	if err == nil {
		return &PartnerProfile{
			ID:               consumer.ID,
			UserID:           consumer.UserID,
			OrganizationName: consumer.OrganizationName,
			Kind:             models.PartnerKindDataConsumer,
			Active:           consumer.Active,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	return nil, models.NewNotFoundError("Partner profile for API key", apiKeyID)
}

func (r *partnerRepository) GetProviderByUserID(ctx context.Context, userID uint) (*models.WalletProvider, error) {
	var provider models.WalletProvider
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &provider, nil
}

func (r *partnerRepository) GetConsumerByUserID(ctx context.Context, userID uint) (*models.DataConsumer, error) {
	var consumer models.DataConsumer
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&consumer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &consumer, nil
}
