package repository

import (
	"context"
	"errors"

	"waypost/internal/cache"
	"waypost/internal/models"

	"gorm.io/gorm"
)

// APIKeyRepository defines read-side persistence operations for issued
// credentials. Mutations happen inside service-level transactions, not here.
type APIKeyRepository interface {
	GetActiveByValue(ctx context.Context, value string) (*models.APIKey, error)
	GetLatestByUserID(ctx context.Context, userID uint) (*models.APIKey, error)
	ListWithOwners(ctx context.Context) ([]models.APIKey, error)
}

type apiKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository returns a new APIKeyRepository implementation.
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

// GetActiveByValue resolves a presented secret to its active credential row.
// Successful lookups are cached briefly; the cache entry is invalidated by
// any mutation of the credential.
func (r *apiKeyRepository) GetActiveByValue(ctx context.Context, value string) (*models.APIKey, error) {
	var key models.APIKey
	cacheKey := cache.APIKeyKey(value)

	err := cache.Aside(ctx, cacheKey, &key, cache.APIKeyTTL, func() error {
		if err := r.db.WithContext(ctx).
			Where("key = ? AND active = ?", value, true).
			First(&key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewUnauthorizedError("Invalid or inactive API key")
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepository) GetLatestByUserID(ctx context.Context, userID uint) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &key, nil
}

func (r *apiKeyRepository) ListWithOwners(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&keys).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return keys, nil
}
