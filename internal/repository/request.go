package repository

import (
	"context"
	"errors"

	"waypost/internal/models"

	"gorm.io/gorm"
)

// AccessRequestRepository defines persistence operations for access requests.
// Status transitions are owned by the review service and run in their own
// transaction; this repository only covers submission and read paths.
type AccessRequestRepository interface {
	Create(ctx context.Context, req *models.APIKeyRequest) error
	GetByID(ctx context.Context, id uint) (*models.APIKeyRequest, error)
	ListByStatus(ctx context.Context, status models.AccessRequestStatus) ([]models.APIKeyRequest, error)
	ListByUser(ctx context.Context, userID uint) ([]models.APIKeyRequest, error)
	HasPending(ctx context.Context, userID uint, kind models.PartnerKind) (bool, error)
}

type accessRequestRepository struct {
	db *gorm.DB
}

// NewAccessRequestRepository returns a new AccessRequestRepository implementation.
func NewAccessRequestRepository(db *gorm.DB) AccessRequestRepository {
	return &accessRequestRepository{db: db}
}

func (r *accessRequestRepository) Create(ctx context.Context, req *models.APIKeyRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *accessRequestRepository) GetByID(ctx context.Context, id uint) (*models.APIKeyRequest, error) {
	var req models.APIKeyRequest
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("ReviewedByUser").
		First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("API key request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *accessRequestRepository) ListByStatus(ctx context.Context, status models.AccessRequestStatus) ([]models.APIKeyRequest, error) {
	var requests []models.APIKeyRequest
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("ReviewedByUser").
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *accessRequestRepository) ListByUser(ctx context.Context, userID uint) ([]models.APIKeyRequest, error) {
	var requests []models.APIKeyRequest
	if err := r.db.WithContext(ctx).
		Preload("ReviewedByUser").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

func (r *accessRequestRepository) HasPending(ctx context.Context, userID uint, kind models.PartnerKind) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.APIKeyRequest{}).
		Where("user_id = ? AND kind = ? AND status = ?", userID, kind, models.AccessRequestStatusPending).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
