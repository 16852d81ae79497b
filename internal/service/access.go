// Package service contains the business logic for the access-request
// lifecycle: review transitions, credential provisioning, revocation, and
// duplicate reconciliation.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"waypost/internal/cache"
	"waypost/internal/middleware"
	"waypost/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnknownOrganization is the display name used when a request carries no
// organization information at all.
const UnknownOrganization = "Unknown Organization"

// AccessService drives the access-request state machine and owns every
// mutation of the api_keys, wallet_providers, and data_consumers tables.
// The database handle is injected; the service holds no global state.
type AccessService struct {
	db *gorm.DB
}

// NewAccessService returns a new AccessService using the given database handle.
func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// ReviewResult describes the outcome of a review call.
type ReviewResult struct {
	Request     *models.APIKeyRequest
	APIKeyID    uint
	ProfileID   uint
	KeysRevoked int64
}

// ReconcileReport describes the outcome of a reconciliation run.
type ReconcileReport struct {
	DuplicatesFound int `json:"duplicatesFound"`
	KeysRemoved     int `json:"keysRemoved"`
}

// resolveOrganizationName returns the display organization for a request.
// Precedence: the request's organization_name, then the generic organization
// field, then the fixed placeholder.
func resolveOrganizationName(req *models.APIKeyRequest) string {
	if name := strings.TrimSpace(req.OrganizationName); name != "" {
		return name
	}
	if name := strings.TrimSpace(req.Organization); name != "" {
		return name
	}
	return UnknownOrganization
}

// generateAPIKeySecret mints a new high-entropy credential secret. Secrets
// are issued once; reactivation never regenerates them.
func generateAPIKeySecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}
	return "wp_" + hex.EncodeToString(buf), nil
}

// Review applies a status transition to an access request and runs the
// transition's side effects in the same transaction: approval provisions a
// credential and profile, reverting to pending revokes them, rejection only
// updates the request row. Any failure rolls the whole transaction back.
func (s *AccessService) Review(ctx context.Context, requestID uint, rawStatus string, reviewerID uint, reason string) (*ReviewResult, error) {
	newStatus, ok := models.ParseAccessRequestStatus(rawStatus)
	if !ok {
		return nil, models.NewValidationError("status must be one of: pending, approved, rejected")
	}

	var result ReviewResult
	var touchedSecrets []string

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.APIKeyRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("API key request", requestID)
			}
			return err
		}

		now := time.Now()
		req.Status = newStatus
		req.ReviewedByUserID = &reviewerID
		req.ReviewedAt = &now
		if newStatus == models.AccessRequestStatusRejected {
			req.RejectionReason = strings.TrimSpace(reason)
		} else {
			req.RejectionReason = ""
		}

		orgName := resolveOrganizationName(&req)

		switch newStatus {
		case models.AccessRequestStatusApproved:
			keyID, profileID, secret, err := s.provision(tx, req.UserID, req.Kind, orgName, reviewerID)
			if err != nil {
				return err
			}
			result.APIKeyID = keyID
			result.ProfileID = profileID
			touchedSecrets = append(touchedSecrets, secret)

		case models.AccessRequestStatusPending:
			// A revert of a prior decision: undo the approval's side effects.
			removed, secrets, err := s.revoke(tx, req.UserID, orgName)
			if err != nil {
				return err
			}
			result.KeysRevoked = removed
			touchedSecrets = append(touchedSecrets, secrets...)

		case models.AccessRequestStatusRejected:
			// Only the request row changes.
		}

		if err := tx.Save(&req).Error; err != nil {
			return err
		}

		result.Request = &req
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Invalidate after commit so the gate re-reads committed state.
	for _, secret := range touchedSecrets {
		cache.InvalidateAPIKey(ctx, secret)
	}
	middleware.ReviewDecisions.WithLabelValues(string(newStatus)).Inc()

	return &result, nil
}

// provision finds or creates the credential and profile for an owner inside
// the caller's transaction. Re-invocation for the same owner reactivates the
// existing rows instead of creating duplicates, so re-approving a request is
// safe. Returns the credential id, profile id, and the credential secret.
func (s *AccessService) provision(tx *gorm.DB, ownerID uint, kind models.PartnerKind, orgName string, reviewerID uint) (uint, uint, string, error) {
	kind = kind.OrDefault()
	now := time.Now()

	// Reuse the most recently created credential regardless of status. The
	// existence check runs inside the transaction with a row lock so two
	// concurrent approvals for the same owner cannot both mint a key.
	var key models.APIKey
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		First(&key).Error
	switch {
	case err == nil:
		key.Active = true
		key.Name = orgName
		key.RejectionReason = ""
		key.ReviewedByUserID = &reviewerID
		key.ReviewedAt = &now
		if err := tx.Save(&key).Error; err != nil {
			return 0, 0, "", err
		}
		middleware.KeysProvisioned.WithLabelValues("reactivated").Inc()

	case errors.Is(err, gorm.ErrRecordNotFound):
		secret, genErr := generateAPIKeySecret()
		if genErr != nil {
			return 0, 0, "", genErr
		}
		key = models.APIKey{
			UserID:           ownerID,
			Key:              secret,
			Name:             orgName,
			Active:           true,
			ReviewedByUserID: &reviewerID,
			ReviewedAt:       &now,
		}
		if err := tx.Create(&key).Error; err != nil {
			return 0, 0, "", err
		}
		middleware.KeysProvisioned.WithLabelValues("minted").Inc()

	default:
		return 0, 0, "", err
	}

	profileID, err := s.upsertProfile(tx, ownerID, kind, orgName, key.ID)
	if err != nil {
		return 0, 0, "", err
	}

	return key.ID, profileID, key.Key, nil
}

// upsertProfile creates or repairs the profile row of the requested kind,
// linking it to the given credential.
func (s *AccessService) upsertProfile(tx *gorm.DB, ownerID uint, kind models.PartnerKind, orgName string, apiKeyID uint) (uint, error) {
	if kind == models.PartnerKindWalletProvider {
		var provider models.WalletProvider
		err := tx.Where("user_id = ?", ownerID).First(&provider).Error
		switch {
		case err == nil:
			provider.OrganizationName = orgName
			provider.APIKeyID = &apiKeyID
			provider.Active = true
			if err := tx.Save(&provider).Error; err != nil {
				return 0, err
			}
			return provider.ID, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			provider = models.WalletProvider{
				UserID:           ownerID,
				OrganizationName: orgName,
				APIKeyID:         &apiKeyID,
				Active:           true,
			}
			if err := tx.Create(&provider).Error; err != nil {
				return 0, err
			}
			return provider.ID, nil
		default:
			return 0, err
		}
	}

	var consumer models.DataConsumer
	err := tx.Where("user_id = ?", ownerID).First(&consumer).Error
	switch {
	case err == nil:
		consumer.OrganizationName = orgName
		consumer.APIKeyID = &apiKeyID
		consumer.Active = true
		if err := tx.Save(&consumer).Error; err != nil {
			return 0, err
		}
		return consumer.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		consumer = models.DataConsumer{
			UserID:           ownerID,
			OrganizationName: orgName,
			APIKeyID:         &apiKeyID,
			Active:           true,
		}
		if err := tx.Create(&consumer).Error; err != nil {
			return 0, err
		}
		return consumer.ID, nil
	default:
		return 0, err
	}
}

// revoke removes every credential of the owner whose display name matches
// the organization, together with any profile rows referencing it. The
// display name is the join key kept for compatibility with historical rows
// that never recorded which credential an approval created. Zero matches is
// a no-op, not an error.
func (s *AccessService) revoke(tx *gorm.DB, ownerID uint, orgName string) (int64, []string, error) {
	var keys []models.APIKey
	if err := tx.Where("user_id = ? AND name = ?", ownerID, orgName).Find(&keys).Error; err != nil {
		return 0, nil, err
	}

	var removed int64
	secrets := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := tx.Where("api_key_id = ?", key.ID).Delete(&models.WalletProvider{}).Error; err != nil {
			return 0, nil, err
		}
		if err := tx.Where("api_key_id = ?", key.ID).Delete(&models.DataConsumer{}).Error; err != nil {
			return 0, nil, err
		}
		if err := tx.Delete(&models.APIKey{}, key.ID).Error; err != nil {
			return 0, nil, err
		}
		secrets = append(secrets, key.Key)
		removed++
	}

	if removed > 0 {
		middleware.KeysRevoked.Add(float64(removed))
	}
	return removed, secrets, nil
}

// Reconcile collapses duplicate credential secrets down to the single most
// recently issued row per secret, deleting dependent profile rows alongside
// the losers. The whole batch runs in one transaction so a partial failure
// never leaves profiles orphaned from a half-deleted credential. A missing
// schema yields an empty report rather than an error so dashboard callers
// keep working before migrations have run.
func (s *AccessService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	var report ReconcileReport
	var touchedSecrets []string

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var keys []models.APIKey
		if err := tx.Order("created_at DESC, id DESC").Find(&keys).Error; err != nil {
			return err
		}

		// Keys are ordered newest first, so the first row seen for a secret
		// is the canonical one; everything after it is a duplicate.
		seen := make(map[string]bool, len(keys))
		duplicates := make(map[string]bool)
		for _, key := range keys {
			if !seen[key.Key] {
				seen[key.Key] = true
				continue
			}
			duplicates[key.Key] = true

			if err := tx.Where("api_key_id = ?", key.ID).Delete(&models.WalletProvider{}).Error; err != nil {
				return err
			}
			if err := tx.Where("api_key_id = ?", key.ID).Delete(&models.DataConsumer{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.APIKey{}, key.ID).Error; err != nil {
				return err
			}
			touchedSecrets = append(touchedSecrets, key.Key)
			report.KeysRemoved++
		}
		report.DuplicatesFound = len(duplicates)
		return nil
	})
	if txErr != nil {
		if isMissingSchema(txErr) {
			return &ReconcileReport{}, nil
		}
		return nil, txErr
	}

	for _, secret := range touchedSecrets {
		cache.InvalidateAPIKey(ctx, secret)
	}
	if report.KeysRemoved > 0 {
		middleware.DuplicateKeysRemoved.Add(float64(report.KeysRemoved))
	}

	return &report, nil
}

// isMissingSchema reports whether the error is the database telling us a
// table has not been created yet (postgres 42P01 or the sqlite equivalent).
func isMissingSchema(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01" // undefined_table
	}
	return strings.Contains(err.Error(), "no such table")
}
