package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"waypost/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// AdminAPIKeyDTO is the API response model for the admin credential listing.
type AdminAPIKeyDTO struct {
	ID               uint               `json:"id"`
	Key              string             `json:"key"`
	Name             string             `json:"name"`
	Active           bool               `json:"active"`
	UserID           uint               `json:"user_id"`
	Username         string             `json:"username"`
	Email            string             `json:"email"`
	PartnerKind      models.PartnerKind `json:"partner_kind,omitempty"`
	OrganizationName string             `json:"organization_name,omitempty"`
	CreatedAt        string             `json:"created_at"`
}

// GetAdminAPIKeyRequests handles GET /api/admin/api-key-requests
func (s *Server) GetAdminAPIKeyRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	status := strings.TrimSpace(c.Query("status", string(models.AccessRequestStatusPending)))

	statusEnum, ok := models.ParseAccessRequestStatus(status)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("status must be one of: pending, approved, rejected"))
	}

	requests, err := s.requestRepo.ListByStatus(ctx, statusEnum)
	if err != nil {
		if schemaMissing(err) {
			return c.JSON([]models.APIKeyRequest{})
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(requests)
}

// ReviewAPIKeyRequest handles PUT /api/admin/api-key-requests/:id
func (s *Server) ReviewAPIKeyRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	reviewerID, ok := c.Locals(localUserID).(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	requestID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.accessService.Review(ctx, requestID, body.Status, reviewerID, body.Reason)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			status := fiber.StatusInternalServerError
			switch appErr.Code {
			case "VALIDATION_ERROR":
				status = fiber.StatusBadRequest
			case "NOT_FOUND":
				status = fiber.StatusNotFound
			}
			return models.RespondWithError(c, status, appErr)
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	resp := fiber.Map{
		"message": fmt.Sprintf("API key request %s", result.Request.Status),
		"request": result.Request,
	}
	if result.APIKeyID != 0 {
		resp["api_key_id"] = result.APIKeyID
		resp["profile_id"] = result.ProfileID
	}
	if result.KeysRevoked > 0 {
		resp["keys_revoked"] = result.KeysRevoked
	}

	return c.JSON(resp)
}

// GetAdminAPIKeys handles GET /api/admin/api-keys
func (s *Server) GetAdminAPIKeys(c *fiber.Ctx) error {
	ctx := c.Context()

	keys, err := s.keyRepo.ListWithOwners(ctx)
	if err != nil {
		// Prefer an empty listing over breaking the dashboard when the
		// schema has not been created yet.
		if schemaMissing(err) {
			return c.JSON([]AdminAPIKeyDTO{})
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	resp := make([]AdminAPIKeyDTO, 0, len(keys))
	for _, key := range keys {
		dto := AdminAPIKeyDTO{
			ID:        key.ID,
			Key:       key.Key,
			Name:      key.Name,
			Active:    key.Active,
			UserID:    key.UserID,
			CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
		}
		if key.User != nil {
			dto.Username = key.User.Username
			dto.Email = key.User.Email
		}
		if profile, profErr := s.partnerRepo.GetByAPIKeyID(ctx, key.ID); profErr == nil {
			dto.PartnerKind = profile.Kind
			dto.OrganizationName = profile.OrganizationName
		}
		resp = append(resp, dto)
	}

	return c.JSON(resp)
}

// CleanupDuplicateKeys handles POST /api/admin/cleanup-duplicates
func (s *Server) CleanupDuplicateKeys(c *fiber.Ctx) error {
	report, err := s.accessService.Reconcile(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"message":         "duplicate API key cleanup complete",
		"duplicatesFound": report.DuplicatesFound,
		"keysRemoved":     report.KeysRemoved,
	})
}

// schemaMissing reports whether the error chain stems from a table that has
// not been migrated yet.
func schemaMissing(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01" // undefined_table
	}
	return strings.Contains(err.Error(), "no such table")
}
