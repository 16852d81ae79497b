package server

import (
	"strings"

	"waypost/internal/models"
	"waypost/internal/repository"
	"waypost/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// CreateAPIKeyRequest handles POST /api/api-key-requests
func (s *Server) CreateAPIKeyRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID, ok := c.Locals(localUserID).(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	var req struct {
		Kind             string `json:"kind"`
		OrganizationName string `json:"organization_name"`
		Organization     string `json:"organization"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Kind = strings.TrimSpace(req.Kind)
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	req.Organization = strings.TrimSpace(req.Organization)

	if err := validation.ValidatePartnerKind(req.Kind); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateOrganizationName(req.OrganizationName); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}
	if err := validation.ValidateOrganizationName(req.Organization); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	kind := models.PartnerKind(req.Kind).OrDefault()

	pending, err := s.requestRepo.HasPending(ctx, userID, kind)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if pending {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("a pending request already exists for this kind"))
	}

	create := &models.APIKeyRequest{
		UserID:           userID,
		Kind:             kind,
		OrganizationName: req.OrganizationName,
		Organization:     req.Organization,
		Status:           models.AccessRequestStatusPending,
	}
	if err := s.requestRepo.Create(ctx, create); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(create)
}

// GetMyAPIKeyRequests handles GET /api/api-key-requests/me
func (s *Server) GetMyAPIKeyRequests(c *fiber.Ctx) error {
	ctx := c.Context()
	userID, ok := c.Locals(localUserID).(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	requests, err := s.requestRepo.ListByUser(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(requests)
}

// GetMyAPIKey handles GET /api/api-keys/me
func (s *Server) GetMyAPIKey(c *fiber.Ctx) error {
	ctx := c.Context()
	userID, ok := c.Locals(localUserID).(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	key, err := s.keyRepo.GetLatestByUserID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if key == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("API key for user", userID))
	}

	return c.JSON(key)
}

// GetPartnerProfile handles GET /api/partner/me
func (s *Server) GetPartnerProfile(c *fiber.Ctx) error {
	userID, ok := c.Locals(localUserID).(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	profile, err := s.resolveProfileByUserID(c, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if profile == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Partner profile for user", userID))
	}

	return c.JSON(fiber.Map{
		"id":                profile.ID,
		"user_id":           profile.UserID,
		"kind":              profile.Kind,
		"organization_name": profile.OrganizationName,
		"active":            profile.Active,
	})
}

// resolveProfileByUserID looks up whichever partner profile the user owns,
// provider first.
func (s *Server) resolveProfileByUserID(c *fiber.Ctx, userID uint) (*repository.PartnerProfile, error) {
	provider, err := s.partnerRepo.GetProviderByUserID(c.Context(), userID)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		return &repository.PartnerProfile{
			ID:               provider.ID,
			UserID:           provider.UserID,
			OrganizationName: provider.OrganizationName,
			Kind:             models.PartnerKindWalletProvider,
			Active:           provider.Active,
		}, nil
	}

	consumer, err := s.partnerRepo.GetConsumerByUserID(c.Context(), userID)
	if err != nil {
		return nil, err
	}
	if consumer != nil {
		return &repository.PartnerProfile{
			ID:               consumer.ID,
			UserID:           consumer.UserID,
			OrganizationName: consumer.OrganizationName,
			Kind:             models.PartnerKindDataConsumer,
			Active:           consumer.Active,
		}, nil
	}

	return nil, nil
}
