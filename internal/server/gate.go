package server

import (
	"context"
	"strconv"
	"strings"

	"waypost/internal/middleware"
	"waypost/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals keys set by the access gate.
const (
	localUserID      = "userID"
	localAuthScheme  = "authScheme"
	localProfileID   = "profileID"
	localProfileKind = "profileKind"
)

// AuthRequired is the access gate: it resolves an incoming bearer token or
// API key to an identity. Bearer tokens are checked first; a request that
// presents a token never falls through to API key lookup, so a bad token is
// rejected rather than silently ignored.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := bearerToken(c); token != "" {
			return s.authenticateToken(c, token)
		}

		if apiKey := strings.TrimSpace(c.Get("X-API-Key")); apiKey != "" {
			return s.authenticateAPIKey(c, apiKey)
		}

		middleware.GateRejections.WithLabelValues("missing_credentials").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func (s *Server) authenticateToken(c *fiber.Ctx, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired token"))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid token claims"))
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != "waypost-api" {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid token issuer"))
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != "waypost-client" {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid token audience"))
	}

	// Extract user ID from subject claim
	sub, ok := claims["sub"].(string)
	if !ok {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid subject claim"))
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		middleware.GateRejections.WithLabelValues("invalid_token").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid user ID in token"))
	}

	c.Locals(localUserID, uint(userID))
	c.Locals(localAuthScheme, "bearer")
	if role, roleOk := claims["role"].(string); roleOk {
		c.Locals("role", role)
	}

	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
	c.SetUserContext(ctx)

	return c.Next()
}

func (s *Server) authenticateAPIKey(c *fiber.Ctx, value string) error {
	key, err := s.keyRepo.GetActiveByValue(c.Context(), value)
	if err != nil {
		middleware.GateRejections.WithLabelValues("invalid_api_key").Inc()
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or inactive API key"))
	}

	c.Locals(localUserID, key.UserID)
	c.Locals(localAuthScheme, "api_key")

	// Attach the owning business profile so downstream handlers know which
	// side of the marketplace is calling.
	if profile, profErr := s.partnerRepo.GetByAPIKeyID(c.Context(), key.ID); profErr == nil {
		c.Locals(localProfileID, profile.ID)
		c.Locals(localProfileKind, profile.Kind)
	}

	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, key.UserID)
	c.SetUserContext(ctx)

	return c.Next()
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(localUserID).(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		user, err := s.userRepo.GetByID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// PartnerRequired returns middleware that only admits requests whose
// authenticated identity resolved to a partner profile of one of the given
// kinds. Must be placed after AuthRequired.
func (s *Server) PartnerRequired(kinds ...models.PartnerKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := c.Locals(localProfileKind).(models.PartnerKind)
		if !ok {
			// Bearer-authenticated users may still own a profile; resolve by
			// user id before rejecting.
			userID, userOK := c.Locals(localUserID).(uint)
			if !userOK {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Authorization required"))
			}
			profile, err := s.resolveProfileByUserID(c, userID)
			if err != nil || profile == nil {
				return models.RespondWithError(c, fiber.StatusForbidden,
					models.NewForbiddenError("Partner profile required"))
			}
			c.Locals(localProfileID, profile.ID)
			c.Locals(localProfileKind, profile.Kind)
			kind = profile.Kind
		}

		for _, allowed := range kinds {
			if kind == allowed {
				return c.Next()
			}
		}
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Partner kind not allowed for this operation"))
	}
}
