// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"strings"

	"waypost/internal/models"
)

const maxOrganizationNameLen = 200

// ValidatePartnerKind rejects kinds other than the two marketplace roles.
// An empty kind is allowed; provisioning applies the business default.
func ValidatePartnerKind(raw string) error {
	switch models.PartnerKind(raw) {
	case "", models.PartnerKindWalletProvider, models.PartnerKindDataConsumer:
		return nil
	}
	return fmt.Errorf("kind must be %q or %q", models.PartnerKindWalletProvider, models.PartnerKindDataConsumer)
}

// ValidateOrganizationName bounds organization names to the column size.
func ValidateOrganizationName(name string) error {
	if len(strings.TrimSpace(name)) > maxOrganizationNameLen {
		return fmt.Errorf("organization name must not exceed %d characters", maxOrganizationNameLen)
	}
	return nil
}
