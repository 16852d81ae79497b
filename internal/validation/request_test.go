package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePartnerKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{"Wallet Provider", "wallet_provider", false},
		{"Data Consumer", "data_consumer", false},
		{"Empty Defaults Later", "", false},
		{"Unknown", "reseller", true},
		{"Wrong Case", "Wallet_Provider", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartnerKind(tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrganizationName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		org     string
		wantErr bool
	}{
		{"Valid", "Acme Wallets", false},
		{"Empty", "", false},
		{"Exactly Max", strings.Repeat("a", 200), false},
		{"Too Long", strings.Repeat("a", 201), true},
		{"Whitespace Padding Ignored", "  " + strings.Repeat("a", 200) + "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrganizationName(tt.org)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
