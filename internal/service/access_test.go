package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"waypost/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAccessTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.APIKeyRequest{},
		&models.APIKey{},
		&models.WalletProvider{},
		&models.DataConsumer{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}

func createRequestFixture(t *testing.T, db *gorm.DB, kind models.PartnerKind, org string) (models.User, models.User, models.APIKeyRequest) {
	t.Helper()

	owner := models.User{Username: "owner", Email: "owner@example.com", Password: "pw"}
	admin := models.User{Username: "admin", Email: "admin@example.com", Password: "pw", IsAdmin: true}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}

	req := models.APIKeyRequest{
		UserID:           owner.ID,
		Kind:             kind,
		OrganizationName: org,
		Status:           models.AccessRequestStatusPending,
	}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	return owner, admin, req
}

func TestReviewApproveProvisionsCredentialAndProfile(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	owner, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	result, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if result.Request.Status != models.AccessRequestStatusApproved {
		t.Fatalf("expected approved status, got %s", result.Request.Status)
	}
	if result.Request.ReviewedByUserID == nil || *result.Request.ReviewedByUserID != admin.ID {
		t.Fatalf("expected reviewer %d", admin.ID)
	}
	if result.APIKeyID == 0 || result.ProfileID == 0 {
		t.Fatalf("expected credential and profile ids, got %d/%d", result.APIKeyID, result.ProfileID)
	}

	var key models.APIKey
	if err := db.First(&key, result.APIKeyID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if !key.Active {
		t.Fatal("expected an active key")
	}
	if key.Name != "Acme" {
		t.Fatalf("expected key name Acme, got %q", key.Name)
	}
	if !strings.HasPrefix(key.Key, "wp_") {
		t.Fatalf("unexpected secret format %q", key.Key)
	}

	var provider models.WalletProvider
	if err := db.Where("user_id = ?", owner.ID).First(&provider).Error; err != nil {
		t.Fatalf("provider missing: %v", err)
	}
	if provider.APIKeyID == nil || *provider.APIKeyID != key.ID {
		t.Fatal("provider not linked to key")
	}
	if !provider.Active {
		t.Fatal("expected an active provider")
	}

	var consumerCount int64
	db.Model(&models.DataConsumer{}).Count(&consumerCount)
	if consumerCount != 0 {
		t.Fatalf("expected no consumer rows, got %d", consumerCount)
	}
}

func TestReviewApproveDefaultsToDataConsumer(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	owner, admin, req := createRequestFixture(t, db, "", "Beta Corp")

	if _, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, ""); err != nil {
		t.Fatalf("review: %v", err)
	}

	var consumer models.DataConsumer
	if err := db.Where("user_id = ?", owner.ID).First(&consumer).Error; err != nil {
		t.Fatalf("consumer missing: %v", err)
	}
	var providerCount int64
	db.Model(&models.WalletProvider{}).Count(&providerCount)
	if providerCount != 0 {
		t.Fatalf("expected no provider rows, got %d", providerCount)
	}
}

func TestReviewDoubleApproveIsIdempotent(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	first, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	second, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("second review: %v", err)
	}

	if first.APIKeyID != second.APIKeyID {
		t.Fatalf("expected credential reuse, got %d then %d", first.APIKeyID, second.APIKeyID)
	}
	if first.ProfileID != second.ProfileID {
		t.Fatalf("expected profile reuse, got %d then %d", first.ProfileID, second.ProfileID)
	}

	var keyCount, providerCount int64
	db.Model(&models.APIKey{}).Count(&keyCount)
	db.Model(&models.WalletProvider{}).Count(&providerCount)
	if keyCount != 1 || providerCount != 1 {
		t.Fatalf("expected exactly one key and one provider, got %d/%d", keyCount, providerCount)
	}
}

func TestReviewRevertToPendingRevokes(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindDataConsumer, "Gamma LLC")

	if _, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	result, err := svc.Review(context.Background(), req.ID, "pending", admin.ID, "")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if result.KeysRevoked != 1 {
		t.Fatalf("expected 1 key revoked, got %d", result.KeysRevoked)
	}
	if result.Request.Status != models.AccessRequestStatusPending {
		t.Fatalf("expected pending status, got %s", result.Request.Status)
	}

	var keyCount, consumerCount int64
	db.Model(&models.APIKey{}).Count(&keyCount)
	db.Model(&models.DataConsumer{}).Count(&consumerCount)
	if keyCount != 0 || consumerCount != 0 {
		t.Fatalf("expected key and profile removed, got %d/%d", keyCount, consumerCount)
	}
}

func TestReviewReapproveAfterRevokeMintsFreshSecret(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	first, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	var firstKey models.APIKey
	if err := db.First(&firstKey, first.APIKeyID).Error; err != nil {
		t.Fatalf("reload first key: %v", err)
	}

	if _, err := svc.Review(context.Background(), req.ID, "pending", admin.ID, ""); err != nil {
		t.Fatalf("revert: %v", err)
	}
	second, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}

	var secondKey models.APIKey
	if err := db.First(&secondKey, second.APIKeyID).Error; err != nil {
		t.Fatalf("reload second key: %v", err)
	}
	if secondKey.Key == firstKey.Key {
		t.Fatal("expected a fresh secret after revocation")
	}
}

func TestReviewRejectOnlyTouchesRequest(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	result, err := svc.Review(context.Background(), req.ID, "rejected", admin.ID, "incomplete paperwork")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Request.Status != models.AccessRequestStatusRejected {
		t.Fatalf("expected rejected status, got %s", result.Request.Status)
	}
	if result.Request.RejectionReason != "incomplete paperwork" {
		t.Fatalf("unexpected reason %q", result.Request.RejectionReason)
	}

	var keyCount, providerCount int64
	db.Model(&models.APIKey{}).Count(&keyCount)
	db.Model(&models.WalletProvider{}).Count(&providerCount)
	if keyCount != 0 || providerCount != 0 {
		t.Fatalf("expected no credentials on rejection, got %d/%d", keyCount, providerCount)
	}
}

func TestReviewApproveAfterRejectClearsReason(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	if _, err := svc.Review(context.Background(), req.ID, "rejected", admin.ID, "missing details"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	result, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Request.RejectionReason != "" {
		t.Fatalf("expected reason cleared, got %q", result.Request.RejectionReason)
	}
}

func TestReviewInvalidStatus(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)
	_, admin, req := createRequestFixture(t, db, models.PartnerKindWalletProvider, "Acme")

	_, err := svc.Review(context.Background(), req.ID, "revoked", admin.ID, "")
	if err == nil {
		t.Fatal("expected an error for an unknown status")
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected a validation error, got %v", err)
	}

	var reloaded models.APIKeyRequest
	if err := db.First(&reloaded, req.ID).Error; err != nil {
		t.Fatalf("reload request: %v", err)
	}
	if reloaded.Status != models.AccessRequestStatusPending {
		t.Fatalf("expected request untouched, got %s", reloaded.Status)
	}
}

func TestReviewMissingRequest(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)

	_, err := svc.Review(context.Background(), 999, "approved", 1, "")
	if err == nil {
		t.Fatal("expected an error for a missing request")
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected a not-found error, got %v", err)
	}

	var keyCount int64
	db.Model(&models.APIKey{}).Count(&keyCount)
	if keyCount != 0 {
		t.Fatalf("expected no side effects, got %d keys", keyCount)
	}
}

func TestReviewFallsBackToOrganizationField(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)

	owner := models.User{Username: "legacy", Email: "legacy@example.com", Password: "pw"}
	admin := models.User{Username: "reviewer", Email: "reviewer@example.com", Password: "pw", IsAdmin: true}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("create admin: %v", err)
	}
	req := models.APIKeyRequest{
		UserID:       owner.ID,
		Kind:         models.PartnerKindDataConsumer,
		Organization: "Legacy Org",
		Status:       models.AccessRequestStatusPending,
	}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}

	result, err := svc.Review(context.Background(), req.ID, "approved", admin.ID, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	var key models.APIKey
	if err := db.First(&key, result.APIKeyID).Error; err != nil {
		t.Fatalf("reload key: %v", err)
	}
	if key.Name != "Legacy Org" {
		t.Fatalf("expected fallback org name, got %q", key.Name)
	}
}

func TestResolveOrganizationName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		orgName string
		org     string
		want    string
	}{
		{"prefers display name", "Acme", "Other", "Acme"},
		{"falls back to organization", "", "Other", "Other"},
		{"trims whitespace", "  ", " Other ", "Other"},
		{"placeholder when empty", "", "", UnknownOrganization},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveOrganizationName(&models.APIKeyRequest{
				OrganizationName: tc.orgName,
				Organization:     tc.org,
			})
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReconcileKeepsLatestPerSecret(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)

	owner := models.User{Username: "dupowner", Email: "dup@example.com", Password: "pw"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}

	older := models.APIKey{UserID: owner.ID, Key: "abc123", Name: "Acme", Active: false,
		CreatedAt: time.Now().Add(-2 * time.Hour)}
	newer := models.APIKey{UserID: owner.ID, Key: "abc123", Name: "Acme", Active: true,
		CreatedAt: time.Now().Add(-1 * time.Hour)}
	other := models.APIKey{UserID: owner.ID, Key: "unique456", Name: "Acme", Active: true,
		CreatedAt: time.Now().Add(-3 * time.Hour)}
	for _, key := range []*models.APIKey{&older, &newer, &other} {
		if err := db.Create(key).Error; err != nil {
			t.Fatalf("create key: %v", err)
		}
	}

	apiKeyID := older.ID
	orphan := models.DataConsumer{UserID: owner.ID, OrganizationName: "Acme", APIKeyID: &apiKeyID, Active: true}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}

	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.DuplicatesFound != 1 {
		t.Fatalf("expected 1 duplicated secret, got %d", report.DuplicatesFound)
	}
	if report.KeysRemoved != 1 {
		t.Fatalf("expected 1 key removed, got %d", report.KeysRemoved)
	}

	var survivors []models.APIKey
	if err := db.Where("key = ?", "abc123").Find(&survivors).Error; err != nil {
		t.Fatalf("list survivors: %v", err)
	}
	if len(survivors) != 1 {
		t.Fatalf("expected a single abc123 row, got %d", len(survivors))
	}
	if survivors[0].ID != newer.ID {
		t.Fatalf("expected latest row %d kept, got %d", newer.ID, survivors[0].ID)
	}

	var untouched int64
	db.Model(&models.APIKey{}).Where("key = ?", "unique456").Count(&untouched)
	if untouched != 1 {
		t.Fatal("expected unique secret untouched")
	}

	var profileCount int64
	db.Model(&models.DataConsumer{}).Count(&profileCount)
	if profileCount != 0 {
		t.Fatalf("expected loser's profile removed, got %d", profileCount)
	}
}

func TestReconcileSameTimestampBreaksTiesByID(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)

	owner := models.User{Username: "tiebreak", Email: "tie@example.com", Password: "pw"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}

	at := time.Now().Truncate(time.Second)
	first := models.APIKey{UserID: owner.ID, Key: "same", Name: "Acme", CreatedAt: at}
	second := models.APIKey{UserID: owner.ID, Key: "same", Name: "Acme", CreatedAt: at}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatalf("create second: %v", err)
	}

	if _, err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var survivors []models.APIKey
	if err := db.Where("key = ?", "same").Find(&survivors).Error; err != nil {
		t.Fatalf("list survivors: %v", err)
	}
	if len(survivors) != 1 || survivors[0].ID != second.ID {
		t.Fatalf("expected highest id kept, got %+v", survivors)
	}
}

func TestReconcileEmptyDatabase(t *testing.T) {
	t.Parallel()

	db := setupAccessTestDB(t)
	svc := NewAccessService(db)

	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.DuplicatesFound != 0 || report.KeysRemoved != 0 {
		t.Fatalf("expected an empty report, got %+v", report)
	}
}

func TestReconcileMissingSchema(t *testing.T) {
	t.Parallel()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	svc := NewAccessService(db)

	report, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("expected missing schema tolerated, got %v", err)
	}
	if report.DuplicatesFound != 0 || report.KeysRemoved != 0 {
		t.Fatalf("expected an empty report, got %+v", report)
	}
}
