// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	mrand "math/rand"
	"strings"
	"time"

	"waypost/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	ShouldClean bool
	// WithDuplicates inserts extra credential rows sharing a secret so a
	// cleanup run has something to collapse.
	WithDuplicates bool
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	log.Printf("🌱 Starting database seeding with %d users...", opts.NumUsers)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	admin, err := createAdmin(db)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log.Printf("✓ admin user %q created", admin.Username)

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d test users created", len(users))

	requests, err := createAccessRequests(db, users)
	if err != nil {
		return fmt.Errorf("failed to create access requests: %w", err)
	}
	log.Printf("✓ %d access requests created", len(requests))

	approved, err := approveSome(db, admin, requests)
	if err != nil {
		return fmt.Errorf("failed to approve requests: %w", err)
	}
	log.Printf("✓ %d requests approved with credentials", approved)

	if opts.WithDuplicates {
		dups, err := plantDuplicates(db, users)
		if err != nil {
			return fmt.Errorf("failed to plant duplicate keys: %w", err)
		}
		log.Printf("✓ %d duplicate credential rows planted", dups)
	}

	log.Println("✨ Seeding complete")
	log.Println("📧 All test users have the password: password123")
	return nil
}

func clearData(db *gorm.DB) error {
	tables := []interface{}{
		&models.WalletProvider{},
		&models.DataConsumer{},
		&models.APIKey{},
		&models.APIKeyRequest{},
		&models.User{},
	}
	for _, table := range tables {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func createAdmin(db *gorm.DB) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	admin := &models.User{
		Username: "admin",
		Email:    "admin@waypost.dev",
		Password: string(hashed),
		Company:  "Waypost",
		IsAdmin:  true,
	}
	if err := db.Create(admin).Error; err != nil {
		return nil, err
	}
	return admin, nil
}

func createUsers(db *gorm.DB, count int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		username := strings.ToLower(gofakeit.Username())
		user := &models.User{
			Username: fmt.Sprintf("%s%d", username, i),
			Email:    fmt.Sprintf("%s%d@%s", username, i, gofakeit.DomainName()),
			Password: string(hashed),
			Company:  gofakeit.Company(),
		}
		if err := db.Create(user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func createAccessRequests(db *gorm.DB, users []*models.User) ([]*models.APIKeyRequest, error) {
	kinds := []models.PartnerKind{models.PartnerKindWalletProvider, models.PartnerKindDataConsumer}

	requests := make([]*models.APIKeyRequest, 0, len(users))
	for i, user := range users {
		req := &models.APIKeyRequest{
			UserID:           user.ID,
			Kind:             kinds[i%len(kinds)],
			OrganizationName: user.Company,
			Status:           models.AccessRequestStatusPending,
		}
		if err := db.Create(req).Error; err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// approveSome marks roughly a third of the requests approved and mints a
// credential plus partner profile for each, mirroring what a review pass
// would produce.
func approveSome(db *gorm.DB, admin *models.User, requests []*models.APIKeyRequest) (int, error) {
	approved := 0
	for i, req := range requests {
		if i%3 != 0 {
			continue
		}
		now := time.Now()
		req.Status = models.AccessRequestStatusApproved
		req.ReviewedByUserID = &admin.ID
		req.ReviewedAt = &now
		if err := db.Save(req).Error; err != nil {
			return approved, err
		}

		key := &models.APIKey{
			UserID: req.UserID,
			Key:    randomSecret(),
			Name:   req.OrganizationName,
			Active: true,
		}
		if err := db.Create(key).Error; err != nil {
			return approved, err
		}

		switch req.Kind {
		case models.PartnerKindWalletProvider:
			profile := &models.WalletProvider{
				UserID:           req.UserID,
				OrganizationName: req.OrganizationName,
				APIKeyID:         &key.ID,
				Active:           true,
			}
			if err := db.Create(profile).Error; err != nil {
				return approved, err
			}
		default:
			profile := &models.DataConsumer{
				UserID:           req.UserID,
				OrganizationName: req.OrganizationName,
				APIKeyID:         &key.ID,
				Active:           true,
			}
			if err := db.Create(profile).Error; err != nil {
				return approved, err
			}
		}
		approved++
	}
	return approved, nil
}

// plantDuplicates inserts pairs of rows sharing a secret for a few users.
func plantDuplicates(db *gorm.DB, users []*models.User) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	planted := 0
	limit := 3
	if len(users) < limit {
		limit = len(users)
	}
	for i := 0; i < limit; i++ {
		secret := randomSecret()
		for j := 0; j < 2; j++ {
			key := &models.APIKey{
				UserID:    users[i].ID,
				Key:       secret,
				Name:      users[i].Company,
				Active:    j == 1,
				CreatedAt: time.Now().Add(-time.Duration(2-j) * time.Hour),
			}
			if err := db.Create(key).Error; err != nil {
				return planted, err
			}
			planted++
		}
	}
	return planted, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// fall back to a non-cryptographic secret for seed data
		return fmt.Sprintf("wp_seed_%d", mrand.Int63())
	}
	return "wp_" + hex.EncodeToString(buf)
}
