// Command main runs the database seeder for Waypost.
package main

import (
	"flag"
	"log"

	"waypost/internal/config"
	"waypost/internal/database"
	"waypost/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	withDuplicates := flag.Bool("duplicates", false, "Plant duplicate credential rows for cleanup demos")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, clean=%v, duplicates=%v\n", *numUsers, *shouldClean, *withDuplicates)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:       *numUsers,
		ShouldClean:    *shouldClean,
		WithDuplicates: *withDuplicates,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
