// Command main runs a one-shot duplicate API key reconciliation.
package main

import (
	"context"
	"log"
	"time"

	"waypost/internal/config"
	"waypost/internal/database"
	"waypost/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := service.NewAccessService(db).Reconcile(ctx)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	log.Printf("Reconciliation complete: %d duplicates found, %d keys removed",
		report.DuplicatesFound, report.KeysRemoved)
}
