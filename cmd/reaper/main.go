package main

import (
	"context"
	"log"
	"time"

	"github.com/fampita/backend/internal/repositories"
	"github.com/fampita/backend/pkg/config"
)

// The reaper deletes stories past their 24h expiry together with their
// like and view rows. It is meant to be run periodically by an external
// scheduler (cron).
func main() {
	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	storyRepo := repositories.NewStoryRepository(db.Mongo.Database(cfg.MongoDBName), db.Postgres)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	deleted, err := storyRepo.DeleteExpiredStories(ctx)
	if err != nil {
		log.Fatalf("Failed to delete expired stories: %v", err)
	}
	log.Printf("%d expired stories deleted", deleted)
}
