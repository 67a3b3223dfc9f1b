package main

import (
	"log"

	"github.com/fampita/backend/internal/email"
	"github.com/fampita/backend/internal/router"
	"github.com/fampita/backend/pkg/config"
	"github.com/fampita/backend/pkg/storage"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	// Initialize the object-storage bucket
	bucket, err := storage.NewS3Bucket(storage.BucketConfig{
		Endpoint:        cfg.StorageEndpoint,
		AccessKeyID:     cfg.StorageAccessKey,
		AccessKeySecret: cfg.StorageSecretKey,
		BucketName:      cfg.StorageBucket,
		PublicURL:       cfg.StoragePublicURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Email sender for confirmation codes
	sender := email.NewSMTPSender(cfg)

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, cfg, db.Postgres, db.Mongo, bucket, sender)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
