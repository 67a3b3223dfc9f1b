package router

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fampita/backend/internal/email"
	"github.com/fampita/backend/internal/handlers"
	"github.com/fampita/backend/internal/middleware"
	"github.com/fampita/backend/internal/models"
	"github.com/fampita/backend/internal/repositories"
	"github.com/fampita/backend/pkg/config"
	"github.com/fampita/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.HTTPErrorHandler = HTTPErrorHandler
	log.Println("Global middleware configured.")
}

// HTTPErrorHandler renders every error as {"error": "<message>"} so the
// envelope is the same across all endpoints.
func HTTPErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "Erreur interne serveur."
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		message = fmt.Sprintf("%v", he.Message)
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
		} else {
			_ = c.JSON(code, map[string]string{"error": message})
		}
	}
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, bucket storage.Bucket, sender email.Sender) {
	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Follow{},
		&models.StoryLike{},
		&models.StoryView{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	mongoDB := mgClient.Database(cfg.MongoDBName)

	// Health check - always accessible
	e.GET("/", handlers.HealthCheck)
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	profileRepo := repositories.NewPostgresProfileRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	conversationRepo := repositories.NewConversationRepository(mongoDB)
	storyRepo := repositories.NewStoryRepository(mongoDB, pgdb)

	if err := conversationRepo.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to create MongoDB indexes: %v", err)
	}
	log.Println("MongoDB indexes ensured.")

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api")
	authHandler := handlers.NewAuthHandler(userRepo, profileRepo, sender, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, userRepo))
	log.Println("JWT authentication middleware applied to /api group.")

	// Profile routes
	profileHandler := handlers.NewProfileHandler(userRepo, profileRepo, followRepo, storyRepo, bucket)
	profileHandler.RegisterProfileRoutes(api)
	log.Println("Profile routes configured.")

	// Follow routes
	followHandler := handlers.NewFollowHandler(followRepo, userRepo, profileRepo)
	followHandler.RegisterFollowRoutes(api)
	log.Println("Follow routes configured.")

	// Chat routes
	chatHandler := handlers.NewChatHandler(conversationRepo, userRepo, profileRepo, bucket)
	chatHandler.RegisterChatRoutes(api)
	log.Println("Chat routes configured.")

	// Story routes
	storyHandler := handlers.NewStoryHandler(storyRepo, userRepo, profileRepo, bucket)
	storyHandler.RegisterStoryRoutes(api)
	log.Println("Story routes configured.")

	log.Println("All routes configured.")
}
