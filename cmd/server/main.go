package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sunilgawai/pitchreel/internal/api"
	"github.com/sunilgawai/pitchreel/internal/config"
	"github.com/sunilgawai/pitchreel/internal/repository/mongo"
	"github.com/sunilgawai/pitchreel/internal/service"
	"github.com/sunilgawai/pitchreel/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Pitchreel Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureSubmissionIndexes(ctx, appDB.Collection("submissions"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	log.Printf("Initializing blob storage (provider: %s)...", cfg.Storage.Provider)
	blobStore, err := newBlobStore(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize blob storage: %v", err)
	}

	// --- Initialize Repositories & Services ---
	submissionRepo := mongo.NewMongoSubmissionRepository(appDB)
	submissionService := service.NewSubmissionService(submissionRepo, blobStore, cfg.Upload.Folder)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.Admin.Token, submissionService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}

// newBlobStore constructs the configured remote store variant. Both variants
// are explicit, injected clients; there is no process-wide SDK state.
func newBlobStore(cfg config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "media", "":
		return storage.NewMediaStore(cfg.Media)
	case "s3":
		return storage.NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
