package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/01moynul/basegigs-golang/internal/ai"
	"github.com/01moynul/basegigs-golang/internal/auth"
	"github.com/01moynul/basegigs-golang/internal/billing"
	"github.com/01moynul/basegigs-golang/internal/config"
	"github.com/01moynul/basegigs-golang/internal/contract"
	"github.com/01moynul/basegigs-golang/internal/database"
	"github.com/01moynul/basegigs-golang/internal/handlers"
	"github.com/01moynul/basegigs-golang/internal/marketplace"
	"github.com/01moynul/basegigs-golang/internal/messaging"
	"github.com/01moynul/basegigs-golang/internal/notify"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/routes"
	"github.com/01moynul/basegigs-golang/internal/storage"
	"github.com/01moynul/basegigs-golang/internal/store"
)

func main() {
	// 0. --- Load Configuration (.env, CONFIG_FILE, environment) ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()

	// 1. --- Main Database Connection (Read/Write) ---
	var st store.Store
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.OpenDBWithDSN(cfg.DSNPrimary)
		if err != nil {
			log.Fatalf("Failed to connect to primary database: %v", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		st = store.NewMySQL(db)
	default:
		log.Println("WARNING: Using the in-memory store. Data is lost on restart.")
		st = store.NewMemory()
	}
	defer st.Close()

	// 2. --- Realtime Notifications (Redis, optional) ---
	var publisher notify.Publisher
	var stream handlers.Subscriber
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
		}
		defer rdb.Close()
		redisPublisher := notify.NewRedisPublisher(rdb)
		publisher, stream = redisPublisher, redisPublisher
	}

	// 3. --- Object Storage ---
	var blobs storage.Blob
	uploadDir := ""
	switch cfg.Storage.Driver {
	case config.StorageS3:
		s3Blobs, err := storage.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region, cfg.Storage.S3PublicURL)
		if err != nil {
			log.Fatalf("Failed to configure S3 storage: %v", err)
		}
		blobs = s3Blobs
	default:
		blobs = storage.NewLocal(cfg.Storage.UploadDir, cfg.BaseURL)
		uploadDir = cfg.Storage.UploadDir
	}

	// 4. --- Core Services ---
	notifier := notify.NewService(st, publisher, logger)
	quotas := quota.NewManager(st, logger)
	contracts := contract.NewEngine(st, st, notifier, logger)
	market := marketplace.NewService(st, quotas, contracts, notifier, logger)

	app := &handlers.Handlers{
		Store:       st,
		Tokens:      auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL),
		Quota:       quotas,
		Contracts:   contracts,
		Marketplace: market,
		Messaging:   messaging.NewService(st, st, notifier, logger),
		Notify:      notifier,
		Blobs:       blobs,
		Stream:      stream,
		Billing: billing.NewService(billing.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
			Currency:      cfg.Stripe.Currency,
		}, quotas, st, logger),
		Logger: logger,
	}

	// 5. --- AI Assistant (Read-Only Database, optional) ---
	if cfg.AssistantEnabled() {
		dbReadOnly, err := database.OpenDBWithDSN(cfg.DSNReadOnly)
		if err != nil {
			log.Fatalf("Failed to connect to AI read-only database: %v", err)
		}
		defer dbReadOnly.Close()

		assistant, err := ai.NewGigAssistant(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, dbReadOnly, logger)
		if err != nil {
			log.Fatalf("Failed to initialize AI assistant: %v", err)
		}
		defer assistant.Close()
		app.Assistant = assistant
	} else {
		log.Println("WARNING: GEMINI_API_KEY or DB_DSN_READONLY not set. The assistant is disabled.")
	}

	// --- 6. Background Workers ---
	// Close gigs whose listing period has ended.
	go func() {
		ticker := time.NewTicker(cfg.GigExpiryInterval)
		defer ticker.Stop()

		logger.Info("gig expiry worker started", "interval", cfg.GigExpiryInterval)
		for range ticker.C {
			if _, err := market.ExpireGigs(ctx); err != nil {
				logger.Error("gig expiry failed", "error", err)
			}
		}
	}()

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		CORSOrigin: cfg.CORSOrigin,
		UploadDir:  uploadDir,
	})

	// --- Start Server ---
	log.Printf("Starting BaseGigs API server on port %s...", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
