package main

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/shipfolio/shipfolio/api"
	"github.com/shipfolio/shipfolio/config"
	"github.com/shipfolio/shipfolio/health"
	"github.com/shipfolio/shipfolio/logger"
	"github.com/shipfolio/shipfolio/mailer"
	"github.com/shipfolio/shipfolio/persistence"
	"github.com/shipfolio/shipfolio/ratelimit"
	"github.com/shipfolio/shipfolio/storage"
	"github.com/shipfolio/shipfolio/token"
)

const version = "1.0.0"

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting shipfolio API",
		zap.Int("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("db_type", cfg.DBType),
	)

	if cfg.UsingFallbackSecret() {
		logger.Log.Warn("DOWNLOAD_TOKEN_SECRET not set, download links are forgeable; fine for development only")
	}

	repo, err := persistence.Open(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		logger.Log.Fatal("failed to open database", zap.Error(err))
	}
	if !cfg.SkipAutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		logger.Log.Fatal("failed to create snowflake node", zap.Error(err))
	}

	h := api.NewHandler(
		repo,
		token.NewDownloadService(cfg.DownloadTokenSecret),
		token.NewProfileService(),
		store,
		newMailer(cfg),
		node,
		cfg.SiteURL,
	)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(api.SecurityHeaders(cfg.IsProduction()))
	e.Use(api.RateLimit(ratelimit.NewLimiter()))

	hm := health.NewManager(version)
	hm.RegisterFunc("database", repo.Ping)
	e.GET("/healthz", hm.Live)
	e.GET("/ready", hm.Ready)

	h.RegisterRoutes(e.Group("/api"))

	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		return storage.NewS3Store(context.Background(),
			cfg.S3Region, cfg.S3Bucket, cfg.S3BaseEndpoint, cfg.S3AccessKey, cfg.S3SecretKey)
	default:
		return storage.NewLocalStore(cfg.FileBaseURL), nil
	}
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if cfg.MailAPIURL == "" || cfg.MailAPIKey == "" {
		logger.Log.Warn("mail provider not configured, emails will be logged instead of sent")
		return mailer.NewLogMailer(logger.Log)
	}
	return mailer.NewAPIMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
}
