package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"exposure_backend/internal/app/di"
	"exposure_backend/internal/app/router"
	metadatahandler "exposure_backend/internal/feature/metadata/transport/handler"
	"exposure_backend/internal/feature/scan/adapters/opencv"
	scanhandler "exposure_backend/internal/feature/scan/transport/handler"
	scanusecase "exposure_backend/internal/feature/scan/usecase"
	"exposure_backend/internal/platform/config"
	infradb "exposure_backend/internal/platform/db"
	"exposure_backend/internal/platform/http/handler"
	jwtmw "exposure_backend/internal/platform/jwt"
	infraredis "exposure_backend/internal/platform/redis"
)

func main() {
	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handler.Check{}

	// db（カタログ）
	var db *gorm.DB
	if infradb.Enabled() {
		db, err = infradb.OpenDB(infradb.LoadConfigFromEnv())
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		checks["db"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	} else {
		slog.Warn("database not configured. Running without catalog.")
	}

	// Redis
	var rdb *redisv9.Client
	if infraredis.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx); err != nil {
			slog.Warn("Redis unavailable. Running without cache.", "error", err)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
			checks["redis"] = func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}
		}
	}

	// Adapter
	matchers, closeMatchers, err := di.NewMatcherFactory(ctx, cfg.Matcher)
	if err != nil {
		slog.Error("failed to create matcher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeMatchers(); err != nil {
			slog.Error("failed to close matcher", "error", err)
		}
	}()
	summarizer, err := di.NewSummarizer(ctx, cfg.GeminiEnabled)
	if err != nil {
		slog.Error("failed to create summarizer", "error", err)
		os.Exit(1)
	}

	// Usecase
	scanUC, err := scanusecase.NewScanUsecase(opencv.NewVideoOpener(), matchers, summarizer, cfg.Policy)
	if err != nil {
		slog.Error("failed to create scan usecase", "error", err)
		os.Exit(1)
	}
	metadataUC := di.NewMetadataUsecase(db, rdb, cfg.Metadata)

	// Handler
	scanH := scanhandler.NewScanHandler(scanUC, metadataUC, di.NewStreamUsecase(cfg.Metadata), di.NewTempStore(cfg.Storage), cfg.Storage.MaxLogoBytes)
	var catalogH *metadatahandler.CatalogHandler
	if db != nil {
		catalogH = metadatahandler.NewCatalogHandler(metadataUC)
	}

	// ルータ生成
	r := router.NewRouter(scanH, catalogH, checks)

	// JWT_SECRETチェック（開発中の注意喚起）
	if os.Getenv(jwtmw.EnvKeyJWTSecret) == "" {
		slog.Warn("JWT_SECRET is not set. Set a strong secret in production.")
	}

	slog.Info("starting server", "port", cfg.Port, "matcher", cfg.Matcher.Backend, "currency", cfg.Policy.Currency)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
