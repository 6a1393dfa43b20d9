// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exposure_backend/internal/feature/scan/adapters/gemini"
	"exposure_backend/internal/feature/scan/adapters/opencv"
	"exposure_backend/internal/feature/scan/adapters/vision"
	"exposure_backend/internal/feature/scan/usecase"
	"exposure_backend/internal/platform/config"
	infrahttp "exposure_backend/internal/platform/http"
	"exposure_backend/internal/platform/storage"
	"exposure_backend/internal/shared/ratelimiter"
)

// Closer releases a resource created by a factory.
type Closer func() error

// NewMatcherFactory creates the frame matcher backend selected in the config.
// The returned Closer must be called on shutdown.
func NewMatcherFactory(ctx context.Context, cfg config.MatcherConfig) (usecase.MatcherFactory, Closer, error) {
	switch cfg.Backend {
	case config.MatcherVision:
		annotator, err := vision.NewAPIAnnotator(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("vision client: %w", err)
		}
		limiter := ratelimiter.NewRateLimiter(cfg.VisionRateLimit, time.Minute)
		slog.Info("using Cloud Vision matcher", "min_score", cfg.VisionMinScore, "rate_limit", cfg.VisionRateLimit)
		return vision.NewMatcherFactory(annotator, float32(cfg.VisionMinScore), limiter), annotator.Close, nil
	default:
		slog.Info("using SIFT/FLANN matcher")
		return opencv.NewMatcherFactory(), func() error { return nil }, nil
	}
}

// NewSummarizer creates the Gemini-backed summarizer, or nil when disabled.
func NewSummarizer(ctx context.Context, enabled bool) (usecase.ReportSummarizer, error) {
	if !enabled {
		return nil, nil
	}
	client, err := gemini.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return gemini.NewSummarizer(client), nil
}

// NewTempStore creates the temporary video store with a download client.
func NewTempStore(cfg config.StorageConfig) *storage.TempStore {
	return storage.NewTempStore(cfg.TempDir, cfg.MaxVideoBytes, infrahttp.NewDownloadClient(cfg.HeaderTimeout))
}
