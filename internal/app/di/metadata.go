package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"exposure_backend/internal/feature/metadata/adapters/catalog"
	"exposure_backend/internal/feature/metadata/adapters/pagemeta"
	"exposure_backend/internal/feature/metadata/adapters/youtube"
	"exposure_backend/internal/feature/metadata/usecase"
	"exposure_backend/internal/platform/cache"
	"exposure_backend/internal/platform/config"
	infrahttp "exposure_backend/internal/platform/http"
)

// NewMetadataProviders creates the remote metadata providers in lookup order.
// If Redis is available, each provider is wrapped with a cache.
func NewMetadataProviders(rdb *redis.Client, cfg config.MetadataConfig) []usecase.RemoteProvider {
	ytCfg := youtube.LoadConfig()
	providers := []usecase.RemoteProvider{
		youtube.NewClient(ytCfg, infrahttp.NewHTTPClient(ytCfg.Timeout)),
		pagemeta.NewScraper(infrahttp.NewHTTPClient(cfg.Timeout)),
	}
	if rdb == nil {
		return providers
	}
	for i, p := range providers {
		providers[i] = cache.NewCachingMetadataProvider(rdb, cfg.CacheTTL, p, "metadata")
	}
	return providers
}

// NewCatalogRepository creates a CatalogRepository implementation.
// If no database is configured, it returns nil and the catalog is disabled.
func NewCatalogRepository(db *gorm.DB) usecase.CatalogRepository {
	if db == nil {
		return nil
	}
	return catalog.NewCatalogRepository(db)
}

// NewMetadataUsecase wires the catalog and remote providers.
func NewMetadataUsecase(db *gorm.DB, rdb *redis.Client, cfg config.MetadataConfig) usecase.MetadataUsecase {
	return usecase.NewMetadataUsecase(NewCatalogRepository(db), NewMetadataProviders(rdb, cfg), cfg.Timeout)
}

// NewStreamUsecase wires the providers that can turn a video reference into a downloadable stream.
// Stream URLs expire quickly, so they are never cached.
func NewStreamUsecase(cfg config.MetadataConfig) usecase.StreamUsecase {
	ytCfg := youtube.LoadConfig()
	providers := []usecase.StreamProvider{
		youtube.NewClient(ytCfg, infrahttp.NewHTTPClient(ytCfg.Timeout)),
	}
	return usecase.NewStreamUsecase(providers, cfg.Timeout)
}
