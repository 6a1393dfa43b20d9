package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/domain/entity"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

// DefaultProviderTimeout は1つのリモートプロバイダーに許す時間です。
const DefaultProviderTimeout = 10 * time.Second

// CatalogRepository は運用者が登録した動画メタデータのリポジトリです。
type CatalogRepository interface {
	// Find は登録済みのメタデータを返します。未登録なら domain.ErrNotFound を返します。
	Find(ctx context.Context, key string) (scanentity.VideoMetadata, error)
	// Upsert はメタデータを登録または更新します。
	Upsert(ctx context.Context, key string, meta scanentity.VideoMetadata) error
}

// RemoteProvider は外部サービスから動画メタデータを取得するインターフェースです。
type RemoteProvider interface {
	// Name はログに使うプロバイダー名です。
	Name() string
	// Fetch は参照に対応するメタデータを返します。
	// 扱えない参照には domain.ErrUnsupportedReference を返します。
	Fetch(ctx context.Context, ref entity.Reference) (scanentity.VideoMetadata, error)
}

// MetadataUsecase は動画メタデータの解決を扱うユースケースです。
type MetadataUsecase interface {
	Resolve(ctx context.Context, raw string) (scanentity.VideoMetadata, error)
	UpsertCatalog(ctx context.Context, raw string, meta scanentity.VideoMetadata) error
}

type metadataUsecase struct {
	catalog   CatalogRepository
	providers []RemoteProvider
	timeout   time.Duration
}

// NewMetadataUsecase はmetadataUsecaseの新しいインスタンスを生成します。
// catalog は nil でもよく、その場合はリモートプロバイダーのみを使います。
func NewMetadataUsecase(catalog CatalogRepository, providers []RemoteProvider, timeout time.Duration) *metadataUsecase {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &metadataUsecase{catalog: catalog, providers: providers, timeout: timeout}
}

// Resolve は動画参照のメタデータを カタログ → リモートプロバイダー の順に解決します。
// 空の参照にはゼロ値を返します。すべて失敗した場合は domain.ErrMetadataUnavailable を返します。
func (u *metadataUsecase) Resolve(ctx context.Context, raw string) (scanentity.VideoMetadata, error) {
	ref := ParseReference(raw)
	if ref.IsZero() {
		return scanentity.VideoMetadata{}, nil
	}
	key := ref.Key()

	if u.catalog != nil {
		meta, err := u.catalog.Find(ctx, key)
		switch {
		case err == nil:
			slog.Debug("metadata resolved from catalog", "key", key)
			return meta, nil
		case !errors.Is(err, domain.ErrNotFound):
			slog.Warn("catalog lookup failed", "key", key, "error", err)
		}
	}

	var errs []string
	for _, p := range u.providers {
		meta, err := u.fetch(ctx, p, ref)
		if err == nil {
			slog.Info("metadata resolved", "provider", p.Name(), "key", key, "views", meta.ViewCount, "duration", meta.DurationSeconds)
			return meta, nil
		}
		if errors.Is(err, domain.ErrUnsupportedReference) {
			continue
		}
		if ctx.Err() != nil {
			return scanentity.VideoMetadata{}, fmt.Errorf("%w: %v", domain.ErrMetadataUnavailable, ctx.Err())
		}
		slog.Warn("metadata provider failed", "provider", p.Name(), "key", key, "error", err)
		errs = append(errs, p.Name()+": "+err.Error())
	}

	if len(errs) == 0 {
		return scanentity.VideoMetadata{}, fmt.Errorf("%w: no provider accepts %q", domain.ErrMetadataUnavailable, ref.Raw)
	}
	return scanentity.VideoMetadata{}, fmt.Errorf("%w: %s", domain.ErrMetadataUnavailable, strings.Join(errs, "; "))
}

func (u *metadataUsecase) fetch(ctx context.Context, p RemoteProvider, ref entity.Reference) (scanentity.VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	return p.Fetch(ctx, ref)
}

// UpsertCatalog は動画参照にメタデータを登録します。
func (u *metadataUsecase) UpsertCatalog(ctx context.Context, raw string, meta scanentity.VideoMetadata) error {
	if u.catalog == nil {
		return errors.New("catalog is not configured")
	}
	ref := ParseReference(raw)
	if ref.IsZero() {
		return domain.ErrInvalidReference
	}
	if meta.ViewCount < 0 || meta.DurationSeconds < 0 {
		return domain.ErrInvalidMetadata
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Channel = strings.TrimSpace(meta.Channel)

	if err := u.catalog.Upsert(ctx, ref.Key(), meta); err != nil {
		return fmt.Errorf("upsert catalog %q: %w", ref.Key(), err)
	}
	slog.Info("catalog entry upserted", "key", ref.Key(), "title", meta.Title)
	return nil
}
