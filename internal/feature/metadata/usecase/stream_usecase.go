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
)

// StreamProvider は動画参照からダウンロード可能なストリームURLを求めます。
type StreamProvider interface {
	Name() string
	// StreamURL は扱えない参照には domain.ErrUnsupportedReference を返します。
	StreamURL(ctx context.Context, ref entity.Reference) (string, error)
}

// StreamUsecase は動画参照からストリームURLを解決するユースケースです。
type StreamUsecase interface {
	ResolveStream(ctx context.Context, raw string) (string, error)
}

var _ StreamUsecase = (*streamUsecase)(nil)

type streamUsecase struct {
	providers []StreamProvider
	timeout   time.Duration
}

// NewStreamUsecase はstreamUsecaseの新しいインスタンスを生成します。
func NewStreamUsecase(providers []StreamProvider, timeout time.Duration) *streamUsecase {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &streamUsecase{providers: providers, timeout: timeout}
}

// ResolveStream は動画参照のストリームURLを返します。
// どのプロバイダーも参照を扱えない場合は domain.ErrUnsupportedReference、
// 扱えたが取得に失敗した場合は domain.ErrStreamUnavailable を返します。
func (u *streamUsecase) ResolveStream(ctx context.Context, raw string) (string, error) {
	ref := ParseReference(raw)
	if ref.IsZero() {
		return "", domain.ErrInvalidReference
	}

	var errs []string
	for _, p := range u.providers {
		pctx, cancel := context.WithTimeout(ctx, u.timeout)
		streamURL, err := p.StreamURL(pctx, ref)
		cancel()
		if err == nil {
			slog.Info("video stream resolved", "provider", p.Name(), "key", ref.Key())
			return streamURL, nil
		}
		if errors.Is(err, domain.ErrUnsupportedReference) {
			continue
		}
		slog.Warn("stream provider failed", "provider", p.Name(), "key", ref.Key(), "error", err)
		errs = append(errs, p.Name()+": "+err.Error())
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedReference, ref.Raw)
	}
	return "", fmt.Errorf("%w: %s", domain.ErrStreamUnavailable, strings.Join(errs, "; "))
}
