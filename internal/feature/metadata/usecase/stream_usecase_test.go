package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/domain/entity"
	"exposure_backend/internal/feature/metadata/usecase"
)

// mockStreamProvider はStreamProviderのモック実装です。
type mockStreamProvider struct {
	name          string
	StreamURLFunc func(ctx context.Context, ref entity.Reference) (string, error)
	calls         []entity.Reference
}

func (m *mockStreamProvider) Name() string { return m.name }

func (m *mockStreamProvider) StreamURL(ctx context.Context, ref entity.Reference) (string, error) {
	m.calls = append(m.calls, ref)
	return m.StreamURLFunc(ctx, ref)
}

func TestStreamUsecase_ResolveStream(t *testing.T) {
	t.Parallel()

	youtubeOnly := func(ctx context.Context, ref entity.Reference) (string, error) {
		if ref.VideoID == "" {
			return "", domain.ErrUnsupportedReference
		}
		return "https://r1.example/" + ref.VideoID + ".mp4", nil
	}

	tests := []struct {
		name    string
		raw     string
		fn      func(ctx context.Context, ref entity.Reference) (string, error)
		want    string
		wantErr error
	}{
		{name: "youtube url", raw: "https://youtu.be/dQw4w9WgXcQ", fn: youtubeOnly, want: "https://r1.example/dQw4w9WgXcQ.mp4"},
		{name: "bare id", raw: " dQw4w9WgXcQ ", fn: youtubeOnly, want: "https://r1.example/dQw4w9WgXcQ.mp4"},
		{name: "empty", raw: "  ", fn: youtubeOnly, wantErr: domain.ErrInvalidReference},
		{name: "page url", raw: "https://example.com/watch/1", fn: youtubeOnly, wantErr: domain.ErrUnsupportedReference},
		{
			name: "provider failure",
			raw:  "dQw4w9WgXcQ",
			fn: func(ctx context.Context, ref entity.Reference) (string, error) {
				return "", errors.New("youtube player http 429")
			},
			wantErr: domain.ErrStreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mockStreamProvider{name: "youtube", StreamURLFunc: tt.fn}
			uc := usecase.NewStreamUsecase([]usecase.StreamProvider{p}, time.Second)

			got, err := uc.ResolveStream(context.Background(), tt.raw)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamUsecase_ResolveStream_ProviderTimeout(t *testing.T) {
	t.Parallel()

	p := &mockStreamProvider{name: "slow", StreamURLFunc: func(ctx context.Context, ref entity.Reference) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	uc := usecase.NewStreamUsecase([]usecase.StreamProvider{p}, 10*time.Millisecond)

	_, err := uc.ResolveStream(context.Background(), "dQw4w9WgXcQ")

	assert.ErrorIs(t, err, domain.ErrStreamUnavailable)
	require.Len(t, p.calls, 1)
}
