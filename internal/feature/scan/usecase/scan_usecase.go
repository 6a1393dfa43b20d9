package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
)

// summaryTimeout はAIサマリー生成に許す時間の上限です。
const summaryTimeout = 30 * time.Second

// FrameSource は動画を先頭から順に読み、間引き済みのフレームを返すストリームです。
// 再始動はできません。
type FrameSource interface {
	// Info はコンテナのフレームレートと総フレーム数を返します。
	Info() entity.MediaInfo
	// Next は次のサンプルを返します。終端では io.EOF を返します。
	Next(ctx context.Context) (entity.SampledFrame, error)
	// Close はメディアハンドルを解放します。
	Close() error
}

// VideoOpener は動画ファイルをFrameSourceとして開くリポジトリインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type VideoOpener interface {
	// Open は stride フレームごとに1枚を scale 倍に縮小して返すFrameSourceを開きます。
	// 開けない場合は domain.ErrUnreadableMedia を返します。
	Open(ctx context.Context, path string, stride int, scale float64) (FrameSource, error)
}

// FrameMatcher は1フレームにロゴが映っているかを判定します。
// 1回の走査専用で、並行利用はできません。
type FrameMatcher interface {
	// Match はフレームの判定結果を返します。フレーム単位の失敗は false になります。
	Match(ctx context.Context, frame entity.SampledFrame) bool
	// Close は照合器が保持する資源を解放します。
	Close() error
}

// MatcherFactory は参照ロゴから走査ごとのFrameMatcherを準備します。
type MatcherFactory interface {
	// Prepare はロゴの特徴量を抽出します。
	// 特徴量が得られない場合は domain.ErrInsufficientFeatures を返します。
	Prepare(ctx context.Context, logo *image.Gray, brandHint string, policy MatchPolicy) (FrameMatcher, error)
}

// ReportSummarizer は走査結果の要約文を生成します。
type ReportSummarizer interface {
	Summarize(ctx context.Context, result *entity.ScanResult) (string, error)
}

// scanUsecase はロゴ露出検出と媒体価値算出のパイプラインです。
type scanUsecase struct {
	videos     VideoOpener
	matchers   MatcherFactory
	summarizer ReportSummarizer
	policy     Policy
}

// NewScanUsecase はscanUsecaseの新しいインスタンスを生成します。
// summarizer は nil でもよく、その場合サマリー生成は行いません。
func NewScanUsecase(videos VideoOpener, matchers MatcherFactory, summarizer ReportSummarizer, policy Policy) (*scanUsecase, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan policy: %w", err)
	}
	return &scanUsecase{videos: videos, matchers: matchers, summarizer: summarizer, policy: policy}, nil
}

// Policy は設定済みのPolicyを返します。
func (u *scanUsecase) Policy() Policy {
	return u.policy
}

// Scan は動画を1回走査し、ロゴの表示区間と媒体価値を算出します。
func (u *scanUsecase) Scan(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
	if req.VideoPath == "" {
		return nil, fmt.Errorf("video path is required: %w", domain.ErrUnreadableMedia)
	}

	// ロゴが準備できなければ以降の判定はすべて無意味なので、動画を開く前に失敗させる
	logo, err := DecodeLogo(req.Logo)
	if err != nil {
		return nil, err
	}
	matcher, err := u.matchers.Prepare(ctx, logo, req.BrandHint, u.policy.MatchPolicy())
	if err != nil {
		return nil, fmt.Errorf("prepare logo: %w", err)
	}
	defer func() {
		if err := matcher.Close(); err != nil {
			slog.Warn("failed to close frame matcher", "error", err)
		}
	}()

	if u.policy.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.policy.ScanTimeout)
		defer cancel()
	}

	src, err := u.videos.Open(ctx, req.VideoPath, u.policy.Stride, u.policy.DownscaleFactor)
	if err != nil {
		return nil, fmt.Errorf("open video %q: %w", req.VideoPath, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("failed to release video source", "path", req.VideoPath, "error", err)
		}
	}()

	info := src.Info()
	meta, err := u.resolveMetadata(req.Metadata, info)
	if err != nil {
		return nil, err
	}

	aggregator := NewPresenceAggregator(u.policy.MinEventSeconds, u.policy.CommitTrailingEvent)
	valuation := NewValuation(u.policy.CPM, SliceSeconds(u.policy.Stride, info.FPS), meta.DurationSeconds, meta.ViewCount)

	var samples int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w after %d samples: %v", domain.ErrScanCanceled, samples, err)
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w after %d samples: %v", domain.ErrScanCanceled, samples, ctxErr)
			}
			return nil, fmt.Errorf("read frame after %d samples: %w", samples, err)
		}
		samples++

		visible := matcher.Match(ctx, frame)
		if visible {
			valuation.Add(frame.TimestampSeconds)
		}
		aggregator.Observe(frame.TimestampSeconds, visible)
	}

	if pending, ok := aggregator.Pending(); ok && !u.policy.CommitTrailingEvent {
		slog.Info("dropping presence event still open at end of stream",
			"start", pending.StartSeconds, "end", pending.EndSeconds)
	}
	events := aggregator.Finish()

	result := BuildReport(meta, events, valuation.Total(), u.policy.Currency)
	result.SamplesAnalyzed = samples
	result.VisibleSamples = valuation.Samples()

	slog.Info("scan completed",
		"path", req.VideoPath,
		"samples", samples,
		"visible_samples", result.VisibleSamples,
		"clips", len(result.TimelineClips),
		"media_value", result.MediaValue,
		"currency", result.Currency,
	)

	if req.WithSummary && u.summarizer != nil {
		u.attachSummary(ctx, result)
	}
	return result, nil
}

// resolveMetadata はメタデータの欠損をメディア情報で補完します。
func (u *scanUsecase) resolveMetadata(meta entity.VideoMetadata, info entity.MediaInfo) (entity.VideoMetadata, error) {
	if meta.ViewCount < 0 {
		meta.ViewCount = 0
	}
	if meta.DurationSeconds < 0 {
		meta.DurationSeconds = 0
	}
	if meta.DurationSeconds > 0 {
		return meta, nil
	}
	if info.FPS > 0 {
		meta.DurationSeconds = info.DerivedDurationSeconds()
		return meta, nil
	}
	if u.policy.FailOnDegenerateMetadata {
		return meta, domain.ErrDegenerateMetadata
	}
	slog.Warn("video duration unknown; audience decay disabled, raw view count used",
		"views", meta.ViewCount)
	return meta, nil
}

// attachSummary はAIサマリーを付与します。失敗しても走査結果は返します。
func (u *scanUsecase) attachSummary(ctx context.Context, result *entity.ScanResult) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
	defer cancel()

	summary, err := u.summarizer.Summarize(sctx, result)
	if err != nil {
		slog.Warn("failed to summarize scan result", "error", err)
		return
	}
	result.Summary = summary
}
