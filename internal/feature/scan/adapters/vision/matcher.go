// Package vision はGoogle Cloud Vision APIのロゴ検出を使ったフレーム照合を提供します。
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/usecase"
	"exposure_backend/internal/shared/ratelimiter"
)

const (
	// DefaultMinScore はフレーム内のロゴを採用する最低スコアです。
	DefaultMinScore = 0.5
	// jpegQuality はAPIへ送る画像の品質です。
	jpegQuality = 85
	// maxLogoResults は1枚の画像で受け取る検出結果の上限です。
	maxLogoResults = 10
)

// Annotation はVision APIが検出したロゴ1件です。
type Annotation struct {
	Description string
	Score       float32
}

// LogoAnnotator は画像からブランドロゴを検出するインターフェースです。
type LogoAnnotator interface {
	DetectLogos(ctx context.Context, imageData []byte) ([]Annotation, error)
}

// APIAnnotator はVision APIのLOGO_DETECTIONを呼び出すLogoAnnotatorです。
type APIAnnotator struct {
	client *gvision.ImageAnnotatorClient
}

var _ LogoAnnotator = (*APIAnnotator)(nil)

// NewAPIAnnotator はADCで認証したAPIAnnotatorを生成します。
func NewAPIAnnotator(ctx context.Context) (*APIAnnotator, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vision annotator: %w", err)
	}
	return &APIAnnotator{client: client}, nil
}

// Close はgRPC接続を閉じます。
func (a *APIAnnotator) Close() error {
	return a.client.Close()
}

func (a *APIAnnotator) DetectLogos(ctx context.Context, imageData []byte) ([]Annotation, error) {
	resp, err := a.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: imageData},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_LOGO_DETECTION, MaxResults: maxLogoResults}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision logo detection: %w", err)
	}
	return logoAnnotations(resp)
}

// logoAnnotations はバッチ応答の先頭画像からブランド名付きの検出結果を取り出します。
func logoAnnotations(resp *visionpb.BatchAnnotateImagesResponse) ([]Annotation, error) {
	if resp == nil || len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil {
		return nil, fmt.Errorf("vision logo detection: code %d: %s", st.GetCode(), st.GetMessage())
	}
	var out []Annotation
	for _, l := range r.GetLogoAnnotations() {
		if strings.TrimSpace(l.GetDescription()) == "" {
			continue
		}
		out = append(out, Annotation{Description: l.GetDescription(), Score: l.GetScore()})
	}
	return out, nil
}

// MatcherFactory はVision APIで参照ロゴのブランドを特定し、フレームごとに同じブランドを探すFrameMatcherを生成します。
// 比率テストの閾値はこの方式では使われず、代わりに MinScore で判定します。
type MatcherFactory struct {
	annotator LogoAnnotator
	minScore  float32
	limiter   ratelimiter.RateLimiterInterface
}

// MatcherFactoryがusecase.MatcherFactoryを実装していることをコンパイル時に検証します。
var _ usecase.MatcherFactory = (*MatcherFactory)(nil)

// NewMatcherFactory はMatcherFactoryの新しいインスタンスを生成します。
// limiter はすべての走査で共有され、APIのクォータを守ります。
func NewMatcherFactory(annotator LogoAnnotator, minScore float32, limiter ratelimiter.RateLimiterInterface) *MatcherFactory {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &MatcherFactory{annotator: annotator, minScore: minScore, limiter: limiter}
}

// Prepare は参照ロゴからブランド名を特定します。
// ロゴから特定できない場合は brandHint を使い、どちらもなければ domain.ErrInsufficientFeatures を返します。
func (f *MatcherFactory) Prepare(ctx context.Context, logo *image.Gray, brandHint string, _ usecase.MatchPolicy) (usecase.FrameMatcher, error) {
	if logo == nil {
		return nil, domain.ErrUnreadableImage
	}
	data, err := encodeJPEG(logo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}

	f.limiter.WaitIfNeeded()
	annotations, err := f.annotator.DetectLogos(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("annotate reference logo: %w", err)
	}

	brand := strings.TrimSpace(brandHint)
	if best, ok := bestAnnotation(annotations); ok {
		brand = best.Description
	}
	if brand == "" {
		return nil, domain.ErrInsufficientFeatures
	}
	slog.Info("reference logo brand resolved", "brand", brand, "hint", brandHint)

	return &brandMatcher{
		annotator: f.annotator,
		limiter:   f.limiter,
		brand:     brand,
		minScore:  f.minScore,
	}, nil
}

// brandMatcher はフレーム内に特定ブランドのロゴがあるかを判定します。
type brandMatcher struct {
	annotator LogoAnnotator
	limiter   ratelimiter.RateLimiterInterface
	brand     string
	minScore  float32
}

func (m *brandMatcher) Match(ctx context.Context, frame entity.SampledFrame) bool {
	if frame.Image == nil {
		return false
	}
	data, err := encodeJPEG(frame.Image)
	if err != nil {
		slog.Debug("failed to encode frame", "index", frame.Index, "error", err)
		return false
	}

	m.limiter.WaitIfNeeded()
	annotations, err := m.annotator.DetectLogos(ctx, data)
	if err != nil {
		slog.Warn("vision logo detection failed for frame", "index", frame.Index, "error", err)
		return false
	}
	for _, a := range annotations {
		if strings.EqualFold(a.Description, m.brand) && a.Score >= m.minScore {
			return true
		}
	}
	return false
}

func (m *brandMatcher) Close() error {
	return nil
}

func bestAnnotation(annotations []Annotation) (Annotation, bool) {
	var best Annotation
	found := false
	for _, a := range annotations {
		if a.Description == "" {
			continue
		}
		if !found || a.Score > best.Score {
			best = a
			found = true
		}
	}
	return best, found
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
