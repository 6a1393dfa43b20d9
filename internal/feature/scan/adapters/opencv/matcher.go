package opencv

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/usecase"
)

// knn は1記述子あたりに取得する近傍数です。比率テストには2つ必要です。
const knn = 2

// MatcherFactory はSIFT特徴量とFLANN近傍探索でロゴを照合するFrameMatcherを生成します。
type MatcherFactory struct{}

// MatcherFactoryがusecase.MatcherFactoryを実装していることをコンパイル時に検証します。
var _ usecase.MatcherFactory = (*MatcherFactory)(nil)

// NewMatcherFactory はMatcherFactoryの新しいインスタンスを生成します。
func NewMatcherFactory() *MatcherFactory {
	return &MatcherFactory{}
}

// Prepare はロゴからSIFT記述子を1度だけ抽出します。
// brandHint はこの照合方式では使用しません。
func (f *MatcherFactory) Prepare(ctx context.Context, logo *image.Gray, brandHint string, policy usecase.MatchPolicy) (usecase.FrameMatcher, error) {
	if logo == nil {
		return nil, domain.ErrUnreadableImage
	}
	mat, err := gocv.ImageGrayToMatGray(logo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}
	defer mat.Close()

	sift := gocv.NewSIFT()
	mask := gocv.NewMat()
	kps, desc := sift.DetectAndCompute(mat, mask)
	if desc.Empty() || desc.Rows() == 0 {
		_ = desc.Close()
		_ = mask.Close()
		_ = sift.Close()
		return nil, domain.ErrInsufficientFeatures
	}
	slog.Info("logo features extracted", "keypoints", len(kps), "descriptors", desc.Rows())

	return &siftMatcher{
		sift:     sift,
		flann:    gocv.NewFlannBasedMatcher(),
		mask:     mask,
		logoDesc: desc,
		policy:   policy,
	}, nil
}

// siftMatcher は1回の走査専用のFrameMatcherです。FLANNの索引は並行利用できません。
type siftMatcher struct {
	sift     gocv.SIFT
	flann    gocv.FlannBasedMatcher
	mask     gocv.Mat
	logoDesc gocv.Mat
	policy   usecase.MatchPolicy
}

func (m *siftMatcher) Match(ctx context.Context, frame entity.SampledFrame) bool {
	if frame.Image == nil {
		return false
	}
	mat, err := gocv.ImageGrayToMatGray(frame.Image)
	if err != nil {
		slog.Debug("failed to load frame into matrix", "index", frame.Index, "error", err)
		return false
	}
	defer mat.Close()

	_, desc := m.sift.DetectAndCompute(mat, m.mask)
	defer desc.Close()
	// 近傍が2つ取れないフレームは比率テストを通過し得ない
	if desc.Empty() || desc.Rows() < knn {
		return false
	}

	matches := m.flann.KnnMatch(m.logoDesc, desc, knn)
	return m.policy.Visible(distances(matches))
}

func (m *siftMatcher) Close() error {
	_ = m.logoDesc.Close()
	_ = m.mask.Close()
	_ = m.flann.Close()
	return m.sift.Close()
}

// distances はkNNの結果を距離の配列に変換します。
func distances(matches [][]gocv.DMatch) [][]float64 {
	out := make([][]float64, 0, len(matches))
	for _, candidates := range matches {
		d := make([]float64, len(candidates))
		for i, c := range candidates {
			d[i] = c.Distance
		}
		out = append(out, d)
	}
	return out
}
