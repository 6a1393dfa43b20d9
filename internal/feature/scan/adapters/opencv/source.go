// Package opencv はOpenCV（gocv）を使用した動画サンプリングと特徴量照合を提供します。
package opencv

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"gocv.io/x/gocv"

	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/usecase"
)

// VideoOpener はOpenCVのVideoCaptureで動画ファイルを開きます。
type VideoOpener struct{}

// VideoOpenerがusecase.VideoOpenerを実装していることをコンパイル時に検証します。
var _ usecase.VideoOpener = (*VideoOpener)(nil)

// NewVideoOpener はVideoOpenerの新しいインスタンスを生成します。
func NewVideoOpener() *VideoOpener {
	return &VideoOpener{}
}

// Open は動画ファイルを開き、stride フレームごとに縮小・グレースケール化したフレームを返すソースを生成します。
func (o *VideoOpener) Open(ctx context.Context, path string, stride int, scale float64) (usecase.FrameSource, error) {
	if stride < 1 {
		return nil, fmt.Errorf("stride must be at least 1, got %d", stride)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableMedia, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnreadableMedia, path)
	}

	info := entity.MediaInfo{
		FPS:        vc.Get(gocv.VideoCaptureFPS),
		FrameCount: int64(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	slog.Info("video opened", "path", path, "fps", info.FPS, "frames", info.FrameCount)

	return &frameSource{
		vc:     vc,
		info:   info,
		stride: int64(stride),
		scale:  scale,
		frame:  gocv.NewMat(),
		small:  gocv.NewMat(),
		gray:   gocv.NewMat(),
	}, nil
}

// frameSource はVideoCaptureを順に読み進めるFrameSource実装です。
// 間引かれたフレームはデコードのみ行い、解析しません。
type frameSource struct {
	vc      *gocv.VideoCapture
	info    entity.MediaInfo
	stride  int64
	scale   float64
	decoded int64
	frame   gocv.Mat
	small   gocv.Mat
	gray    gocv.Mat
	closed  bool
}

func (s *frameSource) Info() entity.MediaInfo {
	return s.info
}

func (s *frameSource) Next(ctx context.Context) (entity.SampledFrame, error) {
	for {
		if s.closed {
			return entity.SampledFrame{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return entity.SampledFrame{}, err
		}
		if ok := s.vc.Read(&s.frame); !ok || s.frame.Empty() {
			// 終端に達した時点でハンドルを解放する
			if err := s.Close(); err != nil {
				slog.Warn("failed to release video capture", "error", err)
			}
			return entity.SampledFrame{}, io.EOF
		}
		s.decoded++
		if s.decoded%s.stride != 0 {
			continue
		}

		return entity.SampledFrame{
			Index:            s.decoded,
			TimestampSeconds: s.timestamp(),
			Image:            s.intensity(),
		}, nil
	}
}

// Close は冪等です。
func (s *frameSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.frame.Close()
	_ = s.small.Close()
	_ = s.gray.Close()
	return s.vc.Close()
}

func (s *frameSource) timestamp() float64 {
	if s.info.FPS <= 0 {
		return 0
	}
	return float64(s.decoded) / s.info.FPS
}

// intensity は現在のフレームを縮小・グレースケール化します。
// 変換に失敗したフレームは nil を返し、照合では「表示なし」として扱われます。
func (s *frameSource) intensity() *image.Gray {
	gocv.Resize(s.frame, &s.small, image.Point{}, s.scale, s.scale, gocv.InterpolationLinear)
	if s.small.Channels() == 1 {
		s.small.CopyTo(&s.gray)
	} else {
		gocv.CvtColor(s.small, &s.gray, gocv.ColorBGRToGray)
	}

	img, err := s.gray.ToImage()
	if err != nil {
		slog.Debug("failed to convert frame", "index", s.decoded, "error", err)
		return nil
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		slog.Debug("unexpected frame image type", "index", s.decoded, "type", fmt.Sprintf("%T", img))
		return nil
	}
	return gray
}
