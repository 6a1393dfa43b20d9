// Package handler はscanフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"exposure_backend/internal/api"
	metadatadomain "exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
	scanusecase "exposure_backend/internal/feature/scan/usecase"
	infrahttp "exposure_backend/internal/platform/http"
	"exposure_backend/internal/platform/storage"
)

// HeaderScanID はレスポンスに付与する走査IDのヘッダー名です。
const HeaderScanID = "X-Scan-ID"

// ScanUsecase はロゴ露出走査のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type ScanUsecase interface {
	Scan(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error)
}

// MetadataResolver は動画参照からメタデータを解決します。
type MetadataResolver interface {
	Resolve(ctx context.Context, raw string) (entity.VideoMetadata, error)
}

// StreamResolver は動画参照（YouTubeのURL・ID）からダウンロード可能なストリームURLを求めます。
type StreamResolver interface {
	ResolveStream(ctx context.Context, raw string) (string, error)
}

// VideoStore は走査対象の動画を一時的に保存します。
type VideoStore interface {
	SaveUpload(fh *multipart.FileHeader) (string, error)
	Download(ctx context.Context, rawURL string) (string, error)
	Remove(p string)
}

// ScanHandler はロゴ露出走査のHTTPリクエストを処理します。
type ScanHandler struct {
	uc           ScanUsecase
	metadata     MetadataResolver
	streams      StreamResolver
	videos       VideoStore
	maxLogoBytes int64
}

// NewScanHandler はScanHandlerの新しいインスタンスを生成します。
// metadata は nil でもよく、その場合はフォームの値のみを使います。
// streams が nil の場合、動画参照だけのリクエストは受け付けません。
func NewScanHandler(uc ScanUsecase, metadata MetadataResolver, streams StreamResolver, videos VideoStore, maxLogoBytes int64) *ScanHandler {
	return &ScanHandler{uc: uc, metadata: metadata, streams: streams, videos: videos, maxLogoBytes: maxLogoBytes}
}

// Scan は動画とロゴを受け取り、ロゴの露出区間と媒体価値を返します。
//
// エンドポイント: POST /v1/scan
// Content-Type: multipart/form-data
// フィールド:
//   - logo（必須、ロゴ画像）
//   - video（動画ファイル）または video_url（http(s) の動画URL）
//   - video_ref / youtube_url（メタデータ解決用の動画参照。動画が指定されていなければYouTubeから取得）
//   - client_name（ブランド名のヒント、任意）
//   - title, channel, view_count, duration（メタデータの上書き、任意）
//   - summary（"true" でAIサマリーを生成）
func (h *ScanHandler) Scan(c *gin.Context) {
	scanID := uuid.NewString()
	c.Header(HeaderScanID, scanID)
	log := slog.With("scan_id", scanID, "remote_addr", c.ClientIP())

	logoHeader, err := c.FormFile("logo")
	if err != nil {
		log.Warn("ロゴファイルの取得に失敗", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "ロゴ画像が必要です"})
		return
	}
	if h.maxLogoBytes > 0 && logoHeader.Size > h.maxLogoBytes {
		log.Warn("ロゴファイルがサイズ上限を超過", "size", logoHeader.Size, "limit", h.maxLogoBytes)
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "ロゴ画像のサイズが上限を超えています"})
		return
	}
	logo, err := readFormFile(logoHeader)
	if err != nil {
		log.Error("ロゴデータの読み取りに失敗", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "ロゴ画像の読み込みに失敗しました"})
		return
	}

	// 動画の取得は重いため、ロゴが読めることを先に確認する
	if _, err := scanusecase.DecodeLogo(logo); err != nil {
		log.Warn("ロゴ画像のデコードに失敗", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "ロゴ画像を読み込めませんでした"})
		return
	}

	overrides, err := parseOverrides(c)
	if err != nil {
		log.Warn("メタデータの上書き値が不正", "error", err)
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "view_count と duration は0以上の整数で指定してください"})
		return
	}

	ref := strings.TrimSpace(c.PostForm("video_ref"))
	if ref == "" {
		ref = strings.TrimSpace(c.PostForm("youtube_url"))
	}

	videoPath, status, msg := h.storeVideo(c, log, ref)
	if status != 0 {
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	defer h.videos.Remove(videoPath)

	meta := overrides.apply(h.resolveMetadata(c.Request.Context(), log, ref))

	req := entity.ScanRequest{
		VideoPath:   videoPath,
		Logo:        logo,
		Metadata:    meta,
		BrandHint:   strings.TrimSpace(c.PostForm("client_name")),
		WithSummary: c.PostForm("summary") == "true",
	}
	result, err := h.uc.Scan(c.Request.Context(), req)
	if err != nil {
		status, msg := scanErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("走査に失敗", "error", err)
		} else {
			log.Warn("走査を拒否", "error", err)
		}
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, toScanResponse(scanID, result))
}

// storeVideo はアップロード、URL、動画参照の順に動画を取得して保存します。
// 失敗時は0以外のステータスとメッセージを返します。
func (h *ScanHandler) storeVideo(c *gin.Context, log *slog.Logger, ref string) (string, int, string) {
	if fh, err := c.FormFile("video"); err == nil {
		p, err := h.videos.SaveUpload(fh)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				log.Warn("動画ファイルがサイズ上限を超過", "error", err)
				return "", http.StatusRequestEntityTooLarge, "動画のサイズが上限を超えています"
			}
			log.Error("動画ファイルの保存に失敗", "error", err)
			return "", http.StatusInternalServerError, "動画の保存に失敗しました"
		}
		return p, 0, ""
	}

	videoURL := strings.TrimSpace(c.PostForm("video_url"))
	if videoURL == "" {
		if ref == "" || h.streams == nil {
			log.Warn("動画が指定されていない")
			return "", http.StatusBadRequest, "動画ファイル、video_url または youtube_url が必要です"
		}
		streamURL, err := h.streams.ResolveStream(c.Request.Context(), ref)
		switch {
		case err == nil:
			videoURL = streamURL
		case errors.Is(err, metadatadomain.ErrUnsupportedReference), errors.Is(err, metadatadomain.ErrInvalidReference):
			log.Warn("動画参照から動画を取得できない形式", "ref", ref, "error", err)
			return "", http.StatusBadRequest, "動画ファイル、video_url または youtube_url が必要です"
		default:
			log.Warn("動画参照のストリーム取得に失敗", "ref", ref, "error", err)
			return "", http.StatusUnprocessableEntity, "YouTubeの動画を取得できませんでした"
		}
	}

	p, err := h.videos.Download(c.Request.Context(), videoURL)
	switch {
	case err == nil:
		return p, 0, ""
	case errors.Is(err, storage.ErrInvalidURL):
		log.Warn("動画URLが不正", "url", videoURL)
		return "", http.StatusBadRequest, "video_url はhttpまたはhttpsのURLで指定してください"
	case errors.Is(err, infrahttp.ErrForbiddenAddress):
		log.Warn("内部アドレスへのダウンロードを拒否", "url", videoURL, "error", err)
		return "", http.StatusBadRequest, "video_url に内部ネットワークのアドレスは指定できません"
	case errors.Is(err, storage.ErrTooLarge):
		log.Warn("動画がサイズ上限を超過", "url", videoURL, "error", err)
		return "", http.StatusRequestEntityTooLarge, "動画のサイズが上限を超えています"
	case errors.Is(err, storage.ErrDownloadFailed):
		log.Warn("動画のダウンロードに失敗", "url", videoURL, "error", err)
		return "", http.StatusUnprocessableEntity, "動画を取得できませんでした"
	default:
		log.Error("動画の保存に失敗", "url", videoURL, "error", err)
		return "", http.StatusInternalServerError, "動画の保存に失敗しました"
	}
}

// resolveMetadata はメタデータを解決します。解決できなくても走査は続行します。
func (h *ScanHandler) resolveMetadata(ctx context.Context, log *slog.Logger, ref string) entity.VideoMetadata {
	if h.metadata == nil || ref == "" {
		return entity.VideoMetadata{}
	}
	meta, err := h.metadata.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, metadatadomain.ErrMetadataUnavailable) {
			log.Warn("メタデータを解決できないため既定値で走査", "ref", ref, "error", err)
		} else {
			log.Error("メタデータの解決に失敗", "ref", ref, "error", err)
		}
		return entity.VideoMetadata{}
	}
	return meta
}

// metadataOverrides はフォームで明示されたメタデータです。nilは未指定を意味します。
type metadataOverrides struct {
	title     *string
	channel   *string
	viewCount *int64
	duration  *int64
}

func parseOverrides(c *gin.Context) (metadataOverrides, error) {
	var o metadataOverrides
	if v, ok := c.GetPostForm("title"); ok && strings.TrimSpace(v) != "" {
		s := strings.TrimSpace(v)
		o.title = &s
	}
	if v, ok := c.GetPostForm("channel"); ok && strings.TrimSpace(v) != "" {
		s := strings.TrimSpace(v)
		o.channel = &s
	}
	var err error
	if o.viewCount, err = formInt(c, "view_count"); err != nil {
		return o, err
	}
	if o.duration, err = formInt(c, "duration"); err != nil {
		return o, err
	}
	return o, nil
}

func formInt(c *gin.Context, key string) (*int64, error) {
	v, ok := c.GetPostForm(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.New(key + " must not be negative")
	}
	return &n, nil
}

func (o metadataOverrides) apply(meta entity.VideoMetadata) entity.VideoMetadata {
	if o.title != nil {
		meta.Title = *o.title
	}
	if o.channel != nil {
		meta.Channel = *o.channel
	}
	if o.viewCount != nil {
		meta.ViewCount = *o.viewCount
	}
	if o.duration != nil {
		meta.DurationSeconds = *o.duration
	}
	return meta
}

// scanErrorStatus はドメインエラーをHTTPステータスとメッセージに変換します。
func scanErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnreadableImage):
		return http.StatusBadRequest, "ロゴ画像を読み込めませんでした"
	case errors.Is(err, domain.ErrInsufficientFeatures):
		return http.StatusBadRequest, "ロゴ画像から特徴量を抽出できませんでした"
	case errors.Is(err, domain.ErrUnreadableMedia):
		return http.StatusUnprocessableEntity, "動画を読み込めませんでした"
	case errors.Is(err, domain.ErrDegenerateMetadata):
		return http.StatusUnprocessableEntity, "動画の長さを特定できませんでした"
	case errors.Is(err, domain.ErrScanCanceled):
		return http.StatusGatewayTimeout, "走査がタイムアウトしました"
	default:
		return http.StatusInternalServerError, "走査に失敗しました"
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("ロゴファイルのクローズに失敗", "error", err)
		}
	}()
	return io.ReadAll(f)
}

func toScanResponse(scanID string, r *entity.ScanResult) api.ScanResponse {
	clips := make([]api.ClipResponse, 0, len(r.TimelineClips))
	for _, c := range r.TimelineClips {
		clips = append(clips, api.ClipResponse{
			Start:      c.StartTimecode,
			End:        c.EndTimecode,
			SecondsRaw: c.StartSecondsRaw,
			Duration:   c.DurationSeconds,
		})
	}
	return api.ScanResponse{
		ScanID:                 scanID,
		VideoTitle:             nullable(r.VideoTitle),
		Channel:                nullable(r.Channel),
		TotalViews:             r.TotalViews,
		TotalScreenTimeSeconds: r.TotalScreenTimeSeconds,
		MediaValue:             r.MediaValue,
		Currency:               r.Currency,
		TimelineClips:          clips,
		SamplesAnalyzed:        r.SamplesAnalyzed,
		VisibleSamples:         r.VisibleSamples,
		Summary:                r.Summary,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
