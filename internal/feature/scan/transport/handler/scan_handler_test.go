package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposure_backend/internal/feature/metadata/adapters/youtube"
	metadatadomain "exposure_backend/internal/feature/metadata/domain"
	metadatausecase "exposure_backend/internal/feature/metadata/usecase"
	"exposure_backend/internal/feature/scan/domain"
	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/transport/handler"
	infrahttp "exposure_backend/internal/platform/http"
	"exposure_backend/internal/platform/storage"
)

// mockScanUsecase はScanUsecaseインターフェースのモック実装です。
type mockScanUsecase struct {
	ScanFunc func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error)
	got      *entity.ScanRequest
}

func (m *mockScanUsecase) Scan(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
	m.got = &req
	return m.ScanFunc(ctx, req)
}

// mockResolver はMetadataResolverインターフェースのモック実装です。
type mockResolver struct {
	ResolveFunc func(ctx context.Context, raw string) (entity.VideoMetadata, error)
	calledWith  string
}

func (m *mockResolver) Resolve(ctx context.Context, raw string) (entity.VideoMetadata, error) {
	m.calledWith = raw
	return m.ResolveFunc(ctx, raw)
}

// mockStreamResolver はStreamResolverインターフェースのモック実装です。
type mockStreamResolver struct {
	ResolveStreamFunc func(ctx context.Context, raw string) (string, error)
	calledWith        string
}

func (m *mockStreamResolver) ResolveStream(ctx context.Context, raw string) (string, error) {
	m.calledWith = raw
	return m.ResolveStreamFunc(ctx, raw)
}

// mockVideoStore はVideoStoreインターフェースのモック実装です。
type mockVideoStore struct {
	SaveUploadFunc func(fh *multipart.FileHeader) (string, error)
	DownloadFunc   func(ctx context.Context, rawURL string) (string, error)
	calls          int
	removed        []string
}

func (m *mockVideoStore) SaveUpload(fh *multipart.FileHeader) (string, error) {
	m.calls++
	return m.SaveUploadFunc(fh)
}

func (m *mockVideoStore) Download(ctx context.Context, rawURL string) (string, error) {
	m.calls++
	return m.DownloadFunc(ctx, rawURL)
}

func (m *mockVideoStore) Remove(p string) {
	m.removed = append(m.removed, p)
}

func okStore() *mockVideoStore {
	return &mockVideoStore{
		SaveUploadFunc: func(fh *multipart.FileHeader) (string, error) { return "/tmp/scan-upload.mp4", nil },
		DownloadFunc:   func(ctx context.Context, rawURL string) (string, error) { return "/tmp/scan-download.mp4", nil },
	}
}

type formFile struct {
	field, name string
	content     []byte
}

// createScanRequest はテスト用のマルチパートリクエストを生成するヘルパー関数です。
func createScanRequest(t *testing.T, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/scan", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// encodeLogo はテスト用の小さなPNGロゴを生成します。
func encodeLogo() []byte {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x ^ y) * 16)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var (
	logoPNG   = encodeLogo()
	logoFile  = formFile{field: "logo", name: "logo.png", content: logoPNG}
	videoFile = formFile{field: "video", name: "match.mp4", content: []byte("fake-video")}
)

func sampleResult() *entity.ScanResult {
	return &entity.ScanResult{
		VideoTitle:             "Final",
		TotalViews:             1000,
		TotalScreenTimeSeconds: 2.33,
		MediaValue:             1.5,
		Currency:               "brl",
		TimelineClips: []entity.ClipReport{
			{StartTimecode: "0:00:01", EndTimecode: "0:00:03", StartSecondsRaw: 1.0, DurationSeconds: 2.33},
		},
		SamplesAnalyzed: 30,
		VisibleSamples:  7,
	}
}

func serve(t *testing.T, h *handler.ScanHandler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/scan", h.Scan)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScanHandler_Scan_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
		return sampleResult(), nil
	}}
	resolver := &mockResolver{ResolveFunc: func(ctx context.Context, raw string) (entity.VideoMetadata, error) {
		return entity.VideoMetadata{Title: "Remote", Channel: "Chan", ViewCount: 500, DurationSeconds: 60}, nil
	}}
	store := okStore()
	h := handler.NewScanHandler(uc, resolver, nil, store, 1<<20)

	req := createScanRequest(t, map[string]string{
		"youtube_url": "https://youtu.be/dQw4w9WgXcQ",
		"client_name": " Acme ",
		"view_count":  "1000",
		"summary":     "true",
	}, logoFile, videoFile)
	w := serve(t, h, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(handler.HeaderScanID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Final", body["video_title"])
	assert.Nil(t, body["channel"])
	assert.Equal(t, 1.5, body["media_value_brl"])
	assert.Equal(t, 2.33, body["total_screen_time_seconds"])
	assert.Equal(t, w.Header().Get(handler.HeaderScanID), body["scan_id"])
	assert.Len(t, body["timeline_clips"], 1)

	require.NotNil(t, uc.got)
	assert.Equal(t, "/tmp/scan-upload.mp4", uc.got.VideoPath)
	assert.Equal(t, logoPNG, uc.got.Logo)
	assert.Equal(t, "Acme", uc.got.BrandHint)
	assert.True(t, uc.got.WithSummary)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", resolver.calledWith)
	// フォームの値がリモートの値より優先される
	assert.Equal(t, entity.VideoMetadata{Title: "Remote", Channel: "Chan", ViewCount: 1000, DurationSeconds: 60}, uc.got.Metadata)
	assert.Equal(t, []string{"/tmp/scan-upload.mp4"}, store.removed)
}

func TestScanHandler_Scan_MetadataUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
		return sampleResult(), nil
	}}
	resolver := &mockResolver{ResolveFunc: func(ctx context.Context, raw string) (entity.VideoMetadata, error) {
		return entity.VideoMetadata{}, fmt.Errorf("%w: youtube: 403", metadatadomain.ErrMetadataUnavailable)
	}}
	h := handler.NewScanHandler(uc, resolver, nil, okStore(), 0)

	req := createScanRequest(t, map[string]string{
		"video_ref": "dQw4w9WgXcQ",
		"title":     "Manual",
		"duration":  "120",
	}, logoFile, videoFile)
	w := serve(t, h, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, uc.got)
	assert.Equal(t, entity.VideoMetadata{Title: "Manual", DurationSeconds: 120}, uc.got.Metadata)
}

func TestScanHandler_Scan_VideoURL(t *testing.T) {
	gin.SetMode(gin.TestMode)

	uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
		return sampleResult(), nil
	}}
	store := okStore()
	var downloaded string
	store.DownloadFunc = func(ctx context.Context, rawURL string) (string, error) {
		downloaded = rawURL
		return "/tmp/scan-download.mp4", nil
	}
	h := handler.NewScanHandler(uc, nil, nil, store, 0)

	req := createScanRequest(t, map[string]string{"video_url": "https://cdn.example.com/v.mp4"}, logoFile)
	w := serve(t, h, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.example.com/v.mp4", downloaded)
	assert.Equal(t, "/tmp/scan-download.mp4", uc.got.VideoPath)
	assert.Equal(t, []string{"/tmp/scan-download.mp4"}, store.removed)
}

func TestScanHandler_Scan_Errors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		fields         map[string]string
		files          []formFile
		maxLogoBytes   int64
		download       func(ctx context.Context, rawURL string) (string, error)
		upload         func(fh *multipart.FileHeader) (string, error)
		stream         func(ctx context.Context, raw string) (string, error)
		scanErr        error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "error: no logo",
			files:          []formFile{videoFile},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"ロゴ画像が必要です"}`,
		},
		{
			name:           "error: logo too large",
			files:          []formFile{logoFile, videoFile},
			maxLogoBytes:   3,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedBody:   `{"error":"ロゴ画像のサイズが上限を超えています"}`,
		},
		{
			name:           "error: no video",
			files:          []formFile{logoFile},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"動画ファイル、video_url または youtube_url が必要です"}`,
		},
		{
			name:   "error: reference without downloadable source",
			fields: map[string]string{"video_ref": "https://vimeo.com/123"},
			files:  []formFile{logoFile},
			stream: func(ctx context.Context, raw string) (string, error) {
				return "", fmt.Errorf("%w: %q", metadatadomain.ErrUnsupportedReference, raw)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"動画ファイル、video_url または youtube_url が必要です"}`,
		},
		{
			name:   "error: youtube stream unavailable",
			fields: map[string]string{"youtube_url": "https://youtu.be/dQw4w9WgXcQ"},
			files:  []formFile{logoFile},
			stream: func(ctx context.Context, raw string) (string, error) {
				return "", fmt.Errorf("%w: youtube: LOGIN_REQUIRED", metadatadomain.ErrStreamUnavailable)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"YouTubeの動画を取得できませんでした"}`,
		},
		{
			name:   "error: video url resolves to internal address",
			fields: map[string]string{"video_url": "http://169.254.169.254/latest/meta-data"},
			files:  []formFile{logoFile},
			download: func(ctx context.Context, rawURL string) (string, error) {
				return "", fmt.Errorf("%w: %w", storage.ErrDownloadFailed, infrahttp.ErrForbiddenAddress)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"video_url に内部ネットワークのアドレスは指定できません"}`,
		},
		{
			name:           "error: negative view count",
			fields:         map[string]string{"view_count": "-1"},
			files:          []formFile{logoFile, videoFile},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"view_count と duration は0以上の整数で指定してください"}`,
		},
		{
			name:           "error: non numeric duration",
			fields:         map[string]string{"duration": "ten"},
			files:          []formFile{logoFile, videoFile},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"view_count と duration は0以上の整数で指定してください"}`,
		},
		{
			name:           "error: upload too large",
			files:          []formFile{logoFile, videoFile},
			upload:         func(fh *multipart.FileHeader) (string, error) { return "", storage.ErrTooLarge },
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedBody:   `{"error":"動画のサイズが上限を超えています"}`,
		},
		{
			name:   "error: invalid video url",
			fields: map[string]string{"video_url": "ftp://example.com/v.mp4"},
			files:  []formFile{logoFile},
			download: func(ctx context.Context, rawURL string) (string, error) {
				return "", storage.ErrInvalidURL
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"video_url はhttpまたはhttpsのURLで指定してください"}`,
		},
		{
			name:   "error: download failed",
			fields: map[string]string{"video_url": "https://example.com/v.mp4"},
			files:  []formFile{logoFile},
			download: func(ctx context.Context, rawURL string) (string, error) {
				return "", fmt.Errorf("%w: status 404", storage.ErrDownloadFailed)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"動画を取得できませんでした"}`,
		},
		{
			name:           "error: unreadable logo",
			files:          []formFile{logoFile, videoFile},
			scanErr:        fmt.Errorf("%w: unknown format", domain.ErrUnreadableImage),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"ロゴ画像を読み込めませんでした"}`,
		},
		{
			name:           "error: insufficient features",
			files:          []formFile{logoFile, videoFile},
			scanErr:        fmt.Errorf("prepare logo: %w", domain.ErrInsufficientFeatures),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"ロゴ画像から特徴量を抽出できませんでした"}`,
		},
		{
			name:           "error: unreadable media",
			files:          []formFile{logoFile, videoFile},
			scanErr:        fmt.Errorf("open video: %w", domain.ErrUnreadableMedia),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"動画を読み込めませんでした"}`,
		},
		{
			name:           "error: degenerate metadata",
			files:          []formFile{logoFile, videoFile},
			scanErr:        domain.ErrDegenerateMetadata,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"動画の長さを特定できませんでした"}`,
		},
		{
			name:           "error: canceled",
			files:          []formFile{logoFile, videoFile},
			scanErr:        fmt.Errorf("%w after 3 samples", domain.ErrScanCanceled),
			expectedStatus: http.StatusGatewayTimeout,
			expectedBody:   `{"error":"走査がタイムアウトしました"}`,
		},
		{
			name:           "error: unexpected",
			files:          []formFile{logoFile, videoFile},
			scanErr:        errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"走査に失敗しました"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
				if tt.scanErr != nil {
					return nil, tt.scanErr
				}
				return sampleResult(), nil
			}}
			store := okStore()
			if tt.download != nil {
				store.DownloadFunc = tt.download
			}
			if tt.upload != nil {
				store.SaveUploadFunc = tt.upload
			}
			var streams handler.StreamResolver
			if tt.stream != nil {
				streams = &mockStreamResolver{ResolveStreamFunc: tt.stream}
			}
			h := handler.NewScanHandler(uc, nil, streams, store, tt.maxLogoBytes)

			w := serve(t, h, createScanRequest(t, tt.fields, tt.files...))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			if tt.scanErr != nil {
				assert.Len(t, store.removed, 1, "temp video must be removed on failure")
			}
		})
	}
}

func TestScanHandler_Scan_UndecodableLogoSkipsVideo(t *testing.T) {
	gin.SetMode(gin.TestMode)

	uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
		return sampleResult(), nil
	}}
	streams := &mockStreamResolver{ResolveStreamFunc: func(ctx context.Context, raw string) (string, error) {
		return "https://cdn.example.com/v.mp4", nil
	}}
	store := okStore()
	h := handler.NewScanHandler(uc, nil, streams, store, 0)

	tests := []struct {
		name   string
		fields map[string]string
		files  []formFile
	}{
		{name: "upload", files: []formFile{{field: "logo", name: "logo.png", content: []byte("fake-logo")}, videoFile}},
		{name: "video url", fields: map[string]string{"video_url": "https://cdn.example.com/v.mp4"}, files: []formFile{{field: "logo", name: "logo.png", content: []byte("fake-logo")}}},
		{name: "youtube", fields: map[string]string{"youtube_url": "https://youtu.be/dQw4w9WgXcQ"}, files: []formFile{{field: "logo", name: "logo.png", content: []byte("fake-logo")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, h, createScanRequest(t, tt.fields, tt.files...))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"ロゴ画像を読み込めませんでした"}`, w.Body.String())
		})
	}
	assert.Zero(t, store.calls, "video must not be fetched for an unreadable logo")
	assert.Empty(t, streams.calledWith)
	assert.Empty(t, store.removed)
	assert.Nil(t, uc.got)
}

func TestScanHandler_Scan_YouTubeReferenceOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	videoBytes := []byte("progressive-mp4-bytes")
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtubei/v1/player":
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{
				"playabilityStatus": {"status": "OK"},
				"videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "Final", "author": "Sports TV", "lengthSeconds": "30", "viewCount": "1000"},
				"streamingData": {"formats": [
					{"itag": 18, "mimeType": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"", "qualityLabel": "360p", "url": "%s/videoplayback.mp4?itag=18"}
				]}
			}`, srv.URL)
		case "/videoplayback.mp4":
			assert.Equal(t, "18", r.URL.Query().Get("itag"))
			_, _ = w.Write(videoBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	yt := youtube.NewClient(youtube.Config{APIKey: "test-key", BaseURL: srv.URL}, srv.Client())
	streams := metadatausecase.NewStreamUsecase([]metadatausecase.StreamProvider{yt}, 5*time.Second)
	store := storage.NewTempStore(t.TempDir(), 1<<20, srv.Client())

	var scanned []byte
	uc := &mockScanUsecase{ScanFunc: func(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
		b, err := os.ReadFile(req.VideoPath)
		require.NoError(t, err)
		scanned = b
		return sampleResult(), nil
	}}
	h := handler.NewScanHandler(uc, nil, streams, store, 0)

	req := createScanRequest(t, map[string]string{"youtube_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, logoFile)
	w := serve(t, h, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, videoBytes, scanned)
	require.NotNil(t, uc.got)
	assert.Equal(t, ".mp4", filepath.Ext(uc.got.VideoPath))
	_, err := os.Stat(uc.got.VideoPath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "downloaded video must be removed after the scan")
}
