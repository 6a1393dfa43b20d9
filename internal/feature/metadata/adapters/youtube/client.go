package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/domain/entity"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

const (
	clientName    = "ANDROID"
	clientVersion = "19.09.37"
	userAgent     = "com.google.android.youtube/19.09.37 (Linux; Android 2.3.7)"
)

// Client はYouTubeの動画IDからタイトル・チャンネル・再生回数・尺を取得するRemoteProvider実装です。
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientがRemoteProviderを実装していることをコンパイル時に検証します。
var _ usecase.RemoteProvider = (*Client)(nil)

// ClientがStreamProviderを実装していることをコンパイル時に検証します。
var _ usecase.StreamProvider = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{cfg: cfg, client: client}
}

func (c *Client) Name() string { return "youtube" }

type playerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client struct {
			HL            string `json:"hl"`
			GL            string `json:"gl"`
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		ViewCount     string `json:"viewCount"`
	} `json:"videoDetails"`
	StreamingData struct {
		// formats は映像と音声を含むプログレッシブ形式です。adaptiveFormats は使いません。
		Formats []struct {
			Itag         int    `json:"itag"`
			MimeType     string `json:"mimeType"`
			URL          string `json:"url"`
			QualityLabel string `json:"qualityLabel"`
		} `json:"formats"`
	} `json:"streamingData"`
}

// Fetch はplayerエンドポイントを呼び出し、videoDetails をメタデータに変換します。
// YouTubeの動画IDを持たない参照には domain.ErrUnsupportedReference を返します。
func (c *Client) Fetch(ctx context.Context, ref entity.Reference) (scanentity.VideoMetadata, error) {
	if ref.VideoID == "" {
		return scanentity.VideoMetadata{}, domain.ErrUnsupportedReference
	}
	decoded, err := c.player(ctx, ref.VideoID)
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}

	details := decoded.VideoDetails
	if details.Title == "" && details.ViewCount == "" {
		status := decoded.PlayabilityStatus
		return scanentity.VideoMetadata{}, fmt.Errorf("youtube: no video details (status=%s reason=%s)", status.Status, status.Reason)
	}

	views, err := parseCount(details.ViewCount)
	if err != nil {
		return scanentity.VideoMetadata{}, fmt.Errorf("parse viewCount %q: %w", details.ViewCount, err)
	}
	length, err := parseCount(details.LengthSeconds)
	if err != nil {
		return scanentity.VideoMetadata{}, fmt.Errorf("parse lengthSeconds %q: %w", details.LengthSeconds, err)
	}

	return scanentity.VideoMetadata{
		Title:           details.Title,
		Channel:         details.Author,
		ViewCount:       views,
		DurationSeconds: length,
	}, nil
}

// StreamURL は映像と音声を含むプログレッシブ形式のストリームURLを返します。
// mp4 を優先し、なければ最初の形式を返します。
// 署名付き（url を持たない）形式しかない場合は domain.ErrStreamUnavailable を返します。
func (c *Client) StreamURL(ctx context.Context, ref entity.Reference) (string, error) {
	if ref.VideoID == "" {
		return "", domain.ErrUnsupportedReference
	}
	decoded, err := c.player(ctx, ref.VideoID)
	if err != nil {
		return "", err
	}

	var fallback string
	for _, f := range decoded.StreamingData.Formats {
		if f.URL == "" {
			continue
		}
		if strings.HasPrefix(f.MimeType, "video/mp4") {
			slog.Debug("youtube stream selected", "video_id", ref.VideoID, "itag", f.Itag, "quality", f.QualityLabel)
			return f.URL, nil
		}
		if fallback == "" {
			fallback = f.URL
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	status := decoded.PlayabilityStatus
	return "", fmt.Errorf("%w: video %s (status=%s reason=%s)", domain.ErrStreamUnavailable, ref.VideoID, status.Status, status.Reason)
}

// player は /youtubei/v1/player を呼び出します。
func (c *Client) player(ctx context.Context, videoID string) (playerResponse, error) {
	var body playerRequest
	body.VideoID = videoID
	body.Context.Client.HL = "en"
	body.Context.Client.GL = "US"
	body.Context.Client.ClientName = clientName
	body.Context.Client.ClientVersion = clientVersion

	payload, err := json.Marshal(body)
	if err != nil {
		return playerResponse{}, err
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/youtubei/v1/player"
	if c.cfg.APIKey != "" {
		q := url.Values{}
		q.Set("key", c.cfg.APIKey)
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return playerResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(req)
	if err != nil {
		return playerResponse{}, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return playerResponse{}, fmt.Errorf("youtube player http %d: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded playerResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return playerResponse{}, fmt.Errorf("decode player response: %w", err)
	}
	return decoded, nil
}

// parseCount は数値文字列を解釈します。空文字は0とみなします。
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
