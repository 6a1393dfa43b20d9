// Package api はHTTP境界で使うリクエスト・レスポンスの型を定義します。
package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ErrorResponse はエラー時のレスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClipResponse はタイムライン上の1区間です。
type ClipResponse struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	SecondsRaw float64 `json:"seconds_raw"`
	Duration   float64 `json:"duration"`
}

// ScanResponse は走査結果のレスポンスです。
// 媒体価値は通貨コード付きのキー（例: media_value_brl）で出力されます。
type ScanResponse struct {
	ScanID                 string         `json:"scan_id"`
	VideoTitle             *string        `json:"video_title"`
	Channel                *string        `json:"channel"`
	TotalViews             int64          `json:"total_views"`
	TotalScreenTimeSeconds float64        `json:"total_screen_time_seconds"`
	MediaValue             float64        `json:"-"`
	Currency               string         `json:"-"`
	TimelineClips          []ClipResponse `json:"timeline_clips"`
	SamplesAnalyzed        int64          `json:"samples_analyzed"`
	VisibleSamples         int64          `json:"visible_samples"`
	Summary                string         `json:"summary,omitempty"`
}

// MediaValueKey は媒体価値のJSONキーを返します。
func (r ScanResponse) MediaValueKey() string {
	var b strings.Builder
	for _, c := range strings.ToLower(r.Currency) {
		if c >= 'a' && c <= 'z' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "media_value"
	}
	return "media_value_" + b.String()
}

// MarshalJSON は media_value_<currency> キーを total_screen_time_seconds の直後に挿入します。
func (r ScanResponse) MarshalJSON() ([]byte, error) {
	type plain ScanResponse
	if r.TimelineClips == nil {
		r.TimelineClips = []ClipResponse{}
	}
	body, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(r.MediaValueKey())
	if err != nil {
		return nil, err
	}

	anchor := []byte(`,"timeline_clips":`)
	i := bytes.Index(body, anchor)
	if i < 0 {
		// timeline_clips は常に出力されるため到達しない
		return body, nil
	}
	var out bytes.Buffer
	out.Grow(len(body) + len(key) + 24)
	out.Write(body[:i])
	out.WriteByte(',')
	out.Write(key)
	out.WriteByte(':')
	out.WriteString(strconv.FormatFloat(r.MediaValue, 'f', -1, 64))
	out.Write(body[i:])
	return out.Bytes(), nil
}

// CatalogRequest はカタログ登録のリクエストです。
type CatalogRequest struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	ViewCount int64  `json:"view_count" binding:"gte=0"`
	Duration  int64  `json:"duration" binding:"gte=0"`
}

// CatalogResponse はカタログ登録・参照のレスポンスです。
type CatalogResponse struct {
	Ref       string `json:"ref"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	ViewCount int64  `json:"view_count"`
	Duration  int64  `json:"duration"`
}
