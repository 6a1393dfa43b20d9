// Package pagemeta は動画ページのschema.org / Open Graph メタタグからメタデータを抽出します。
package pagemeta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/domain/entity"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

const (
	// maxPageBytes は読み込むHTMLの上限です。
	maxPageBytes = 4 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Scraper は参照URLのHTMLを取得し、メタタグを解析するRemoteProvider実装です。
type Scraper struct {
	client *http.Client
}

// ScraperがRemoteProviderを実装していることをコンパイル時に検証します。
var _ usecase.RemoteProvider = (*Scraper)(nil)

// NewScraper はScraperの新しいインスタンスを生成します。
func NewScraper(client *http.Client) *Scraper {
	return &Scraper{client: client}
}

func (s *Scraper) Name() string { return "pagemeta" }

// Fetch は参照URLのページを取得して解析します。URLを持たない参照には domain.ErrUnsupportedReference を返します。
func (s *Scraper) Fetch(ctx context.Context, ref entity.Reference) (scanentity.VideoMetadata, error) {
	if ref.URL == "" {
		return scanentity.VideoMetadata{}, domain.ErrUnsupportedReference
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	res, err := s.client.Do(req)
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return scanentity.VideoMetadata{}, fmt.Errorf("pagemeta http %d", res.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}
	return Parse(html)
}

// Parse はHTMLからメタデータを抽出する純粋関数です。
// タイトル・再生回数・尺のいずれも見つからない場合はエラーを返します。
func Parse(html []byte) (scanentity.VideoMetadata, error) {
	if len(html) == 0 {
		return scanentity.VideoMetadata{}, errors.New("empty html")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}

	meta := scanentity.VideoMetadata{
		Title: firstNonEmpty(
			attr(doc, `meta[property="og:title"]`, "content"),
			attr(doc, `meta[itemprop="name"]`, "content"),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Channel: firstNonEmpty(
			attr(doc, `[itemprop="author"] [itemprop="name"]`, "content"),
			attr(doc, `link[itemprop="name"]`, "content"),
			attr(doc, `meta[name="author"]`, "content"),
			attr(doc, `meta[property="og:site_name"]`, "content"),
		),
	}

	views := firstNonEmpty(
		attr(doc, `meta[itemprop="interactionCount"]`, "content"),
		attr(doc, `meta[itemprop="userInteractionCount"]`, "content"),
	)
	meta.ViewCount = digits(views)

	if d, ok := ParseISODuration(attr(doc, `meta[itemprop="duration"]`, "content")); ok {
		meta.DurationSeconds = d
	} else if secs := attr(doc, `meta[property="video:duration"]`, "content"); secs != "" {
		meta.DurationSeconds = digits(secs)
	}

	if meta.Title == "" && meta.ViewCount == 0 && meta.DurationSeconds == 0 {
		return scanentity.VideoMetadata{}, errors.New("pagemeta: no video metadata found")
	}
	return meta, nil
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration は "PT1H2M3S" 形式の尺を秒に変換します。小数秒は切り捨てます。
func ParseISODuration(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "P" || s == "PT" {
		return 0, false
	}
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, false
		}
		total += v * unit
	}
	return int64(math.Floor(total)), true
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// digits は "1,234 views" のような文字列から数字だけを取り出します。
func digits(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
