package usecase

import (
	"net/url"
	"regexp"
	"strings"

	"exposure_backend/internal/feature/metadata/domain/entity"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseReference は動画参照文字列を解釈します。
// watch?v=, youtu.be/, shorts/, embed/, live/ 形式のURLと11文字の動画IDを認識します。
func ParseReference(raw string) entity.Reference {
	raw = strings.TrimSpace(raw)
	ref := entity.Reference{Raw: raw}
	if raw == "" {
		return ref
	}
	if videoIDPattern.MatchString(raw) {
		ref.VideoID = raw
		return ref
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ref
	}
	ref.URL = u.String()
	ref.VideoID = extractVideoID(u)
	return ref
}

// ExtractVideoID は参照文字列からYouTubeの動画IDを取り出します。見つからなければ空文字を返します。
func ExtractVideoID(raw string) string {
	return ParseReference(raw).VideoID
}

func extractVideoID(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case host == "youtu.be":
		id = segments[0]
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtube-nocookie.com":
		switch {
		case segments[0] == "watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live" || segments[0] == "v"):
			id = segments[1]
		}
	}

	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}
