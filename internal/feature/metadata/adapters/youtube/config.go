// Package youtube はYouTubeのinnertube playerエンドポイントから動画メタデータを取得します。
package youtube

import (
	"os"
	"time"
)

const defaultBaseURL = "https://www.youtube.com"

// Config はYouTubeクライアントの設定です。
type Config struct {
	APIKey  string        // innertube APIキー（空なら付与しない）
	BaseURL string        // ベースURL（テストではhttptestのURLを指定）
	Timeout time.Duration // HTTPリクエストのタイムアウト
}

// LoadConfig は環境変数からYouTubeクライアントの設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		APIKey:  os.Getenv("YOUTUBE_API_KEY"),
		BaseURL: os.Getenv("YOUTUBE_BASE_URL"),
		Timeout: 10 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return cfg
}
