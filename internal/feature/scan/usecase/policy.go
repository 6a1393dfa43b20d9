// Package usecase はscanフィーチャー（ロゴ露出検出と媒体価値算出）のビジネスロジックを実装します。
package usecase

import (
	"fmt"
	"time"
)

const (
	// DefaultStride はサンプリング間隔（フレーム数）のデフォルト値です。
	DefaultStride = 10
	// DefaultDownscaleFactor は解析前の縮小率のデフォルト値です。
	DefaultDownscaleFactor = 0.5
	// DefaultMinGoodMatches は「表示あり」と判定する良好マッチ数の閾値です（この値を超える必要があります）。
	DefaultMinGoodMatches = 12
	// DefaultRatioThreshold は比率テストの閾値です。
	DefaultRatioThreshold = 0.7
	// DefaultMinEventSeconds はイベントとして採用する最小区間長（秒）です。
	DefaultMinEventSeconds = 1.0
	// DefaultCPM は1000インプレッションあたりの単価です。
	DefaultCPM = 25.00
	// DefaultCurrency はレポートに出力する通貨コードです。
	DefaultCurrency = "brl"
	// DefaultScanTimeout は1回の走査に許される最大時間です。
	DefaultScanTimeout = 30 * time.Minute
)

// Policy は走査パイプラインの調整可能なパラメータです。
// ロジック内に隠れたデフォルト値を持たず、すべてここから渡されます。
type Policy struct {
	Stride                   int           `yaml:"stride"`
	DownscaleFactor          float64       `yaml:"downscaleFactor"`
	MinGoodMatches           int           `yaml:"minGoodMatches"`
	RatioThreshold           float64       `yaml:"ratioThreshold"`
	MinEventSeconds          float64       `yaml:"minEventSeconds"`
	CPM                      float64       `yaml:"cpm"`
	Currency                 string        `yaml:"currency"`
	ScanTimeout              time.Duration `yaml:"scanTimeout"`
	FailOnDegenerateMetadata bool          `yaml:"failOnDegenerateMetadata"`
	CommitTrailingEvent      bool          `yaml:"commitTrailingEvent"`
}

// DefaultPolicy はデフォルト値で埋めたPolicyを返します。
func DefaultPolicy() Policy {
	return Policy{
		Stride:          DefaultStride,
		DownscaleFactor: DefaultDownscaleFactor,
		MinGoodMatches:  DefaultMinGoodMatches,
		RatioThreshold:  DefaultRatioThreshold,
		MinEventSeconds: DefaultMinEventSeconds,
		CPM:             DefaultCPM,
		Currency:        DefaultCurrency,
		ScanTimeout:     DefaultScanTimeout,
	}
}

// Validate はPolicyの各値が有効な範囲にあるかを検証します。
func (p Policy) Validate() error {
	if p.Stride < 1 {
		return fmt.Errorf("stride must be at least 1, got %d", p.Stride)
	}
	if p.DownscaleFactor <= 0 || p.DownscaleFactor > 1 {
		return fmt.Errorf("downscale factor must be in (0, 1], got %v", p.DownscaleFactor)
	}
	if p.MinGoodMatches < 0 {
		return fmt.Errorf("min good matches must not be negative, got %d", p.MinGoodMatches)
	}
	if p.RatioThreshold <= 0 || p.RatioThreshold > 1 {
		return fmt.Errorf("ratio threshold must be in (0, 1], got %v", p.RatioThreshold)
	}
	if p.MinEventSeconds < 0 {
		return fmt.Errorf("min event seconds must not be negative, got %v", p.MinEventSeconds)
	}
	if p.CPM < 0 {
		return fmt.Errorf("cpm must not be negative, got %v", p.CPM)
	}
	if p.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if p.ScanTimeout < 0 {
		return fmt.Errorf("scan timeout must not be negative, got %v", p.ScanTimeout)
	}
	return nil
}

// MatchPolicy はこのPolicyのマッチ判定部分を返します。
func (p Policy) MatchPolicy() MatchPolicy {
	return MatchPolicy{Ratio: p.RatioThreshold, MinGoodMatches: p.MinGoodMatches}
}
