// Package config はアプリケーション設定をYAMLファイルと環境変数から読み込みます。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	scanusecase "exposure_backend/internal/feature/scan/usecase"
)

const (
	configPathEnv = "SCAN_CONFIG_FILE"

	// MatcherOpenCV はSIFT特徴量とFLANNによるローカル照合です。
	MatcherOpenCV = "opencv"
	// MatcherVision はCloud Vision APIのロゴ検出による照合です。
	MatcherVision = "vision"
)

// Config はサーバー全体の設定です。
type Config struct {
	Port     string             `yaml:"port"`
	Policy   scanusecase.Policy `yaml:"policy"`
	Matcher  MatcherConfig      `yaml:"matcher"`
	Metadata MetadataConfig     `yaml:"metadata"`
	Storage  StorageConfig      `yaml:"storage"`
	// GeminiEnabled はAIサマリー生成を有効にするかどうかです。
	GeminiEnabled bool `yaml:"geminiEnabled"`
}

// MatcherConfig はフレーム照合バックエンドの設定です。
type MatcherConfig struct {
	Backend        string  `yaml:"backend"`
	VisionMinScore float64 `yaml:"visionMinScore"`
	// VisionRateLimit は1分あたりのVision API呼び出し上限です。0以下なら制限しません。
	VisionRateLimit int `yaml:"visionRateLimit"`
}

// MetadataConfig は動画メタデータ解決の設定です。
type MetadataConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// StorageConfig はアップロード・ダウンロードした動画の一時保存設定です。
type StorageConfig struct {
	TempDir       string        `yaml:"tempDir"`
	MaxVideoBytes int64         `yaml:"maxVideoBytes"`
	MaxLogoBytes  int64         `yaml:"maxLogoBytes"`
	HeaderTimeout time.Duration `yaml:"headerTimeout"`
}

// Default はすべての項目をデフォルト値で埋めた設定を返します。
func Default() Config {
	return Config{
		Port:   "8080",
		Policy: scanusecase.DefaultPolicy(),
		Matcher: MatcherConfig{
			Backend:         MatcherOpenCV,
			VisionMinScore:  0.5,
			VisionRateLimit: 600,
		},
		Metadata: MetadataConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 6 * time.Hour,
		},
		Storage: StorageConfig{
			TempDir:       os.TempDir(),
			MaxVideoBytes: 2 << 30,
			MaxLogoBytes:  10 << 20,
			HeaderTimeout: 30 * time.Second,
		},
	}
}

// Load はデフォルト値にYAMLファイル（SCAN_CONFIG_FILE）を重ね、さらに環境変数で上書きした設定を返します。
// 設定値が不正な場合はエラーを返します。
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate は設定値を検証します。
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("config: scan policy: %w", err)
	}
	switch c.Matcher.Backend {
	case MatcherOpenCV, MatcherVision:
	default:
		return fmt.Errorf("config: unknown matcher backend %q", c.Matcher.Backend)
	}
	if c.Storage.MaxVideoBytes <= 0 || c.Storage.MaxLogoBytes <= 0 {
		return errors.New("config: storage limits must be positive")
	}
	return nil
}

// envReader は環境変数の型変換エラーをまとめて扱います。
type envReader struct {
	errs []error
}

func (r *envReader) setString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) setInt(key string, dst *int) {
	if v, ok := lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) setInt64(key string, dst *int64) {
	if v, ok := lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) setFloat(key string, dst *float64) {
	if v, ok := lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (r *envReader) setBool(key string, dst *bool) {
	if v, ok := lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c *Config) applyEnvOverrides() error {
	r := &envReader{}

	r.setString("PORT", &c.Port)

	r.setInt("SCAN_STRIDE", &c.Policy.Stride)
	r.setFloat("SCAN_DOWNSCALE", &c.Policy.DownscaleFactor)
	r.setInt("SCAN_MIN_MATCHES", &c.Policy.MinGoodMatches)
	r.setFloat("SCAN_RATIO", &c.Policy.RatioThreshold)
	r.setFloat("SCAN_MIN_EVENT_SECONDS", &c.Policy.MinEventSeconds)
	r.setFloat("SCAN_CPM", &c.Policy.CPM)
	r.setString("SCAN_CURRENCY", &c.Policy.Currency)
	r.setDuration("SCAN_TIMEOUT", &c.Policy.ScanTimeout)
	r.setBool("SCAN_FAIL_ON_DEGENERATE", &c.Policy.FailOnDegenerateMetadata)
	r.setBool("SCAN_COMMIT_TRAILING", &c.Policy.CommitTrailingEvent)

	r.setString("MATCHER_BACKEND", &c.Matcher.Backend)
	r.setFloat("VISION_MIN_SCORE", &c.Matcher.VisionMinScore)
	r.setInt("VISION_RATE_LIMIT", &c.Matcher.VisionRateLimit)

	r.setDuration("METADATA_TIMEOUT", &c.Metadata.Timeout)
	r.setDuration("METADATA_CACHE_TTL", &c.Metadata.CacheTTL)

	r.setString("TEMP_DIR", &c.Storage.TempDir)
	r.setInt64("MAX_VIDEO_BYTES", &c.Storage.MaxVideoBytes)

	r.setBool("GEMINI_ENABLED", &c.GeminiEnabled)

	c.Policy.Currency = strings.ToLower(c.Policy.Currency)
	c.Matcher.Backend = strings.ToLower(c.Matcher.Backend)
	return errors.Join(r.errs...)
}
