// Package gemini はGoogle Gemini APIを使用した露出レポートの要約生成を提供します。
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/usecase"
)

const (
	// DefaultModel はGemini APIのデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash"
	// maxPromptClips はプロンプトに載せるクリップ数の上限です。
	maxPromptClips = 20
)

// Generator はプロンプトからテキストを生成するインターフェースです。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client はGoogle Gemini APIを使用してテキストを生成します。
type Client struct {
	client *genai.Client
	model  string
}

// NewClient はADCを使用してClientの新しいインスタンスを生成します。
// 環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION が必要です。
func NewClient(ctx context.Context) (*Client, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: DefaultModel}, nil
}

// Generate はプロンプトからテキストを生成します。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	return resp.Text(), nil
}

// Summarizer は走査結果からスポンサー向けの短い要約を生成します。
type Summarizer struct {
	generator Generator
}

// SummarizerがReportSummarizerを実装していることをコンパイル時に検証します。
var _ usecase.ReportSummarizer = (*Summarizer)(nil)

// NewSummarizer はSummarizerの新しいインスタンスを生成します。
func NewSummarizer(generator Generator) *Summarizer {
	return &Summarizer{generator: generator}
}

// Summarize は走査結果の要約文を返します。
func (s *Summarizer) Summarize(ctx context.Context, result *entity.ScanResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("summarize: nil result")
	}
	text, err := s.generator.Generate(ctx, BuildPrompt(result))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// BuildPrompt は走査結果から要約用のプロンプトを組み立てます。
func BuildPrompt(result *entity.ScanResult) string {
	var b strings.Builder
	b.WriteString("あなたはスポーツ・エンタメ領域のスポンサー露出アナリストです。\n")
	b.WriteString("以下の動画のロゴ露出計測結果を、スポンサー向けに3〜4文で簡潔に要約してください。\n")
	b.WriteString("数値は与えられたものだけを使い、推測で補わないでください。\n\n")

	title := result.VideoTitle
	if title == "" {
		title = "(不明)"
	}
	channel := result.Channel
	if channel == "" {
		channel = "(不明)"
	}
	fmt.Fprintf(&b, "動画タイトル: %s\n", title)
	fmt.Fprintf(&b, "チャンネル: %s\n", channel)
	fmt.Fprintf(&b, "総再生回数: %d\n", result.TotalViews)
	fmt.Fprintf(&b, "ロゴ露出時間合計: %.2f 秒\n", result.TotalScreenTimeSeconds)
	fmt.Fprintf(&b, "推定媒体価値: %.2f %s\n", result.MediaValue, strings.ToUpper(result.Currency))
	fmt.Fprintf(&b, "露出クリップ数: %d\n", len(result.TimelineClips))

	for i, clip := range result.TimelineClips {
		if i == maxPromptClips {
			fmt.Fprintf(&b, "- ほか %d 件\n", len(result.TimelineClips)-maxPromptClips)
			break
		}
		fmt.Fprintf(&b, "- %s から %.2f 秒\n", clip.StartTimecode, clip.DurationSeconds)
	}
	return b.String()
}
