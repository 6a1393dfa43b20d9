// Package entity はscanフィーチャーのドメインモデルを定義します。
package entity

// VideoMetadata は解析対象動画のメタデータです。
// 空文字列のフィールドは「不明」を意味します。
type VideoMetadata struct {
	Title           string // 動画タイトル
	Channel         string // チャンネル名
	ViewCount       int64  // 総再生回数（0以上）
	DurationSeconds int64  // 動画の長さ（秒、0は不明）
}

// MediaInfo はメディアコンテナが公開するストリーム情報です。
type MediaInfo struct {
	FPS        float64 // フレームレート（0は不明）
	FrameCount int64   // 総フレーム数（0は不明）
}

// DerivedDurationSeconds はフレーム数とフレームレートから動画の長さを算出します。
// フレームレートが不明な場合は0を返します。
func (m MediaInfo) DerivedDurationSeconds() int64 {
	if m.FPS <= 0 || m.FrameCount <= 0 {
		return 0
	}
	return int64(float64(m.FrameCount) / m.FPS)
}
