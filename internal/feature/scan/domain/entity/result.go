package entity

// ClipReport はタイムライン上の1区間の表示用レコードです。
type ClipReport struct {
	StartTimecode   string  // 開始タイムコード（H:MM:SS）
	EndTimecode     string  // 終了タイムコード（H:MM:SS）
	StartSecondsRaw float64 // 丸め前の開始秒
	DurationSeconds float64 // 区間長（小数第2位で丸め）
}

// ScanResult は1回の走査の最終結果です。
type ScanResult struct {
	VideoTitle             string
	Channel                string
	TotalViews             int64
	TotalScreenTimeSeconds float64
	MediaValue             float64
	Currency               string
	TimelineClips          []ClipReport
	SamplesAnalyzed        int64
	VisibleSamples         int64
	Summary                string
}

// ScanRequest は走査の入力です。
type ScanRequest struct {
	VideoPath   string        // ローカルに保存された動画ファイルのパス
	Logo        []byte        // 参照ロゴ画像のバイト列
	Metadata    VideoMetadata // 外部から取得したメタデータ（欠損可）
	BrandHint   string        // ブランド名のヒント（任意）
	WithSummary bool          // AIサマリーを生成するかどうか
}
