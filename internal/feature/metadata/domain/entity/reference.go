package entity

// Reference はクライアントから渡された動画参照を解釈したものです。
type Reference struct {
	Raw     string // 入力そのまま（前後の空白は除去済み）
	VideoID string // YouTubeの動画ID。YouTube以外なら空
	URL     string // http(s) のURL。IDのみの入力なら空
}

// Key はカタログとキャッシュで使う正規化済みのキーを返します。
// 同じ動画を指す異なるURLは同じキーになります。
func (r Reference) Key() string {
	switch {
	case r.VideoID != "":
		return "yt:" + r.VideoID
	case r.URL != "":
		return r.URL
	default:
		return r.Raw
	}
}

// IsZero は参照が空かどうかを返します。
func (r Reference) IsZero() bool {
	return r.Raw == ""
}
