package usecase

import "math"

const (
	// retentionDrop は動画の終端までに失われる視聴者の割合です（100%→40%）。
	retentionDrop = 0.6
	// cpmUnitSeconds はCPMを正規化する広告枠の長さ（秒）です。
	cpmUnitSeconds = 30.0
)

// DecayedAudience は再生位置 t における推定視聴者数を返します。
// 長さが不明（0）の場合は減衰を定義できないため、総再生回数をそのまま返します。
// 位置は [0,1] にクランプせず外挿しますが、結果は0未満になりません。
func DecayedAudience(t float64, durationSeconds, views int64) int64 {
	if durationSeconds == 0 {
		return views
	}
	position := t / float64(durationSeconds)
	retention := 1.0 - position*retentionDrop
	audience := math.Floor(float64(views) * retention)
	if audience < 0 {
		return 0
	}
	return int64(audience)
}

// Valuation は表示ありサンプルごとの媒体価値を積算します。
// 合計は単調非減少で、走査の途中でリセットされません。
type Valuation struct {
	cpm           float64
	sliceSeconds  float64
	durationSecs  int64
	views         int64
	total         float64
	visibleSample int64
}

// NewValuation は新しいValuationを生成します。
// sliceSeconds は1サンプルが代表する時間（stride / fps）です。
func NewValuation(cpm, sliceSeconds float64, durationSeconds, views int64) *Valuation {
	return &Valuation{
		cpm:          cpm,
		sliceSeconds: sliceSeconds,
		durationSecs: durationSeconds,
		views:        views,
	}
}

// InstantValue は時刻 t の1サンプルが持つ価値を返します。
func (v *Valuation) InstantValue(t float64) float64 {
	audience := DecayedAudience(t, v.durationSecs, v.views)
	return (float64(audience) / 1000.0) * (v.cpm / cpmUnitSeconds) * v.sliceSeconds
}

// Add は時刻 t の表示ありサンプルの価値を合計に加算し、加算した値を返します。
func (v *Valuation) Add(t float64) float64 {
	value := v.InstantValue(t)
	v.total += value
	v.visibleSample++
	return value
}

// Total は丸め前の合計値を返します。
func (v *Valuation) Total() float64 {
	return v.total
}

// Samples は加算された表示ありサンプル数を返します。
func (v *Valuation) Samples() int64 {
	return v.visibleSample
}

// SliceSeconds はstrideとfpsから1サンプルが代表する時間を返します。
// fpsが不明な場合は0です。
func SliceSeconds(stride int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(stride) / fps
}
