package usecase

import (
	"fmt"
	"math"

	"exposure_backend/internal/feature/scan/domain/entity"
)

// BuildReport は確定した区間と積算価値から最終結果を組み立てます。
// 丸めはこの段階でのみ行います。
func BuildReport(meta entity.VideoMetadata, events []entity.PresenceEvent, total float64, currency string) *entity.ScanResult {
	clips := make([]entity.ClipReport, 0, len(events))
	var screenTime float64
	for _, e := range events {
		d := Round2(e.Duration())
		clips = append(clips, entity.ClipReport{
			StartTimecode:   Timecode(e.StartSeconds),
			EndTimecode:     Timecode(e.EndSeconds),
			StartSecondsRaw: e.StartSeconds,
			DurationSeconds: d,
		})
		screenTime += d
	}

	return &entity.ScanResult{
		VideoTitle:             meta.Title,
		Channel:                meta.Channel,
		TotalViews:             meta.ViewCount,
		TotalScreenTimeSeconds: Round2(screenTime),
		MediaValue:             Round2(total),
		Currency:               currency,
		TimelineClips:          clips,
	}
}

// Timecode は秒数を整数秒に切り捨て、H:MM:SS 形式に整形します。
func Timecode(seconds float64) string {
	s := int64(seconds)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// Round2 は小数第2位で四捨五入します。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
