package entity

// PresenceEvent はロゴが連続して表示されていた区間です。
// EndSeconds は常に StartSeconds 以上です。
type PresenceEvent struct {
	StartSeconds float64
	EndSeconds   float64
}

// Duration は区間の長さ（秒）を返します。
func (e PresenceEvent) Duration() float64 {
	return e.EndSeconds - e.StartSeconds
}
