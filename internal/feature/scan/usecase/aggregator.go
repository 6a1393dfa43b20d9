package usecase

import "exposure_backend/internal/feature/scan/domain/entity"

// PresenceAggregator は連続した「表示あり」サンプルを区間にまとめる状態機械です。
// 状態は Idle（open == nil）と Open の2つです。
type PresenceAggregator struct {
	minSeconds     float64
	commitTrailing bool
	open           *entity.PresenceEvent
	events         []entity.PresenceEvent
}

// NewPresenceAggregator は新しいPresenceAggregatorを生成します。
// minSeconds 以下の長さの区間はちらつきとして破棄されます。
func NewPresenceAggregator(minSeconds float64, commitTrailing bool) *PresenceAggregator {
	return &PresenceAggregator{minSeconds: minSeconds, commitTrailing: commitTrailing}
}

// Observe は時刻 t のサンプルの判定結果を取り込みます。
func (a *PresenceAggregator) Observe(t float64, visible bool) {
	switch {
	case visible && a.open == nil:
		a.open = &entity.PresenceEvent{StartSeconds: t, EndSeconds: t}
	case visible:
		a.open.EndSeconds = t
	case a.open != nil:
		a.close()
	}
}

// Finish はストリーム終端を通知し、確定した区間を時系列順で返します。
// 終端時点で開いている区間はデフォルトでは確定しません。
func (a *PresenceAggregator) Finish() []entity.PresenceEvent {
	if a.open != nil {
		if a.commitTrailing {
			a.close()
		} else {
			a.open = nil
		}
	}
	return a.events
}

// Pending は終端前に開いている区間があればそれを返します。
func (a *PresenceAggregator) Pending() (entity.PresenceEvent, bool) {
	if a.open == nil {
		return entity.PresenceEvent{}, false
	}
	return *a.open, true
}

func (a *PresenceAggregator) close() {
	if a.open.Duration() > a.minSeconds {
		a.events = append(a.events, *a.open)
	}
	a.open = nil
}
