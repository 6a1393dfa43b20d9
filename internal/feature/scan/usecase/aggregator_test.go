package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/feature/scan/usecase"
)

type sample struct {
	t       float64
	visible bool
}

func run(a *usecase.PresenceAggregator, samples []sample) []entity.PresenceEvent {
	for _, s := range samples {
		a.Observe(s.t, s.visible)
	}
	return a.Finish()
}

func TestPresenceAggregator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		samples        []sample
		commitTrailing bool
		want           []entity.PresenceEvent
	}{
		{
			name:    "no visible samples",
			samples: []sample{{0.33, false}, {0.66, false}},
			want:    nil,
		},
		{
			name:    "short run is discarded as flicker",
			samples: []sample{{5.0, true}, {5.33, true}, {5.66, true}, {6.0, false}},
			want:    nil,
		},
		{
			name:    "run of exactly one second is discarded",
			samples: []sample{{2.0, true}, {2.5, true}, {3.0, true}, {3.5, false}},
			want:    nil,
		},
		{
			name:    "run longer than one second is committed with first and last timestamps",
			samples: []sample{{1.0, false}, {2.0, true}, {2.5, true}, {3.25, true}, {3.5, false}},
			want:    []entity.PresenceEvent{{StartSeconds: 2.0, EndSeconds: 3.25}},
		},
		{
			name: "multiple runs keep chronological order",
			samples: []sample{
				{1, true}, {2, true}, {3, true}, {4, false},
				{5, true}, {5.5, false},
				{7, true}, {9, true}, {10, false},
			},
			want: []entity.PresenceEvent{
				{StartSeconds: 1, EndSeconds: 3},
				{StartSeconds: 7, EndSeconds: 9},
			},
		},
		{
			name:    "trailing open event is dropped",
			samples: []sample{{1, true}, {2.5, true}, {3, false}, {4, true}, {6, true}},
			want:    []entity.PresenceEvent{{StartSeconds: 1, EndSeconds: 2.5}},
		},
		{
			name:           "trailing open event is committed when enabled",
			samples:        []sample{{4, true}, {6, true}},
			commitTrailing: true,
			want:           []entity.PresenceEvent{{StartSeconds: 4, EndSeconds: 6}},
		},
		{
			name:           "trailing flicker is still filtered when enabled",
			samples:        []sample{{4, true}, {4.5, true}},
			commitTrailing: true,
			want:           nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := usecase.NewPresenceAggregator(1.0, tt.commitTrailing)
			got := run(a, tt.samples)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPresenceAggregator_Pending(t *testing.T) {
	t.Parallel()

	a := usecase.NewPresenceAggregator(1.0, false)
	_, ok := a.Pending()
	assert.False(t, ok)

	a.Observe(3, true)
	a.Observe(4, true)
	ev, ok := a.Pending()
	assert.True(t, ok)
	assert.Equal(t, entity.PresenceEvent{StartSeconds: 3, EndSeconds: 4}, ev)

	a.Observe(5, false)
	_, ok = a.Pending()
	assert.False(t, ok)
}
