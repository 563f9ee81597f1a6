package events

import (
	"testing"
	"time"

	"github.com/discotek/discotek-go/pkg/enums"
	"github.com/stretchr/testify/assert"
)

func TestEventAvailable(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		event     Event
		available bool
	}{
		{
			name:      "active and upcoming",
			event:     Event{Status: enums.EventStatusActive, StartsAt: now.Add(2 * time.Hour)},
			available: true,
		},
		{
			name:      "active and started but still running",
			event:     Event{Status: enums.EventStatusActive, StartsAt: now.Add(-6 * time.Hour)},
			available: true,
		},
		{
			name:      "active but over",
			event:     Event{Status: enums.EventStatusActive, StartsAt: now.Add(-8 * time.Hour)},
			available: false,
		},
		{
			name:      "cancelled",
			event:     Event{Status: enums.EventStatusCancelled, StartsAt: now.Add(2 * time.Hour)},
			available: false,
		},
		{
			name:      "finished flag wins over date",
			event:     Event{Status: enums.EventStatusFinished, StartsAt: now.Add(2 * time.Hour)},
			available: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.available, tt.event.Available(now))
		})
	}
}
