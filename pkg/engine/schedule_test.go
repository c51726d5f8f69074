package engine

import (
	"testing"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextEligibleUnconstrained(t *testing.T) {
	at := time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC) // Saturday night

	got, err := nextEligible(at, models.WorkflowSettings{})
	require.NoError(t, err)
	assert.Equal(t, at, got)
}

func TestNextEligibleSkipsWeekend(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

	got, err := nextEligible(saturday, models.WorkflowSettings{SkipWeekends: true})
	require.NoError(t, err)

	assert.Equal(t, time.Monday, got.Weekday())
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestNextEligibleBusinessHours(t *testing.T) {
	settings := models.WorkflowSettings{
		BusinessHours: &models.BusinessHours{StartHour: 9, EndHour: 17},
	}

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "inside window unchanged",
			at:   time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "before open moves to start hour",
			at:   time.Date(2026, 3, 3, 6, 15, 0, 0, time.UTC),
			want: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "after close moves to next morning",
			at:   time.Date(2026, 3, 3, 19, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "at closing hour moves to next morning",
			at:   time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextEligible(tt.at, settings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextEligibleWeekendAndHoursCombined(t *testing.T) {
	settings := models.WorkflowSettings{
		SkipWeekends:  true,
		BusinessHours: &models.BusinessHours{StartHour: 9, EndHour: 17},
	}

	// Friday evening rolls past the whole weekend to Monday morning.
	friday := time.Date(2026, 3, 6, 20, 0, 0, 0, time.UTC)

	got, err := nextEligible(friday, settings)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), got)
}

func TestNextEligibleEmptyWindow(t *testing.T) {
	settings := models.WorkflowSettings{
		BusinessHours: &models.BusinessHours{StartHour: 17, EndHour: 9},
	}

	_, err := nextEligible(time.Now(), settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window is empty")
}

func TestNextEligibleBadTimezone(t *testing.T) {
	settings := models.WorkflowSettings{
		BusinessHours: &models.BusinessHours{StartHour: 9, EndHour: 17, Timezone: "Mars/Olympus"},
	}

	_, err := nextEligible(time.Now(), settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestNextEligibleAppliesTimezone(t *testing.T) {
	settings := models.WorkflowSettings{
		BusinessHours: &models.BusinessHours{StartHour: 9, EndHour: 17, Timezone: "America/New_York"},
	}

	// 14:00 UTC is 09:00 in New York during DST, inside the window.
	at := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)

	got, err := nextEligible(at, settings)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), "expected %s, got %s", at, got)
}
