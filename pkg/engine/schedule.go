package engine

import (
	"fmt"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
)

// nextEligible defers t forward to the next moment allowed by the
// workflow's business-hours and weekend settings. With no constraints
// configured it returns t unchanged.
func nextEligible(t time.Time, settings models.WorkflowSettings) (time.Time, error) {
	hours := settings.BusinessHours

	if hours == nil && !settings.SkipWeekends {
		return t, nil
	}

	if hours != nil {
		if hours.StartHour >= hours.EndHour {
			return time.Time{}, fmt.Errorf("business hours window is empty: %d-%d",
				hours.StartHour, hours.EndHour)
		}

		if hours.Timezone != "" {
			loc, err := time.LoadLocation(hours.Timezone)
			if err != nil {
				return time.Time{}, fmt.Errorf("business hours timezone: %w", err)
			}

			t = t.In(loc)
		}
	}

	// Bounded: worst case is a weekend plus a closed window, a handful
	// of day hops. Ten days covers any legal configuration.
	for range 10 * 24 {
		if settings.SkipWeekends {
			if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
				t = startOfNextDay(t, hours)
				continue
			}
		}

		if hours != nil {
			if t.Hour() < hours.StartHour {
				t = time.Date(t.Year(), t.Month(), t.Day(), hours.StartHour, 0, 0, 0, t.Location())
				continue
			}

			if t.Hour() >= hours.EndHour {
				t = startOfNextDay(t, hours)
				continue
			}
		}

		return t, nil
	}

	return time.Time{}, fmt.Errorf("no eligible business window found after %s", t.Format(time.RFC3339))
}

func startOfNextDay(t time.Time, hours *models.BusinessHours) time.Time {
	startHour := 0
	if hours != nil {
		startHour = hours.StartHour
	}

	next := t.AddDate(0, 0, 1)

	return time.Date(next.Year(), next.Month(), next.Day(), startHour, 0, 0, 0, t.Location())
}
