package quota

import "time"

// Quota reset cycles.
const (
	CycleNone    = "none"
	CycleDaily   = "daily"
	CycleWeekly  = "weekly"
	CycleMonthly = "monthly"
)

// Cron specs for the reset schedules. Weekly resets on Monday midnight,
// monthly on the first of the month.
const (
	cronDaily   = "0 0 * * *"
	cronWeekly  = "0 0 * * 1"
	cronMonthly = "0 0 1 * *"
)

// cycleStart returns the beginning of the current cycle containing now,
// in local time. For CycleNone the zero time is returned, meaning the
// cycle never rolls over.
func cycleStart(cycle string, now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch cycle {
	case CycleDaily:
		return midnight
	case CycleWeekly:
		// Weeks start on Monday.
		offset := (int(now.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset)
	case CycleMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

// staleCycle reports whether a persisted cycle start predates the current
// cycle boundary, meaning the persisted consumption belongs to a cycle
// that has already reset.
func staleCycle(cycle string, persistedStart, now time.Time) bool {
	current := cycleStart(cycle, now)
	if current.IsZero() {
		return false
	}
	return persistedStart.Before(current)
}
