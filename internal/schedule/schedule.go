package schedule

import (
	"time"

	"github.com/supplyscope/supply-cli/internal/model"
)

// NextRun computes the next firing time for a schedule strictly after now.
// It is a pure function of the schedule fields and the given clock reading;
// it never increments a previous NextRun, so a scheduler that stalls does not
// accumulate a backlog of catch-up runs.
func NextRun(s model.Schedule, now time.Time) time.Time {
	switch s.Frequency {
	case model.FreqHourly:
		return now.Truncate(time.Hour).Add(time.Hour)
	case model.FreqDaily:
		return nextDaily(now, clampHour(s.Hour))
	case model.FreqWeekly:
		return nextWeekly(now, clampWeekday(s.DayOfWeek), clampHour(s.Hour))
	case model.FreqMonthly:
		return nextMonthly(now, s.DayOfMonth, clampHour(s.Hour))
	}
	// Unknown frequency; fire in a day rather than never.
	return now.Add(24 * time.Hour)
}

func nextDaily(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly uses day-of-week 0 = Monday through 6 = Sunday.
func nextWeekly(now time.Time, dayOfWeek, hour int) time.Time {
	// Go's Weekday has Sunday = 0; shift so Monday = 0.
	today := (int(now.Weekday()) + 6) % 7
	delta := (dayOfWeek - today + 7) % 7

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location()).AddDate(0, 0, delta)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// nextMonthly clamps the requested day to the length of the target month, so
// a day-31 schedule fires on Feb 28 (or 29) rather than skipping February.
func nextMonthly(now time.Time, dayOfMonth, hour int) time.Time {
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}

	day := dayOfMonth
	if last := daysIn(now.Year(), now.Month()); day > last {
		day = last
	}
	next := time.Date(now.Year(), now.Month(), day, hour, 0, 0, 0, now.Location())
	if next.After(now) {
		return next
	}

	year, month := now.Year(), now.Month()+1
	if month > time.December {
		year, month = year+1, time.January
	}
	day = dayOfMonth
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, 0, 0, 0, now.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampHour(h int) int {
	if h < 0 || h > 23 {
		return 0
	}
	return h
}

func clampWeekday(d int) int {
	if d < 0 || d > 6 {
		return 0
	}
	return d
}

// ShouldRun reports whether s is due at now.
func ShouldRun(s model.Schedule, now time.Time) bool {
	return s.Enabled && !s.NextRun.After(now)
}

// MarkRun records a completed firing and schedules the next one from now.
func MarkRun(s *model.Schedule, now time.Time) {
	t := now
	s.LastRun = &t
	s.NextRun = NextRun(*s, now)
}
