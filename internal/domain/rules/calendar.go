package rules

import "time"

func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

// StartOfDay returns local midnight of now's day, in UTC.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

// SameDay reports whether t falls on the same calendar day as now.
func SameDay(t, now time.Time, loc *time.Location) bool {
	return DayKey(t, loc) == DayKey(now, loc)
}
