package util

import "time"

// IsWeekday reports whether t falls on Monday through Friday in UTC.
// Exchange holidays are not modelled; providers simply return no bar for them.
func IsWeekday(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// LastCompletedSession returns UTC midnight of the most recent weekday whose
// daily bar is final at now. A session is treated as complete from the next
// calendar day on, so today is never returned.
func LastCompletedSession(now time.Time) time.Time {
	u := now.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for !IsWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// CountWeekdays returns the number of weekdays in the inclusive range
// [start, end] (by UTC calendar day). It returns 0 when end precedes start.
func CountWeekdays(start, end time.Time) int {
	s := start.UTC()
	e := end.UTC()
	d := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	n := 0
	for !d.After(last) {
		if IsWeekday(d) {
			n++
		}
		d = d.AddDate(0, 0, 1)
	}
	return n
}
