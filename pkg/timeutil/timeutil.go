// Package timeutil pins the engine's calendar arithmetic to a single
// location, so "yesterday" and "this week" mean the same thing for every
// group no matter where the server runs.
package timeutil

import "time"

// Location is used for every calendar boundary in the engine. UTC unless
// overridden once at startup, before the scheduler starts.
var Location = time.UTC

// FormatDate is the layout for day keys in synthetic event payloads.
const FormatDate = "2006-01-02"

// In shifts t into the engine location.
func In(t time.Time) time.Time { return t.In(Location) }

// StartOfDay truncates t to midnight in the engine location.
func StartOfDay(t time.Time) time.Time {
	local := In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Location)
}

// StartOfWeek truncates t to Monday midnight in the engine location.
func StartOfWeek(t time.Time) time.Time {
	local := In(t)
	back := int(local.Weekday()) - 1
	if back < 0 {
		back = 6 // Sunday
	}
	return StartOfDay(local.AddDate(0, 0, -back))
}
