// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysAgo returns the instant n whole days before now
func DaysAgo(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}

// MonthsBetween returns the number of whole calendar months from start to end.
// A month is complete once the same day-of-month and time of day is reached;
// 2024-01-31 to 2024-02-29 is therefore 0 months. Negative spans return 0.
func MonthsBetween(start, end time.Time) int {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return 0
	}

	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if endBeforeAnniversary(start, end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func endBeforeAnniversary(start, end time.Time) bool {
	if end.Day() != start.Day() {
		return end.Day() < start.Day()
	}
	sh, sm, ss := start.Clock()
	eh, em, es := end.Clock()
	startClock := time.Duration(sh)*time.Hour + time.Duration(sm)*time.Minute + time.Duration(ss)*time.Second + time.Duration(start.Nanosecond())
	endClock := time.Duration(eh)*time.Hour + time.Duration(em)*time.Minute + time.Duration(es)*time.Second + time.Duration(end.Nanosecond())
	return endClock < startClock
}
