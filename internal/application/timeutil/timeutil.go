// Package timeutil normalizes times across the UTC-storage / local-display
// boundary used by the scheduling engine. Sessions are persisted as UTC
// instants; the calendar UI works in local calendar days keyed by YYYY-MM-DD.
package timeutil

import (
	"fmt"
	"time"
)

// DateKeyLayout is the canonical local calendar day format.
const DateKeyLayout = "2006-01-02"

// MonthKeyLayout is the canonical month bucket format.
const MonthKeyLayout = "2006-01"

// Normalizer converts between stored instants and local calendar concepts.
// All methods are pure; the only state is the display timezone.
// Round-tripping is lossless within a single UTC-offset period; a DST
// transition between the two calls can shift the result by the offset
// change. Known limitation, not corrected here.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a Normalizer for the given display timezone.
// PRE: none
// POST: nil loc falls back to time.Local
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Location returns the display timezone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// ToStoredInstant converts a local wall-clock time to the stored UTC instant.
// PRE: local carries the display timezone's calendar fields
// POST: result is in UTC and refers to the same instant
func (n *Normalizer) ToStoredInstant(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), n.loc).UTC()
}

// ToLocalDate converts a stored instant to local wall-clock time.
func (n *Normalizer) ToLocalDate(instant time.Time) time.Time {
	return instant.In(n.loc)
}

// DateKey returns the zero-padded YYYY-MM-DD key for the local calendar day
// containing the given instant.
func (n *Normalizer) DateKey(instant time.Time) string {
	return instant.In(n.loc).Format(DateKeyLayout)
}

// MonthKey returns the YYYY-MM key for the local calendar month containing
// the given instant.
func (n *Normalizer) MonthKey(instant time.Time) string {
	return instant.In(n.loc).Format(MonthKeyLayout)
}

// MonthKeyFor formats a year/month pair as a month key.
// PRE: month is 1..12
func MonthKeyFor(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// NearestHalfHour rounds an instant to :00 or :30.
// Minute < 15 rounds down to :00, 15-44 to :30, >= 45 up to the next hour.
// Seconds and sub-second precision are truncated to zero.
func (n *Normalizer) NearestHalfHour(t time.Time) time.Time {
	local := t.In(n.loc)
	hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, n.loc)
	switch m := local.Minute(); {
	case m < 15:
		return hour
	case m < 45:
		return hour.Add(30 * time.Minute)
	default:
		return hour.Add(time.Hour)
	}
}

// MonthRange returns the stored-instant range covering the given month padded
// by paddingWeeks*7 days on each side. Padding lets a single range query also
// cover the boundary weeks of adjacent months. The end instant is the final
// nanosecond of the last padded day, so an inclusive [start, end] query on
// session start instants captures the whole day.
// PRE: month is 1..12, paddingWeeks >= 0
func (n *Normalizer) MonthRange(year int, month time.Month, paddingWeeks int) (time.Time, time.Time) {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, n.loc)
	lastDay := firstDay.AddDate(0, 1, -1)
	start := firstDay.AddDate(0, 0, -paddingWeeks*7)
	end := lastDay.AddDate(0, 0, paddingWeeks*7+1).Add(-time.Nanosecond)
	return start.UTC(), end.UTC()
}

// RangesOverlap reports whether two half-open intervals intersect.
// Touching endpoints do not count as overlap.
func RangesOverlap(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// AddMinutes returns the instant shifted by the given number of minutes.
func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// FormatTimeOfDay renders the local wall-clock time of an instant, e.g. "09:30".
func (n *Normalizer) FormatTimeOfDay(t time.Time) string {
	return t.In(n.loc).Format("15:04")
}

// FormatRange renders a start/end pair as "09:30 - 10:30" in local time.
func (n *Normalizer) FormatRange(start, end time.Time) string {
	return n.FormatTimeOfDay(start) + " - " + n.FormatTimeOfDay(end)
}
