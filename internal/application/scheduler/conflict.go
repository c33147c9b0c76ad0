package scheduler

import (
	"time"

	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// FindConflicts returns every session in dayBucket whose booked interval
// overlaps the candidate interval. Touching endpoints (back-to-back sessions)
// are not conflicts. excludeID skips the session being edited; pass "" for
// new sessions.
//
// The check is scoped to a single local-day bucket on the assumption that
// sessions never span a local midnight; a cross-midnight session would not be
// checked against the adjacent day's bucket. Known limitation.
func FindConflicts(candidateStart, candidateEnd time.Time, dayBucket []session.Session, excludeID string) []session.Session {
	var conflicts []session.Session
	for _, s := range dayBucket {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		if timeutil.RangesOverlap(candidateStart, candidateEnd, s.StartAt, s.EndAt) {
			conflicts = append(conflicts, s)
		}
	}
	return conflicts
}
