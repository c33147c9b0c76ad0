package scheduler

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// ExpandWeekly produces the weekly series derived from a base session:
// one session exactly 7*i days after the base date for i = 1..weeks, each
// preserving the base session's start and end time-of-day and all other
// fields. The base session itself is not included in the output; the caller
// combines. Produced sessions carry no id and are marked Recurring; id
// assignment happens at persistence time. No conflict checking happens here.
// PRE: weeks >= 1, base.StartAt < base.EndAt
func ExpandWeekly(base session.Session, weeks int, n *timeutil.Normalizer) ([]session.Session, error) {
	if weeks < 1 {
		return nil, ErrInvalidRepeat
	}

	localStart := n.ToLocalDate(base.StartAt)
	localEnd := n.ToLocalDate(base.EndAt)

	// Weekly rule anchored on the local start so wall-clock time is preserved
	// across the series even when an occurrence lands past a DST change.
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   weeks + 1, // dtstart counts as the first occurrence
		Dtstart: localStart,
	})
	if err != nil {
		return nil, fmt.Errorf("building weekly rule: %w", err)
	}

	occurrences := rule.All()
	if len(occurrences) != weeks+1 {
		return nil, fmt.Errorf("weekly rule produced %d occurrences, want %d", len(occurrences), weeks+1)
	}

	out := make([]session.Session, 0, weeks)
	for _, occStart := range occurrences[1:] {
		occEnd := endOnDate(occStart, localEnd)
		s := base
		s.ID = ""
		s.StartAt = n.ToStoredInstant(occStart)
		s.EndAt = n.ToStoredInstant(occEnd)
		s.DateKey = n.DateKey(s.StartAt)
		s.Recurring = true
		out = append(out, s)
	}
	return out, nil
}

// endOnDate places the base session's end wall-clock on the occurrence's
// calendar day, preserving end time-of-day rather than duration.
func endOnDate(occStart, localEnd time.Time) time.Time {
	return time.Date(occStart.Year(), occStart.Month(), occStart.Day(),
		localEnd.Hour(), localEnd.Minute(), localEnd.Second(), localEnd.Nanosecond(),
		occStart.Location())
}
