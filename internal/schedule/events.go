package schedule

import (
	"sort"
	"time"
)

// TransitionKind says which way the power state flips at an event instant.
type TransitionKind int

const (
	OutageStart TransitionKind = iota
	OutageEnd
)

func (k TransitionKind) String() string {
	if k == OutageStart {
		return "outage_start"
	}
	return "outage_end"
}

// TransitionEvent is a future instant at which service state changes,
// derived from a snapshot's merged windows.
type TransitionEvent struct {
	At   time.Time
	Kind TransitionKind
}

// DeriveEvents turns a snapshot into the strictly-future, time-ordered list of
// state transitions. Each merged window contributes a start and an end event
// localized to its own date in loc; windows on consecutive days are never
// merged across the date boundary, but events falling on the same instant are
// collapsed to one (the earlier-emitted kind wins).
func DeriveEvents(s *Snapshot, now time.Time, loc *time.Location) []TransitionEvent {
	if s == nil {
		return nil
	}
	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)

	var events []TransitionEvent
	for _, dateKey := range sortedDateKeys(s.Schedule) {
		day, err := ParseDate(dateKey, loc)
		if err != nil || day.Before(today) {
			continue
		}
		for _, w := range MergeSlots(s.Schedule[dateKey]) {
			start := day.Add(time.Duration(w.StartMin) * time.Minute)
			end := day.Add(time.Duration(w.EndMin) * time.Minute)
			if start.After(now) {
				events = append(events, TransitionEvent{At: start, Kind: OutageStart})
			}
			if end.After(now) {
				events = append(events, TransitionEvent{At: end, Kind: OutageEnd})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })

	// Collapse identical instants (e.g. day N window ending at midnight and
	// day N+1 window starting there).
	deduped := events[:0]
	for _, ev := range events {
		if len(deduped) > 0 && deduped[len(deduped)-1].At.Equal(ev.At) {
			continue
		}
		deduped = append(deduped, ev)
	}
	return deduped
}

// NextEvent returns the earliest future transition, or false when there is none.
func NextEvent(s *Snapshot, now time.Time, loc *time.Location) (TransitionEvent, bool) {
	events := DeriveEvents(s, now, loc)
	if len(events) == 0 {
		return TransitionEvent{}, false
	}
	return events[0], true
}
