package schedule

import "sort"

// Window is a maximal contiguous outage interval for one date. DurationMin is
// the sum of the merged slots' nominal durations, not EndMin-StartMin: the
// source data's duration semantics survive even if the provider ever reports
// overlapping slots.
type Window struct {
	StartMin    int `json:"start_min"`
	EndMin      int `json:"end_min"` // may exceed 1440 for a midnight-crossing window
	DurationMin int `json:"duration_min"`
}

// MergeSlots collapses raw slots for one date into disjoint, sorted, maximal
// windows. Touching or overlapping slots merge; slots that fail to parse or
// have no positive duration are skipped. An empty or all-invalid input yields
// no windows.
func MergeSlots(slots []Slot) []Window {
	type span struct{ start, end int }
	spans := make([]span, 0, len(slots))
	for _, s := range slots {
		start, end, err := ParseTimeRange(s.Shutdown)
		if err != nil || end <= start {
			continue
		}
		spans = append(spans, span{start, end})
	}
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var windows []Window
	cur := Window{StartMin: spans[0].start, EndMin: spans[0].end, DurationMin: spans[0].end - spans[0].start}
	for _, sp := range spans[1:] {
		if sp.start <= cur.EndMin {
			if sp.end > cur.EndMin {
				cur.EndMin = sp.end
			}
			cur.DurationMin += sp.end - sp.start
		} else {
			windows = append(windows, cur)
			cur = Window{StartMin: sp.start, EndMin: sp.end, DurationMin: sp.end - sp.start}
		}
	}
	return append(windows, cur)
}

// HasOutage reports whether any date in the snapshot carries at least one
// valid outage window.
func HasOutage(s *Snapshot) bool {
	if s == nil {
		return false
	}
	for _, slots := range s.Schedule {
		if len(MergeSlots(slots)) > 0 {
			return true
		}
	}
	return false
}
