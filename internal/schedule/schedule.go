package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the per-date key format used by the shutdown parsers ("dd.mm.yy").
const DateLayout = "02.01.06"

// MinutesPerDay is the number of minutes in one calendar day.
const MinutesPerDay = 24 * 60

// Slot is one raw shutdown range for a single date, as the parser reports it.
// Shutdown is "HH:MM–HH:MM"; Status is free-form provider text and carries no
// meaning for the core.
type Slot struct {
	Shutdown string `json:"shutdown"`
	Status   string `json:"status,omitempty"`
}

// Snapshot is one fetched schedule for an address. Schedule maps "dd.mm.yy"
// date keys to raw slots in provider order.
type Snapshot struct {
	City      string            `json:"city"`
	Street    string            `json:"street"`
	House     string            `json:"house_num"`
	Group     string            `json:"group,omitempty"`
	Schedule  map[string][]Slot `json:"schedule"`
	FetchedAt time.Time         `json:"fetched_at,omitempty"`
}

// ParseTimeRange parses "HH:MM–HH:MM" (en dash or hyphen) into minutes from
// the start of the day. A range ending before it starts is read as crossing
// midnight, so the end minute may exceed 1440.
func ParseTimeRange(s string) (startMin, endMin int, err error) {
	sep := "–"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad time range %q", s)
	}
	start, err := parseHHMM(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad time range %q: %w", s, err)
	}
	end, err := parseHHMM(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad time range %q: %w", s, err)
	}
	if end < start {
		end += MinutesPerDay
	}
	return start, end, nil
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range %q", s)
	}
	return h*60 + m, nil
}

// FormatMinutes formats minutes-from-midnight as "HH:MM". Values past 1440
// wrap (a midnight-crossing end renders as next-day wall time).
func FormatMinutes(min int) string {
	min %= MinutesPerDay
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ParseDate parses a "dd.mm.yy" date key in the given location.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, loc)
}

// SortedDates returns the snapshot's date keys in calendar order.
func SortedDates(sched map[string][]Slot) []string {
	return sortedDateKeys(sched)
}

// sortedDateKeys returns the snapshot's date keys ordered by parsed calendar
// value, falling back to a raw string sort when any key fails to parse.
func sortedDateKeys(sched map[string][]Slot) []string {
	keys := make([]string, 0, len(sched))
	for k := range sched {
		keys = append(keys, k)
	}
	parsed := make(map[string]time.Time, len(keys))
	allParsed := true
	for _, k := range keys {
		t, err := time.Parse(DateLayout, k)
		if err != nil {
			allParsed = false
			break
		}
		parsed[k] = t
	}
	if allParsed {
		sort.Slice(keys, func(i, j int) bool { return parsed[keys[i]].Before(parsed[keys[j]]) })
	} else {
		sort.Strings(keys)
	}
	return keys
}
