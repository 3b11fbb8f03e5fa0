package schedule

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// SentinelDigest is returned for a snapshot with no shutdown content at all.
// It is a distinguished value, never a hash, so "no schedule yet" can never
// collide with the digest of a real schedule and downstream dedup logic can
// special-case the never-observed state.
const SentinelDigest = "NO_SCHEDULE_FOUND"

// Canonicalize reduces a snapshot to a stable content digest. Two snapshots
// with the same shutdown ranges produce the same digest regardless of date-key
// order, slot order, or incidental fields like Status and FetchedAt. Any change
// to a slot's timing changes the digest.
func Canonicalize(s *Snapshot) string {
	if s == nil {
		return SentinelDigest
	}
	type day struct {
		date   string
		ranges []string
	}
	var days []day
	for _, date := range sortedDateKeys(s.Schedule) {
		slots := append([]Slot(nil), s.Schedule[date]...)
		sort.SliceStable(slots, func(i, j int) bool {
			return slotStartMin(slots[i]) < slotStartMin(slots[j])
		})
		var ranges []string
		for _, slot := range slots {
			if slot.Shutdown == "" {
				continue
			}
			ranges = append(ranges, slot.Shutdown)
		}
		if len(ranges) == 0 {
			continue
		}
		days = append(days, day{date: date, ranges: ranges})
	}
	if len(days) == 0 {
		return SentinelDigest
	}

	// Deterministic compact serialization: sorted keys, no whitespace.
	var b bytes.Buffer
	b.WriteString(`{"schedule":{`)
	for i, d := range days {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:[", d.date)
		for j, r := range d.ranges {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, `{"shutdown":%q}`, r)
		}
		b.WriteByte(']')
	}
	b.WriteString("}}")

	sum := sha256.Sum256(b.Bytes())
	return hex.EncodeToString(sum[:])
}

// slotStartMin is the sort key for canonical slot ordering. Unparseable slots
// sort to the front; they still enter the digest so a provider glitch is
// visible as a change.
func slotStartMin(s Slot) int {
	start, _, err := ParseTimeRange(s.Shutdown)
	if err != nil {
		return 0
	}
	return start
}

// NeverObserved reports whether a stored digest means the subscription has
// never seen a real schedule: either no successful check yet, or only the
// sentinel value.
func NeverObserved(digest string) bool {
	return digest == "" || digest == SentinelDigest
}
