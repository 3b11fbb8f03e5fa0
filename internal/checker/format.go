package checker

import (
	"fmt"
	"strings"
	"time"

	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

const (
	msgUpdateHeader = "🔔 <b>ОНОВЛЕННЯ ГРАФІКУ!</b>"
	msgFirstHeader  = "🔔 <b>Графік перевірено</b>"
	msgNoOutages    = "✅ Відключень не заплановано"
)

// FormatUpdate renders a changed schedule as an HTML message for the
// subscriber: one block per date, merged windows with total outage time.
// The first successful observation is announced with its own header so it
// doesn't read as a change to a schedule the subscriber never saw.
func FormatUpdate(sub *models.Subscription, snap *schedule.Snapshot, first bool, loc *time.Location) string {
	var b strings.Builder
	if first {
		b.WriteString(msgFirstHeader)
	} else {
		b.WriteString(msgUpdateHeader)
	}
	b.WriteString("\n\n📍 ")
	b.WriteString(sub.Address().Display())
	if sub.Group != "" {
		fmt.Fprintf(&b, " (група %s)", sub.Group)
	}

	wroteAny := false
	for _, date := range schedule.SortedDates(snap.Schedule) {
		windows := schedule.MergeSlots(snap.Schedule[date])
		if len(windows) == 0 {
			continue
		}
		wroteAny = true
		fmt.Fprintf(&b, "\n\n📅 <b>%s</b>", date)
		for _, w := range windows {
			fmt.Fprintf(&b, "\n⚡️ %s–%s (%s)",
				schedule.FormatMinutes(w.StartMin),
				schedule.FormatMinutes(w.EndMin),
				formatDuration(w.DurationMin))
		}
	}
	if !wroteAny {
		b.WriteString("\n\n")
		b.WriteString(msgNoOutages)
	}
	return b.String()
}

// FormatAlert renders the lead-time warning sent shortly before a transition:
// an upcoming outage start or an upcoming restoration.
func FormatAlert(sub *models.Subscription, ev schedule.TransitionEvent, now time.Time) string {
	minutes := int(ev.At.Sub(now).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if ev.Kind == schedule.OutageEnd {
		return fmt.Sprintf(
			"💡 Через %d хв очікується відновлення світла.\n\n📍 %s\n🕓 Час: %s",
			minutes, sub.Address().Display(), ev.At.Format("15:04"))
	}
	return fmt.Sprintf(
		"⚠️ <b>Увага!</b> Через %d хв можливе відключення світла.\n\n📍 %s\n🕓 Початок: %s",
		minutes, sub.Address().Display(), ev.At.Format("15:04"))
}

func formatDuration(min int) string {
	h, m := min/60, min%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d хв", m)
	case m == 0:
		return fmt.Sprintf("%d год", h)
	default:
		return fmt.Sprintf("%d год %d хв", h, m)
	}
}
