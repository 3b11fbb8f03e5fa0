package alerts

import (
	"context"
	"log"
	"time"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/checker"
	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

// AlertStore is the slice of the database the alert scheduler needs.
type AlertStore interface {
	ListAlertable(ctx context.Context) ([]*models.Subscription, error)
	UpdateLastAlerted(ctx context.Context, subscriptionID int64, at time.Time) error
}

// AlertSink delivers a lead-time warning to the subscriber.
type AlertSink interface {
	SendAlert(ctx context.Context, sub *models.Subscription, text string, eventAt time.Time) error
}

// Scheduler warns subscribers shortly before the next transition: an outage
// start or a restoration. It only reads cached snapshots; fetching is the
// checker's job.
type Scheduler struct {
	store        AlertStore
	cache        cache.Store
	sink         AlertSink
	loc          *time.Location
	loopInterval time.Duration
}

func New(store AlertStore, c cache.Store, sink AlertSink, loc *time.Location, loopInterval time.Duration) *Scheduler {
	return &Scheduler{store: store, cache: c, sink: sink, loc: loc, loopInterval: loopInterval}
}

// Run blocks, executing alert cycles until ctx is cancelled. As in the
// checker, cancellation is observed between cycles only; an in-progress cycle
// finishes its sends and store writes on a detached context.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.loopInterval)
	defer ticker.Stop()

	work := context.WithoutCancel(ctx)

	log.Printf("[alerts] started, loop interval %s", s.loopInterval)
	s.RunCycle(work, time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Printf("[alerts] stopped")
			return
		case <-ticker.C:
			s.RunCycle(work, time.Now())
		}
	}
}

// RunCycle checks every alert-enabled subscription once. A warning fires when
// the next transition falls inside the subscription's lead window and that
// exact instant has not been alerted yet, so a crossed threshold produces
// exactly one message no matter how many cycles observe it.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) {
	subs, err := s.store.ListAlertable(ctx)
	if err != nil {
		log.Printf("[alerts] list subscriptions: %v", err)
		return
	}

	for _, sub := range subs {
		if err := s.checkOne(ctx, now, sub); err != nil {
			log.Printf("[alerts] subscription %d: %v", sub.ID, err)
		}
	}
}

func (s *Scheduler) checkOne(ctx context.Context, now time.Time, sub *models.Subscription) error {
	entry, ok, err := s.cache.Get(ctx, sub.Address())
	if err != nil {
		return err
	}
	if !ok || entry.Snapshot == nil {
		// Nothing fetched for this address yet.
		return nil
	}

	ev, ok := schedule.NextEvent(entry.Snapshot, now, s.loc)
	if !ok {
		return nil
	}

	until := ev.At.Sub(now)
	if until <= 0 || until > time.Duration(sub.LeadTimeMin)*time.Minute {
		return nil
	}
	if sub.LastAlertedAt != nil && sub.LastAlertedAt.Equal(ev.At) {
		return nil
	}

	text := checker.FormatAlert(sub, ev, now)
	if err := s.sink.SendAlert(ctx, sub, text, ev.At); err != nil {
		return err
	}
	if err := s.store.UpdateLastAlerted(ctx, sub.ID, ev.At); err != nil {
		return err
	}
	log.Printf("[alerts] warned subscription %d (%s), %s at %s",
		sub.ID, sub.Address().Display(), ev.Kind, ev.At.Format(time.RFC3339))
	return nil
}
