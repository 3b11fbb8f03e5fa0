package checker

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blackout-watch/internal/cache"
	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

// ScheduleProvider fetches the current schedule for an address.
type ScheduleProvider interface {
	Fetch(ctx context.Context, addr models.AddressKey, groupHint string) (*schedule.Snapshot, error)
}

// NotificationSink delivers a changed-schedule notification to the subscriber.
type NotificationSink interface {
	SendScheduleUpdate(ctx context.Context, sub *models.Subscription, text string) error
}

// SubscriptionStore is the slice of the database the checker needs.
type SubscriptionStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	BatchUpdatePollState(ctx context.Context, updates []models.PollState) error
	UpdateAddressGroup(ctx context.Context, subscriptionID int64, group string) error
}

// Options tunes the check loop.
type Options struct {
	LoopInterval time.Duration // how often to look for due subscriptions
	RetryDelay   time.Duration // re-check delay after a failed fetch, shorter than a normal interval
	Concurrency  int           // max parallel provider fetches
}

// Checker polls the provider for due subscriptions, diffs schedule digests,
// and notifies subscribers whose schedule content actually changed.
type Checker struct {
	store SubscriptionStore
	prov  ScheduleProvider
	cache cache.Store
	sink  NotificationSink
	loc   *time.Location
	opts  Options
}

func New(store SubscriptionStore, prov ScheduleProvider, c cache.Store, sink NotificationSink, loc *time.Location, opts Options) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Checker{store: store, prov: prov, cache: c, sink: sink, loc: loc, opts: opts}
}

// Run blocks, executing check cycles until ctx is cancelled. Cancellation is
// only observed between cycles: a cycle that already started runs its fetches,
// sends, and the batch persist to completion on a detached context, so a
// shutdown signal never leaves half a cycle unpersisted. Run returns only
// after the in-progress cycle has finished.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.LoopInterval)
	defer ticker.Stop()

	work := context.WithoutCancel(ctx)

	log.Printf("[checker] started, loop interval %s", c.opts.LoopInterval)
	c.RunCycle(work, time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Printf("[checker] stopped")
			return
		case <-ticker.C:
			c.RunCycle(work, time.Now())
		}
	}
}

// fetchResult is one provider round-trip shared by every subscription of a group.
type fetchResult struct {
	snap   *schedule.Snapshot
	digest string
	err    error
}

// RunCycle processes every due subscription once. Subscriptions pointing at
// the same group (or, with no group known yet, the same address) share a
// single provider fetch. All poll-state changes are persisted in one batch
// at the end.
func (c *Checker) RunCycle(ctx context.Context, now time.Time) {
	subs, err := c.store.ListDue(ctx, now)
	if err != nil {
		log.Printf("[checker] list due subscriptions: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}
	log.Printf("[checker] cycle: %d subscription(s) due", len(subs))

	groups := groupSubscriptions(subs)

	var mu sync.Mutex
	results := make(map[string]*fetchResult, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for key, members := range groups {
		key, lead := key, members[0]
		g.Go(func() error {
			res := &fetchResult{}
			res.snap, res.err = c.prov.Fetch(gctx, lead.Address(), lead.Group)
			if res.err == nil {
				res.digest = schedule.Canonicalize(res.snap)
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	updates := make([]models.PollState, 0, len(subs))
	for key, members := range groups {
		res := results[key]
		for _, sub := range members {
			updates = append(updates, c.processSubscription(ctx, now, sub, res))
		}
	}

	if err := c.store.BatchUpdatePollState(ctx, updates); err != nil {
		log.Printf("[checker] persist poll state: %v", err)
	}
}

// processSubscription applies one fetch result to one subscription and
// returns the poll-state row to persist.
func (c *Checker) processSubscription(ctx context.Context, now time.Time, sub *models.Subscription, res *fetchResult) models.PollState {
	if res == nil || res.err != nil {
		// Failed fetch: keep the old digest and come back sooner than a
		// regular interval.
		return models.PollState{
			SubscriptionID: sub.ID,
			NextCheckAt:    now.Add(c.opts.RetryDelay),
		}
	}

	// Cache under this subscription's own address so the alert scheduler
	// finds it even when the fetch ran for another group member.
	if err := c.cache.Put(ctx, sub.Address(), cache.Entry{
		Snapshot:  res.snap,
		Digest:    res.digest,
		FetchedAt: now,
	}); err != nil {
		log.Printf("[checker] cache snapshot for %s: %v", sub.Address().Display(), err)
	}

	if g := res.snap.Group; g != "" && g != sub.Group {
		if err := c.store.UpdateAddressGroup(ctx, sub.ID, g); err != nil {
			log.Printf("[checker] save group %q for subscription %d: %v", g, sub.ID, err)
		} else {
			sub.Group = g
		}
	}

	next := now.Add(time.Duration(sub.CheckIntervalMin) * time.Minute)
	if res.digest == sub.LastDigest {
		return models.PollState{SubscriptionID: sub.ID, NextCheckAt: next}
	}

	// The content changed. Tell the subscriber only when there is a real
	// outage to report, or when this address has never produced a schedule
	// before (so "no outages anymore" after a known schedule stays silent,
	// but the very first result always lands).
	first := schedule.NeverObserved(sub.LastDigest)
	if schedule.HasOutage(res.snap) || first {
		text := FormatUpdate(sub, res.snap, first, c.loc)
		if err := c.sink.SendScheduleUpdate(ctx, sub, text); err != nil {
			// Keep the old digest so the diff fires again next cycle.
			log.Printf("[checker] notify subscription %d: %v", sub.ID, err)
			return models.PollState{
				SubscriptionID: sub.ID,
				NextCheckAt:    now.Add(c.opts.RetryDelay),
			}
		}
		log.Printf("[checker] notified subscription %d (%s)", sub.ID, sub.Address().Display())
	}

	return models.PollState{
		SubscriptionID: sub.ID,
		NextCheckAt:    next,
		Digest:         res.digest,
		DigestChanged:  true,
	}
}

// groupSubscriptions buckets due subscriptions so each provider group is
// fetched once per cycle. Subscriptions with no learned group yet fall back
// to their address key.
func groupSubscriptions(subs []*models.Subscription) map[string][]*models.Subscription {
	groups := make(map[string][]*models.Subscription)
	for _, sub := range subs {
		key := sub.Group
		if key == "" {
			key = sub.Address().String()
		}
		groups[key] = append(groups[key], sub)
	}
	return groups
}
