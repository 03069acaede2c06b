// Package scheduler fires due scheduled messages and reminders.
//
// A tick snapshots the pending items of one kind that are due, performs their
// delivery side effects without holding the store lock, and then applies all
// status transitions in a single store write. Delivery is fire-and-forget: an
// item leaves pending in the tick it fires whether or not its send succeeded.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
)

// Dispatcher delivers a scheduled item to its recipient.
type Dispatcher interface {
	DispatchItem(ctx context.Context, item store.ScheduledItem) dispatch.Result
}

// Alerter announces a fired reminder on the host. Failures are logged and ignored.
type Alerter interface {
	Speak(ctx context.Context, text string) error
}

// TickResult summarises one tick.
type TickResult struct {
	Fired       int
	Failed      int
	Rescheduled int
	Vanished    int
}

// Engine runs ticks over one schedule per item kind.
type Engine struct {
	schedules  map[store.Kind]*store.Schedule
	locks      map[store.Kind]*sync.Mutex
	dispatcher Dispatcher
	alerter    Alerter
	logger     *slog.Logger
}

// NewEngine creates an engine over schedules. A nil alerter disables spoken alerts.
func NewEngine(dispatcher Dispatcher, alerter Alerter, logger *slog.Logger, schedules ...*store.Schedule) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		schedules:  make(map[store.Kind]*store.Schedule, len(schedules)),
		locks:      make(map[store.Kind]*sync.Mutex, len(schedules)),
		dispatcher: dispatcher,
		alerter:    alerter,
		logger:     logger.With("component", "scheduler"),
	}
	for _, s := range schedules {
		e.schedules[s.Kind()] = s
		e.locks[s.Kind()] = &sync.Mutex{}
	}
	return e
}

// ErrUnknownKind is returned by Tick for a kind without a schedule.
var ErrUnknownKind = errors.New("no schedule for item kind")

// Tick fires every pending item of kind whose due time is at or before now.
// Items due later are left untouched.
func (e *Engine) Tick(ctx context.Context, kind store.Kind, now time.Time) (TickResult, error) {
	sched, ok := e.schedules[kind]
	if !ok {
		return TickResult{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	mu := e.locks[kind]
	mu.Lock()
	defer mu.Unlock()

	var res TickResult
	due := dueItems(sched.Pending(), now)
	if len(due) == 0 {
		return res, nil
	}

	log := e.logger.With("kind", kind)
	log.DebugContext(ctx, "Firing due items", "count", len(due))

	fired := make([]firedItem, 0, len(due))
	for _, item := range due {
		if ok := e.fire(ctx, item); !ok {
			res.Failed++
		}
		fired = append(fired, firedItem{was: item, next: advance(item, now)})
	}

	err := sched.Mutate(func(items []store.ScheduledItem) ([]store.ScheduledItem, bool) {
		applied := make([]bool, len(items))
		for _, f := range fired {
			i := f.match(items, applied)
			if i < 0 {
				// Deleted while its delivery was in flight; nothing to persist.
				res.Vanished++
				continue
			}
			applied[i] = true
			items[i].Status = f.next.Status
			items[i].DueAt = f.next.DueAt
			res.Fired++
			if f.next.Status == store.StatusPending {
				res.Rescheduled++
			}
		}
		return items, res.Fired > 0
	})

	if err != nil {
		log.ErrorContext(ctx, "Failed to persist fired items", "error", err)
		return res, fmt.Errorf("failed to persist %s schedule: %w", kind, err)
	}

	log.InfoContext(ctx, "Tick complete", "fired", res.Fired, "failed", res.Failed, "rescheduled", res.Rescheduled, "vanished", res.Vanished)
	return res, nil
}

// firedItem pairs the snapshot an item was delivered from with its next state.
type firedItem struct {
	was  store.ScheduledItem
	next store.ScheduledItem
}

// match returns the index of the first stored item not yet applied that is
// still the pending item f was delivered from, or -1.
func (f firedItem) match(items []store.ScheduledItem, applied []bool) int {
	for i, it := range items {
		if applied[i] || it.Status != store.StatusPending {
			continue
		}
		if it.ID == f.was.ID && it.DueAt.Equal(f.was.DueAt) {
			return i
		}
	}
	return -1
}

// fire performs the delivery side effects of item and reports whether the
// send, if any, succeeded.
func (e *Engine) fire(ctx context.Context, item store.ScheduledItem) bool {
	log := e.logger.With("item_id", item.ID, "kind", item.Kind, "platform", item.Platform)

	switch item.Kind {
	case store.KindReminder:
		text := "Reminder: " + item.Label()
		if e.alerter != nil {
			if err := e.alerter.Speak(ctx, text); err != nil {
				log.WarnContext(ctx, "Failed to speak reminder", "error", err)
			}
		}
		if item.Platform == store.PlatformNone || item.Platform == "" {
			return true
		}
		if item.Body == "" {
			item.Body = text
		}
	}

	result := e.dispatcher.DispatchItem(ctx, item)
	if !result.Success {
		log.WarnContext(ctx, "Scheduled delivery failed", "detail", result.Message)
	}
	return result.Success
}

// dueItems returns the items whose due time is not after now.
func dueItems(pending []store.ScheduledItem, now time.Time) []store.ScheduledItem {
	var out []store.ScheduledItem
	for _, it := range pending {
		if !it.DueAt.After(now) {
			out = append(out, it)
		}
	}
	return out
}

// advance returns item as it should be stored after firing at now.
func advance(item store.ScheduledItem, now time.Time) store.ScheduledItem {
	if item.Kind == store.KindMessage {
		item.Status = store.StatusSent
		return item
	}

	period := item.Recurrence.Period()
	if period == 0 {
		item.Status = store.StatusTriggered
		return item
	}

	item.DueAt = NextOccurrence(item.DueAt, period, now)
	item.Status = store.StatusPending
	return item
}

// NextOccurrence advances due by whole periods until it lies after now.
// A backlog of missed occurrences collapses into the single late fire that
// has just happened.
func NextOccurrence(due time.Time, period time.Duration, now time.Time) time.Time {
	next := due.Add(period)
	if next.After(now) {
		return next
	}
	missed := now.Sub(next)/period + 1
	return next.Add(missed * period)
}
