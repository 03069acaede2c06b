package store

import (
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound is returned when an operation targets an id that is not stored.
var ErrNotFound = errors.New("item not found")

// Schedule holds the scheduled items of one kind.
type Schedule struct {
	*Collection[ScheduledItem]
	kind Kind
}

// NewSchedule creates a schedule for kind backed by path. Due times stored
// without an offset are read in loc; nil means time.Local.
func NewSchedule(kind Kind, path string, loc *time.Location, logger *slog.Logger) *Schedule {
	if loc == nil {
		loc = time.Local
	}
	c := NewCollection[ScheduledItem](path, "", logger)
	c.decode = scheduledItemDecoder(loc)
	return &Schedule{Collection: c, kind: kind}
}

// Load reads the backing file. Records repeating an earlier id get a fresh
// one, so a tick can tell them apart; the renumbered file is written back.
func (s *Schedule) Load() LoadResult {
	c := s.Collection
	c.mu.Lock()
	defer c.mu.Unlock()

	items, res := c.read()
	res.Renumbered = renumberDuplicates(items)
	c.items = items
	if res.Renumbered > 0 {
		c.logger.Warn("Renumbered items with duplicate ids", "count", res.Renumbered)
		if err := c.write(items); err != nil {
			c.logger.Error("Failed to persist renumbered items", "error", err)
		}
	}
	return res
}

// renumberDuplicates gives every item whose id was already seen the next
// free id and returns how many it changed.
func renumberDuplicates(items []ScheduledItem) int {
	taken := make(map[int64]bool, len(items))
	for _, it := range items {
		taken[it.ID] = true
	}
	seen := make(map[int64]bool, len(items))
	n := 0
	for i := range items {
		id := items[i].ID
		if !seen[id] {
			seen[id] = true
			continue
		}
		for taken[id] {
			id++
		}
		taken[id], seen[id] = true, true
		items[i].ID = id
		n++
	}
	return n
}

// Kind returns the item kind stored in this schedule.
func (s *Schedule) Kind() Kind {
	return s.kind
}

// Add assigns an id and creation time if missing, forces the schedule's kind and appends the item.
// An id already in use is bumped to the next free one.
func (s *Schedule) Add(item ScheduledItem, now time.Time) (ScheduledItem, error) {
	err := s.Mutate(func(items []ScheduledItem) ([]ScheduledItem, bool) {
		taken := func(id int64) bool {
			for _, it := range items {
				if it.ID == id {
					return true
				}
			}
			return false
		}
		if item.ID == 0 {
			item.ID = nextID(now, taken)
		}
		for taken(item.ID) {
			item.ID++
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.Kind = s.kind
		if item.Status == "" {
			item.Status = StatusPending
		}
		if item.Recurrence == "" {
			item.Recurrence = RecurrenceNone
		}
		if item.Platform == "" {
			item.Platform = PlatformNone
		}
		return append(items, item), true
	})
	return item, err
}

// Get returns the item with id.
func (s *Schedule) Get(id int64) (ScheduledItem, bool) {
	for _, it := range s.All() {
		if it.ID == id {
			return it, true
		}
	}
	return ScheduledItem{}, false
}

// Pending returns the items still waiting to fire, in insertion order.
func (s *Schedule) Pending() []ScheduledItem {
	var out []ScheduledItem
	for _, it := range s.All() {
		if it.Status == StatusPending {
			out = append(out, it)
		}
	}
	return out
}

// Remove deletes the item with id. Deleting before the due time cancels delivery.
func (s *Schedule) Remove(id int64) error {
	n, err := s.Delete(func(it ScheduledItem) bool { return it.ID == id })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nextID derives an id from the creation time, bumping it until taken reports it is free.
func nextID(now time.Time, taken func(int64) bool) int64 {
	id := now.UnixMilli()
	for taken(id) {
		id++
	}
	return id
}
