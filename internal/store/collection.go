// Package store provides the flat-file JSON collections backing scheduled
// messages, reminders, contacts, to-dos and shopping items.
//
// Every collection keeps its records in memory and rewrites the whole backing
// file after each mutation. A per-collection mutex serialises the
// load-mutate-save cycle so the scheduler and the chat front end cannot lose
// each other's updates.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LoadResult summarises what Load found in the backing file.
type LoadResult struct {
	Loaded     int
	Skipped    int
	Renumbered int
	Missing    bool
	Corrupt    bool
}

// Collection is an ordered list of records persisted as one JSON document.
// When envelope is set the array is wrapped in an object under that key.
type Collection[T any] struct {
	path     string
	envelope string
	logger   *slog.Logger
	decode   func([]byte, *T) error

	mu    sync.Mutex
	items []T
}

// NewCollection creates a collection bound to path. It does not read the file; call Load.
func NewCollection[T any](path, envelope string, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collection[T]{
		path:     path,
		envelope: envelope,
		logger:   logger.With("component", "store", "file", filepath.Base(path)),
	}
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// Load replaces the in-memory records with the file contents.
// A missing or unparseable file yields an empty collection; records that fail
// to decode are skipped individually.
func (c *Collection[T]) Load() LoadResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, res := c.read()
	c.items = items
	return res
}

func (c *Collection[T]) read() ([]T, LoadResult) {
	var res LoadResult

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("Backing file not found, starting empty")
		res.Missing = true
		return []T{}, res
	}
	if err != nil {
		c.logger.Error("Failed to read backing file, starting empty", "error", err)
		res.Corrupt = true
		return []T{}, res
	}

	raw, err := c.unwrap(data)
	if err != nil {
		c.logger.Error("Backing file is corrupt, starting empty", "error", err)
		res.Corrupt = true
		return []T{}, res
	}

	items := make([]T, 0, len(raw))
	for i, r := range raw {
		var item T
		if err := c.decodeRecord(r, &item); err != nil {
			c.logger.Error("Skipping unreadable record", "index", i, "error", err)
			res.Skipped++
			continue
		}
		items = append(items, item)
	}
	res.Loaded = len(items)

	c.logger.Debug("Loaded records", "loaded", res.Loaded, "skipped", res.Skipped)
	return items, res
}

func (c *Collection[T]) decodeRecord(data []byte, item *T) error {
	if c.decode != nil {
		return c.decode(data, item)
	}
	return json.Unmarshal(data, item)
}

func (c *Collection[T]) unwrap(data []byte) ([]json.RawMessage, error) {
	if c.envelope == "" {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	inner, ok := doc[c.envelope]
	if !ok || string(inner) == "null" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(inner, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", c.envelope, err)
	}
	return raw, nil
}

// All returns a copy of the records in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Append adds item at the end and persists the collection.
func (c *Collection[T]) Append(item T) error {
	return c.Mutate(func(items []T) ([]T, bool) {
		return append(items, item), true
	})
}

// Update applies mutate to every record matching pred and persists if any matched.
func (c *Collection[T]) Update(pred func(T) bool, mutate func(*T)) (int, error) {
	var n int
	err := c.Mutate(func(items []T) ([]T, bool) {
		for i := range items {
			if pred(items[i]) {
				mutate(&items[i])
				n++
			}
		}
		return items, n > 0
	})
	return n, err
}

// Delete removes every record matching pred and persists if any matched.
func (c *Collection[T]) Delete(pred func(T) bool) (int, error) {
	var n int
	err := c.Mutate(func(items []T) ([]T, bool) {
		kept := items[:0]
		for _, it := range items {
			if pred(it) {
				n++
				continue
			}
			kept = append(kept, it)
		}
		return kept, n > 0
	})
	return n, err
}

// Mutate runs fn on a private copy of the records while holding the collection lock.
// When fn reports a change the copy is written to disk and, only if that
// succeeds, becomes the new in-memory state.
func (c *Collection[T]) Mutate(fn func(items []T) ([]T, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	work := make([]T, len(c.items))
	copy(work, c.items)

	next, changed := fn(work)
	if !changed {
		return nil
	}
	if next == nil {
		next = []T{}
	}

	if err := c.write(next); err != nil {
		c.logger.Error("Failed to persist collection", "error", err)
		return err
	}
	c.items = next
	return nil
}

// write serialises items to a temporary file next to the target and renames it into place.
func (c *Collection[T]) write(items []T) error {
	var doc any = items
	if c.envelope != "" {
		doc = map[string]any{c.envelope: items}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.path, err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", c.path, err)
	}

	c.logger.Debug("Collection persisted", "count", len(items))
	return nil
}
