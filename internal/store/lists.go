package store

import (
	"log/slog"
	"strings"
	"time"
)

// TodoList is the persisted to-do list.
type TodoList struct {
	*Collection[Todo]
}

// NewTodoList creates a to-do list backed by path. Creation times stored
// without an offset are read in loc; nil means time.Local.
func NewTodoList(path string, loc *time.Location, logger *slog.Logger) *TodoList {
	if loc == nil {
		loc = time.Local
	}
	c := NewCollection[Todo](path, "", logger)
	c.decode = todoDecoder(loc)
	return &TodoList{Collection: c}
}

// Add appends a pending to-do.
func (l *TodoList) Add(text, priority string, now time.Time) (Todo, error) {
	if priority == "" {
		priority = "medium"
	}
	t := Todo{
		Text:      strings.TrimSpace(text),
		Priority:  strings.ToLower(priority),
		Status:    ItemPending,
		CreatedAt: now,
	}
	err := l.Mutate(func(items []Todo) ([]Todo, bool) {
		t.ID = nextID(now, func(id int64) bool {
			for _, it := range items {
				if it.ID == id {
					return true
				}
			}
			return false
		})
		return append(items, t), true
	})
	return t, err
}

// Toggle flips a to-do between pending and completed.
func (l *TodoList) Toggle(id int64) (Todo, error) {
	var out Todo
	n, err := l.Update(
		func(t Todo) bool { return t.ID == id },
		func(t *Todo) {
			t.Status = t.Status.toggled()
			out = *t
		},
	)
	if err != nil {
		return Todo{}, err
	}
	if n == 0 {
		return Todo{}, ErrNotFound
	}
	return out, nil
}

// Remove deletes the to-do with id.
func (l *TodoList) Remove(id int64) error {
	n, err := l.Delete(func(t Todo) bool { return t.ID == id })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ShoppingList is the persisted shopping list.
type ShoppingList struct {
	*Collection[ShoppingItem]
}

// NewShoppingList creates a shopping list backed by path.
func NewShoppingList(path string, logger *slog.Logger) *ShoppingList {
	return &ShoppingList{Collection: NewCollection[ShoppingItem](path, "", logger)}
}

// Add appends a pending shopping item.
func (l *ShoppingList) Add(text, quantity string, now time.Time) (ShoppingItem, error) {
	if quantity == "" {
		quantity = "1"
	}
	s := ShoppingItem{
		Text:     strings.TrimSpace(text),
		Quantity: quantity,
		Status:   ItemPending,
	}
	err := l.Mutate(func(items []ShoppingItem) ([]ShoppingItem, bool) {
		s.ID = nextID(now, func(id int64) bool {
			for _, it := range items {
				if it.ID == id {
					return true
				}
			}
			return false
		})
		return append(items, s), true
	})
	return s, err
}

// Toggle flips a shopping item between pending and completed.
func (l *ShoppingList) Toggle(id int64) (ShoppingItem, error) {
	var out ShoppingItem
	n, err := l.Update(
		func(s ShoppingItem) bool { return s.ID == id },
		func(s *ShoppingItem) {
			s.Status = s.Status.toggled()
			out = *s
		},
	)
	if err != nil {
		return ShoppingItem{}, err
	}
	if n == 0 {
		return ShoppingItem{}, ErrNotFound
	}
	return out, nil
}

// Remove deletes the shopping item with id.
func (l *ShoppingList) Remove(id int64) error {
	n, err := l.Delete(func(s ShoppingItem) bool { return s.ID == id })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
