// Package tasks implements the periodic jobs run by the herald job runner:
// delivering due scheduled items and maintaining the delivery journal.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/herald/internal/config"
	"github.com/edgard/herald/internal/database"
	"github.com/edgard/herald/internal/scheduler"
	"github.com/edgard/herald/internal/store"
)

// Ticker fires the due items of one kind.
type Ticker interface {
	Tick(ctx context.Context, kind store.Kind, now time.Time) (scheduler.TickResult, error)
}

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Engine  Ticker
	Journal database.Store
	Config  *config.Config
	Now     func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
