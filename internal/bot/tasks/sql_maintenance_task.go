package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask prunes journal rows past the retention window and
// compacts the database file.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting SQL maintenance")
		startTime := time.Now()

		if retention := deps.Config.Database.Retention; retention > 0 {
			cutoff := deps.now().Add(-retention)
			pruned, err := deps.Journal.PruneDeliveries(ctx, cutoff)
			if err != nil {
				log.ErrorContext(ctx, "Failed to prune delivery journal", "error", err)
				return fmt.Errorf("prune deliveries: %w", err)
			}
			log.InfoContext(ctx, "Pruned delivery journal", "rows", pruned, "before", cutoff)
		}

		if err := deps.Journal.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}
