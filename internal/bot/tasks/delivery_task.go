package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/herald/internal/store"
)

func newMessageDeliveryTask(deps TaskDeps) ScheduledTaskFunc {
	return newDeliveryTask(deps, store.KindMessage, "message_delivery")
}

func newReminderDeliveryTask(deps TaskDeps) ScheduledTaskFunc {
	return newDeliveryTask(deps, store.KindReminder, "reminder_delivery")
}

// newDeliveryTask fires every due item of kind once per run.
func newDeliveryTask(deps TaskDeps, kind store.Kind, name string) ScheduledTaskFunc {
	log := deps.Logger.With("task", name)

	return func(ctx context.Context) error {
		startTime := time.Now()

		res, err := deps.Engine.Tick(ctx, kind, deps.now())
		if err != nil {
			log.ErrorContext(ctx, "Delivery tick failed", "error", err)
			return fmt.Errorf("%s tick failed: %w", kind, err)
		}

		if res.Fired == 0 && res.Vanished == 0 {
			log.DebugContext(ctx, "Nothing due")
			return nil
		}
		log.InfoContext(ctx, "Delivery tick completed",
			"fired", res.Fired,
			"failed", res.Failed,
			"rescheduled", res.Rescheduled,
			"vanished", res.Vanished,
			"duration", time.Since(startTime))
		return nil
	}
}
