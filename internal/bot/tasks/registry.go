package tasks

import (
	"context"

	"github.com/edgard/herald/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task.
// Tasks must respect ctx cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns every task keyed by the name used in the
// scheduler.tasks configuration section.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskMessageDelivery:  newMessageDeliveryTask(deps),
		config.TaskReminderDelivery: newReminderDeliveryTask(deps),
	}
	if deps.Journal != nil {
		tasks[config.TaskSQLMaintenance] = newSQLMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
