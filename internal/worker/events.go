package worker

import (
	"context"

	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

// Events persists structured per-job log rows. Persistence is best
// effort: a failed insert must never fail the job it describes.
type Events struct {
	store  database.JobEventStore
	logger logger.Interface
}

// NewEvents creates a job event logger. A nil store disables persistence.
func NewEvents(store database.JobEventStore, log logger.Interface) *Events {
	return &Events{store: store, logger: log}
}

// Log writes one job event row.
func (e *Events) Log(ctx context.Context, jobID, level, message string, metadata domain.JSONBMap) {
	if e.store == nil {
		return
	}

	if err := e.store.Insert(ctx, jobID, level, message, metadata); err != nil {
		e.logger.Warn("Failed to persist job event",
			"job_id", jobID, "message", message, "error", err)
	}
}
