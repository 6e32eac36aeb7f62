package tasks

import (
	"context"
	"fmt"
	"time"
)

// newTranscriptMaintenanceTask creates the scheduled task that prunes old
// transcript entries and compacts the database.
func newTranscriptMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "transcript_maintenance")
	retention := time.Duration(deps.Config.Database.RetentionDays) * 24 * time.Hour

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting transcript maintenance task...", "retention", retention)
		startTime := time.Now()

		cutoff := time.Now().UTC().Add(-retention)
		removed, err := deps.Store.PruneEntriesBefore(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Transcript pruning failed", "error", err)
			return fmt.Errorf("transcript pruning failed: %w", err)
		}

		if err := deps.Store.RunMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database maintenance failed", "error", err)
			return fmt.Errorf("database maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Transcript maintenance task completed",
			"removed", removed, "duration", time.Since(startTime))
		return nil
	}
}
