package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/screwyprof/stakesnap/pkg/logger"
	"github.com/screwyprof/stakesnap/snapshot"
)

// eventLogging returns handlers logging snapshot progress with slog
func eventLogging(ctx context.Context, log *slog.Logger) []func(*snapshot.Subscriber) {
	return []func(*snapshot.Subscriber){
		snapshot.OnSnapshotStarted(func(event snapshot.SnapshotStarted) {
			log.InfoContext(ctx, "Snapshot started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.String("status", event.Status),
				slog.Uint64("pageLimit", event.PageLimit),
				slog.Int("workers", event.Workers),
			)
		}),
		snapshot.OnValidatorsEnumerated(func(event snapshot.ValidatorsEnumerated) {
			log.InfoContext(ctx, "Validators enumerated", slog.Int("count", event.Count))
		}),
		snapshot.OnValidatorProcessed(func(event snapshot.ValidatorProcessed) {
			log.InfoContext(ctx, "Validator processed",
				slog.String("validator", event.Validator),
				slog.Int("delegations", event.Delegations),
				slog.Int("delegators", event.Delegators),
				slog.String("progress", progress(event)),
			)
		}),
		snapshot.OnSnapshotDone(func(event snapshot.SnapshotDone) {
			log.InfoContext(ctx, "Snapshot completed",
				slog.Int("validators", event.Validators),
				slog.Int("delegators", event.Delegators),
				slog.Duration("duration", event.Duration),
			)
		}),
		snapshot.OnSnapshotError(func(event snapshot.SnapshotError) {
			log.ErrorContext(ctx, "Snapshot failed", slog.Any("error", event.Err))
		}),
	}
}

func progress(e snapshot.ValidatorProcessed) string {
	return fmt.Sprintf("%d/%d (%.1f%%)", e.Processed, e.Total, e.Percent())
}
