package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GarbageCollector periodically purges expired messages from the DLQ
type GarbageCollector struct {
	purger    DLQPurger
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
}

// NewGarbageCollector creates a DLQ garbage collector
func NewGarbageCollector(purger DLQPurger, logger *zap.Logger, interval, retention time.Duration) *GarbageCollector {
	return &GarbageCollector{
		purger:    purger,
		logger:    logger,
		interval:  interval,
		retention: retention,
	}
}

// Start runs the garbage collection loop until the context is canceled
func (gc *GarbageCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	gc.logger.Info("dlq_gc_started",
		zap.Duration("interval", gc.interval),
		zap.Duration("retention", gc.retention))

	for {
		select {
		case <-ctx.Done():
			gc.logger.Info("dlq_gc_stopped")
			return
		case <-ticker.C:
			gc.runOnce(ctx)
		}
	}
}

func (gc *GarbageCollector) runOnce(ctx context.Context) {
	purged, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		gc.logger.Error("dlq_gc_purge_failed", zap.Error(err))
		return
	}
	if purged > 0 {
		gc.logger.Info("dlq_gc_purged", zap.Int("purged_count", purged))
	}
}
