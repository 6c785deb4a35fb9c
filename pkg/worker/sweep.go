package worker

import (
	"context"
	"time"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/storage"
)

// PayloadSweeper periodically removes staged payloads older than the
// retention period. Staging is single-use and both the worker and the
// dispatcher delete objects best-effort, so the sweep only catches
// payloads orphaned by a failed delete or a crashed process.
type PayloadSweeper struct {
	store     storage.Storage
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
}

// NewPayloadSweeper builds a sweeper. Non-positive interval and retention
// get the 10 minute / 1 hour defaults.
func NewPayloadSweeper(store storage.Storage, log logger.Logger, interval, retention time.Duration) *PayloadSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &PayloadSweeper{
		store:     store,
		logger:    log,
		interval:  interval,
		retention: retention,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *PayloadSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PayloadSweeper) sweep(ctx context.Context) {
	threshold := time.Now().Add(-s.retention)
	if err := s.store.CleanupBefore(ctx, threshold); err != nil {
		s.logger.Error("Failed to sweep staged payloads", logger.Error(err))
		return
	}
	s.logger.Info("Completed staged payload sweep",
		logger.Time("threshold", threshold),
	)
}
