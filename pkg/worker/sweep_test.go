package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// recordingStore reports every CleanupBefore threshold it receives.
type recordingStore struct {
	*memStorage
	calls chan time.Time
}

func (r *recordingStore) CleanupBefore(ctx context.Context, threshold time.Time) error {
	r.calls <- threshold
	return nil
}

func TestPayloadSweeperRun(t *testing.T) {
	store := &recordingStore{memStorage: newMemStorage(), calls: make(chan time.Time, 8)}
	s := NewPayloadSweeper(store, logger.NewTestLogger(), 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case threshold := <-store.calls:
		assert.WithinDuration(t, time.Now().Add(-time.Hour), threshold, time.Minute,
			"threshold trails now by the retention period")
	case <-time.After(2 * time.Second):
		t.Fatal("sweep never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}

func TestPayloadSweeperDefaults(t *testing.T) {
	s := NewPayloadSweeper(newMemStorage(), logger.NewTestLogger(), 0, 0)
	require.Equal(t, 10*time.Minute, s.interval)
	require.Equal(t, time.Hour, s.retention)
}
