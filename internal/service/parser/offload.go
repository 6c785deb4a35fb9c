package parser

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/queue"
	"github.com/feichai0017/attachment-extractor/pkg/storage"
)

// WorkerDispatcher offloads decoding to the worker pool: bytes are staged
// in object storage, a decode task is enqueued, and the result is polled
// from the queue's result store under a hard timeout. Workers run in
// separate processes with no ambient capabilities beyond storage and the
// result store, so a hostile document can at worst burn one task slot.
type WorkerDispatcher struct {
	store        storage.Storage
	queue        queue.Queue
	logger       logger.Logger
	timeout      time.Duration
	pollInterval time.Duration
}

// NewWorkerDispatcher builds a dispatcher with the hard per-task timeout.
func NewWorkerDispatcher(store storage.Storage, q queue.Queue, log logger.Logger, timeout time.Duration) *WorkerDispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WorkerDispatcher{
		store:        store,
		queue:        q,
		logger:       log,
		timeout:      timeout,
		pollInterval: 200 * time.Millisecond,
	}
}

// Decode runs one worker round-trip. Any failure is returned to the
// caller, which falls back to in-process decoding; a worker failure is
// never surfaced as a terminal parse error.
func (d *WorkerDispatcher) Decode(ctx context.Context, data []byte, t models.DocType, url string) (*models.ParsedContent, error) {
	taskID := uuid.New().String()
	objectID := fmt.Sprintf("payload/%s", taskID)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, err := d.store.Store(ctx, bytes.NewReader(data), objectID); err != nil {
		return nil, fmt.Errorf("failed to stage payload: %w", err)
	}

	task := &queue.DecodeTask{
		ID:        taskID,
		ObjectID:  objectID,
		DocType:   t,
		URL:       url,
		CreatedAt: time.Now(),
	}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		d.cleanupPayload(objectID)
		return nil, fmt.Errorf("failed to enqueue decode task: %w", err)
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.cleanupPayload(objectID)
			return nil, fmt.Errorf("worker decode timed out after %s", d.timeout)
		case <-ticker.C:
			result, ok, err := d.queue.GetResult(ctx, taskID)
			if err != nil {
				d.cleanupPayload(objectID)
				return nil, fmt.Errorf("failed to poll decode result: %w", err)
			}
			if !ok {
				continue
			}
			return result, nil
		}
	}
}

// cleanupPayload is best-effort; payloads that survive it are removed by
// the worker process's periodic CleanupBefore sweep.
func (d *WorkerDispatcher) cleanupPayload(objectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.Delete(ctx, objectID); err != nil {
		d.logger.Debug("Failed to clean up staged payload",
			logger.String("objectId", objectID),
			logger.Error(err),
		)
	}
}

// Close releases the queue clients.
func (d *WorkerDispatcher) Close() error {
	return d.queue.Close()
}
