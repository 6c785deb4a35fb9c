package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/attachment-extractor/internal/decoder"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/queue"
	"github.com/feichai0017/attachment-extractor/pkg/storage"
)

// maxPayloadSize caps what a worker will read from staged storage,
// matching the validator's input cap.
const maxPayloadSize = 50 * 1024 * 1024

// DecodeWorker consumes decode tasks and runs the decoder registry.
type DecodeWorker struct {
	BaseWorker
	registry *decoder.Registry
	store    storage.Storage
	results  queue.Queue
}

func NewDecodeWorker(
	cfg *Config,
	registry *decoder.Registry,
	store storage.Storage,
	results queue.Queue,
	log logger.Logger,
) (*DecodeWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * 10 * time.Second
			},
		},
	)

	w := &DecodeWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		registry: registry,
		store:    store,
		results:  results,
	}
	w.mux.HandleFunc(queue.TaskTypeDecode, w.handleDecode)
	return w, nil
}

func (w *DecodeWorker) handleDecode(ctx context.Context, t *asynq.Task) error {
	var task queue.DecodeTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal decode task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal decode task: %w", err)
	}
	if task.ID == "" || task.ObjectID == "" {
		return fmt.Errorf("invalid decode task: missing required fields")
	}

	w.logger.Info("Processing decode task",
		logger.String("taskId", task.ID),
		logger.String("objectId", task.ObjectID),
		logger.String("docType", string(task.DocType)),
	)

	reader, err := w.store.Get(ctx, task.ObjectID)
	if err != nil {
		return fmt.Errorf("failed to load staged payload: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxPayloadSize))
	reader.Close()
	if err != nil {
		return fmt.Errorf("failed to read staged payload: %w", err)
	}

	// Decode never escapes the registry boundary with an error; a failed
	// decode is still a result the facade can react to.
	result := w.registry.Decode(ctx, task.DocType, data)
	decoder.Normalize(result)

	if err := w.results.SaveResult(ctx, task.ID, result); err != nil {
		return fmt.Errorf("failed to publish decode result: %w", err)
	}

	// Payload staging is single-use.
	if err := w.store.Delete(ctx, task.ObjectID); err != nil {
		w.logger.Warn("Failed to delete staged payload",
			logger.String("objectId", task.ObjectID),
			logger.Error(err),
		)
	}

	w.logger.Info("Decode task completed",
		logger.String("taskId", task.ID),
		logger.Bool("success", result.Success),
		logger.Int("textLen", len(result.Text)),
	)
	return nil
}

func (w *DecodeWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
