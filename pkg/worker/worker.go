// Package worker runs document decoding in an isolated process. Workers
// consume decode tasks from asynq, load staged payloads from object
// storage, decode under a hard per-task timeout, and publish sanitized
// results back through redis.
package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

// Config holds worker server settings.
type Config struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
	Queues      map[string]int
	// TaskTimeout is the hard per-task deadline; the task context is
	// cancelled and the task fails once it elapses.
	TaskTimeout int // seconds
}

type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopChan chan struct{}
}

func (w *BaseWorker) Stop() error {
	close(w.stopChan)
	w.server.Stop()
	return nil
}
