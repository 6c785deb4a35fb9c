package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "github.com/feichai0017/attachment-extractor/config"
	"github.com/feichai0017/attachment-extractor/internal/service/parser"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/queue"
	"github.com/feichai0017/attachment-extractor/pkg/storage"
	"github.com/feichai0017/attachment-extractor/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pcfg := cfg.GetParserConfig()
	redisCfg := cfg.GetRedisConfig()

	store, err := storage.NewStorage(storage.StorageType(pcfg.StorageBackend), log)
	if err != nil {
		log.Error("Failed to initialize payload storage", logger.Error(err))
		os.Exit(1)
	}

	results, err := queue.NewAsynqQueue(&queue.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		MaxRetries:  1,
		TaskTimeout: pcfg.WorkerTimeout,
	})
	if err != nil {
		log.Error("Failed to initialize decode queue", logger.Error(err))
		os.Exit(1)
	}
	defer results.Close()

	workerCfg := &worker.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		Concurrency: 4,
		Queues: map[string]int{
			"default": 1,
		},
	}

	decodeWorker, err := worker.NewDecodeWorker(workerCfg, parser.NewRegistry(log), store, results, log)
	if err != nil {
		log.Error("Failed to create decode worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := decodeWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// Backstop for payloads orphaned by failed deletes or crashed peers.
	sweeper := worker.NewPayloadSweeper(store, log, 10*time.Minute, time.Hour)
	go sweeper.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	decodeWorker.Stop()
	log.Info("Worker stopped")
}
