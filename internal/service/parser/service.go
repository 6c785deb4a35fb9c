package parser

import (
	"fmt"

	cfg "github.com/feichai0017/attachment-extractor/config"
	"github.com/feichai0017/attachment-extractor/internal/decoder"
	"github.com/feichai0017/attachment-extractor/internal/decoder/doc"
	"github.com/feichai0017/attachment-extractor/internal/decoder/docx"
	"github.com/feichai0017/attachment-extractor/internal/decoder/pdf"
	"github.com/feichai0017/attachment-extractor/internal/fetch"
	"github.com/feichai0017/attachment-extractor/internal/utils/validator"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
	"github.com/feichai0017/attachment-extractor/pkg/queue"
	"github.com/feichai0017/attachment-extractor/pkg/storage"
)

// NewRegistry builds the standard decoder set. The same registry runs in
// the facade process and in workers.
func NewRegistry(log logger.Logger) *decoder.Registry {
	return decoder.NewRegistry(log,
		pdf.NewDecoder(log),
		docx.NewDecoder(log),
		doc.NewDecoder(log),
	)
}

// GetService assembles a production parser from configuration: fetcher,
// validator, decoder registry, and (when enabled) the worker dispatcher.
func GetService(log logger.Logger) (*Parser, error) {
	pcfg := cfg.GetParserConfig()
	maxSize := pcfg.MaxFileSizeMB * 1024 * 1024

	fetcher := fetch.NewFetcher(log, &fetch.Config{
		Timeout: pcfg.FetchTimeout,
		MaxSize: maxSize,
	})
	v := validator.NewDocumentValidator(log, &validator.Config{MaxFileSize: maxSize})
	registry := NewRegistry(log)

	var offloader Offloader
	if pcfg.WorkerEnabled {
		store, err := storage.NewStorage(storage.StorageType(pcfg.StorageBackend), log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize payload storage: %w", err)
		}
		redisCfg := cfg.GetRedisConfig()
		q, err := queue.NewAsynqQueue(&queue.Config{
			RedisAddr:   redisCfg.Addr,
			RedisDB:     redisCfg.DB,
			MaxRetries:  1,
			TaskTimeout: pcfg.WorkerTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize decode queue: %w", err)
		}
		offloader = NewWorkerDispatcher(store, q, log, pcfg.WorkerTimeout)
	}

	return New(fetcher, v, registry, offloader, log, &Config{
		MaxFileSize:     maxSize,
		ParseTimeout:    pcfg.ParseTimeout,
		MaxConcurrent:   pcfg.MaxConcurrent,
		WorkerThreshold: pcfg.WorkerThresholdKB * 1024,
		CacheEntries:    pcfg.CacheEntries,
		CacheTTL:        pcfg.CacheTTL,
		CacheSweep:      pcfg.CacheSweep,
	}), nil
}
