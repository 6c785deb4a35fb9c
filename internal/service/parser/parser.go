// Package parser is the document-parsing facade: fetch, validate, decode
// (in-process or via an isolated worker), cache, and degrade through the
// fallback chain on failure. Parse never returns an error; failures are
// always data.
package parser

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/attachment-extractor/internal/cache"
	"github.com/feichai0017/attachment-extractor/internal/decoder"
	"github.com/feichai0017/attachment-extractor/internal/diag"
	"github.com/feichai0017/attachment-extractor/internal/fetch"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/internal/utils/validator"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// ContentFetcher is what the facade needs from the network layer.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, *fetch.Info, error)
	FetchPrefix(ctx context.Context, url string, n int64) ([]byte, *fetch.Info, error)
}

// Offloader dispatches a decode to an isolated execution context. A nil
// Offloader means all decoding happens in-process.
type Offloader interface {
	Decode(ctx context.Context, data []byte, t models.DocType, url string) (*models.ParsedContent, error)
	Close() error
}

// Options are the per-call knobs supplied by the analysis orchestrator.
type Options struct {
	// Timeout bounds the whole parse call; zero means the config default.
	Timeout time.Duration
	// BypassCache forces a fresh parse.
	BypassCache bool
	// EnableWebpageFallback allows FallbackContent as a last-resort result.
	EnableWebpageFallback bool
	// FallbackContent is caller-captured page text mirroring the document.
	FallbackContent string
}

// Config holds the facade tunables.
type Config struct {
	MaxFileSize      int64
	ParseTimeout     time.Duration
	MaxConcurrent    int
	WorkerThreshold  int64 // bytes; inputs at or above this go to a worker
	AltDecodeTimeout time.Duration
	CacheEntries     int
	CacheTTL         time.Duration
	CacheSweep       time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize:      50 * 1024 * 1024,
		ParseTimeout:     60 * time.Second,
		MaxConcurrent:    3,
		WorkerThreshold:  1 * 1024 * 1024,
		AltDecodeTimeout: 10 * time.Second,
		CacheEntries:     50,
		CacheTTL:         15 * time.Minute,
		CacheSweep:       5 * time.Minute,
	}
}

// Parser orchestrates the extraction pipeline. The result cache and the
// in-flight slot set are the only shared mutable state; both are owned
// here and touched only at entry/exit of a parse call.
type Parser struct {
	fetcher   ContentFetcher
	validator *validator.DocumentValidator
	registry  *decoder.Registry
	cache     *cache.ResultCache
	offloader Offloader
	fallback  *fallbackChain
	diag      *diag.RingLog
	logger    logger.Logger
	config    *Config

	slots chan struct{}
}

// New wires the facade. offloader may be nil.
func New(
	fetcher ContentFetcher,
	v *validator.DocumentValidator,
	registry *decoder.Registry,
	offloader Offloader,
	log logger.Logger,
	config *Config,
) *Parser {
	if config == nil {
		config = DefaultConfig()
	}
	ring := diag.NewRingLog(diag.DefaultCapacity)
	p := &Parser{
		fetcher:   fetcher,
		validator: v,
		registry:  registry,
		cache: cache.NewResultCache(log, &cache.Config{
			MaxEntries:    config.CacheEntries,
			TTL:           config.CacheTTL,
			SweepInterval: config.CacheSweep,
		}),
		offloader: offloader,
		diag:      ring,
		logger:    log,
		config:    config,
		slots:     make(chan struct{}, config.MaxConcurrent),
	}
	p.fallback = newFallbackChain(fetcher, registry, ring, log, config.AltDecodeTimeout)
	return p
}

// Diagnostics returns a snapshot of the capped transition log.
func (p *Parser) Diagnostics() []diag.Entry {
	return p.diag.Entries()
}

// Cleanup releases the cache sweeper and the worker dispatcher. The parser
// must not be used afterwards.
func (p *Parser) Cleanup() {
	p.cache.Close()
	if p.offloader != nil {
		if err := p.offloader.Close(); err != nil {
			p.logger.Warn("Failed to close worker dispatcher", logger.Error(err))
		}
	}
}

// Parse runs the pipeline for one document reference. It always returns a
// ParsedContent; nothing is thrown past this boundary.
func (p *Parser) Parse(ctx context.Context, ref models.DocumentReference, opts *Options) *models.ParsedContent {
	start := time.Now()
	if opts == nil {
		opts = &Options{}
	}

	// Concurrency ceiling: fail fast, never queue. Queued requests would
	// pin their byte buffers for unbounded time.
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	default:
		p.logger.Warn("Rejected parse: too many concurrent operations",
			logger.String("url", ref.URL),
		)
		return p.finalize(terminalError(
			models.NewParseError(models.ErrTooManyConcurrent, "too many concurrent parse operations", nil),
			ref, nil, nil), ref, start)
	}

	opID := uuid.New().String()
	log := p.logger.With(logger.String("operationId", opID), logger.String("url", ref.URL))

	key := cache.Key(ref)
	if !opts.BypassCache {
		if cached, ok := p.cache.Get(key); ok {
			log.Debug("Cache hit")
			return cached
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.config.ParseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	claimed := ref.Type
	if claimed == models.TypeUnknown {
		claimed = inferType(ref)
	}

	result := p.run(ctx, log, ref, opts, claimed)
	result = p.finalize(result, ref, start)

	// Single atomic cache write, only for clean primary successes;
	// degraded results stay uncached so a later call can do better.
	if result.Success && result.FallbackUsed == "" {
		p.cache.Put(key, result)
	}
	return result
}

// run is the primary path; any failure other than SecurityRejected hands
// off to the fallback chain.
func (p *Parser) run(ctx context.Context, log logger.Logger, ref models.DocumentReference, opts *Options, claimed models.DocType) *models.ParsedContent {
	data, info, err := p.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		log.Warn("Primary fetch failed", logger.Error(err))
		p.diag.Append(diag.Entry{Stage: "fetch", URL: ref.URL, Message: "primary fetch failed", Err: err.Error()})
		return p.fallback.Run(ctx, ref, opts, nil, claimed, err, models.SecurityInfo{})
	}

	if claimed == models.TypeUnknown && info != nil {
		claimed = typeFromContentType(info.ContentType)
	}

	vres := p.validator.Validate(data, claimed)
	security := models.SecurityInfo{
		Validated:      true,
		Sanitized:      vres.Sanitized,
		Warnings:       vres.Warnings,
		SecurityChecks: vres.Checks,
	}

	if !vres.IsValid {
		cause := models.NewParseError(vres.Category, firstOf(vres.Errors), nil)
		if vres.Category == models.ErrSecurityRejected {
			// The one category that never reaches sanitization or any
			// fallback: the content itself is hostile.
			log.Warn("Document rejected by threat scan", logger.String("reason", firstOf(vres.Errors)))
			p.diag.Append(diag.Entry{Stage: "validate", URL: ref.URL, Message: "security rejection", Err: cause.Error()})
			r := terminalError(cause, ref, nil, nil)
			r.Security = security
			return r
		}
		log.Warn("Validation failed", logger.String("reason", firstOf(vres.Errors)))
		p.diag.Append(diag.Entry{Stage: "validate", URL: ref.URL, Message: "validation failed", Err: cause.Error()})
		return p.fallback.Run(ctx, ref, opts, data, claimed, cause, security)
	}
	if vres.Sanitized {
		data = vres.SanitizedData
	}
	if claimed == models.TypeUnknown {
		claimed = vres.DetectedType
	}
	if claimed == models.TypeUnknown {
		cause := models.NewParseError(models.ErrUnsupportedType, "could not determine document type", nil)
		return p.fallback.Run(ctx, ref, opts, data, claimed, cause, security)
	}

	result := p.decode(ctx, log, data, claimed, ref.URL)
	if !result.Success {
		cause := models.NewParseError(models.ErrDecodeFailure, result.Error, nil)
		log.Warn("Primary decode failed", logger.String("type", string(claimed)), logger.String("reason", result.Error))
		p.diag.Append(diag.Entry{Stage: "decode", URL: ref.URL, Message: "primary decode failed", Err: result.Error,
			Context: map[string]string{"claimedType": string(claimed)}})
		return p.fallback.Run(ctx, ref, opts, data, claimed, cause, security)
	}

	result.Source = models.Source{URL: ref.URL, Name: ref.Name, Type: claimed}
	result.Security = security
	if len(vres.Warnings) > 0 && result.Warning == "" {
		result.Warning = firstOf(vres.Warnings)
	}
	return result
}

// decode picks the execution context by input size. A worker failure is
// never terminal: the facade falls back to in-process decoding first.
func (p *Parser) decode(ctx context.Context, log logger.Logger, data []byte, t models.DocType, url string) *models.ParsedContent {
	if p.offloader != nil && int64(len(data)) >= p.config.WorkerThreshold {
		result, err := p.offloader.Decode(ctx, data, t, url)
		if err == nil {
			decoder.Normalize(result)
			return result
		}
		log.Warn("Worker decode failed, falling back to in-process",
			logger.Int("size", len(data)),
			logger.Error(err),
		)
		p.diag.Append(diag.Entry{Stage: "worker", URL: url, Message: "worker decode failed, using in-process", Err: err.Error()})
	}
	return p.registry.Decode(ctx, t, data)
}

// finalize enforces the output invariants and stamps timing.
func (p *Parser) finalize(result *models.ParsedContent, ref models.DocumentReference, start time.Time) *models.ParsedContent {
	decoder.Normalize(result)
	if result.Source.URL == "" {
		result.Source.URL = ref.URL
		result.Source.Name = ref.Name
		result.Source.Type = ref.Type
	}
	if result.FallbackUsed != "" && result.Warning == "" {
		result.Warning = "degraded extraction: " + result.FallbackUsed
	}
	result.ProcessingTime = time.Since(start).Milliseconds()
	return result
}

func inferType(ref models.DocumentReference) models.DocType {
	if t := models.TypeFromName(ref.Name); t != models.TypeUnknown {
		return t
	}
	return models.TypeFromName(ref.URL)
}

func typeFromContentType(contentType string) models.DocType {
	switch {
	case strings.Contains(contentType, "application/pdf"):
		return models.TypePDF
	case strings.Contains(contentType, "officedocument.wordprocessingml"):
		return models.TypeDOCX
	case strings.Contains(contentType, "application/msword"):
		return models.TypeDOC
	default:
		return models.TypeUnknown
	}
}

func firstOf(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
