// Package fetch retrieves untrusted remote documents with per-call
// timeouts, early Content-Length rejection, a hard read cap, and byte-range
// prefix requests used by content-type re-detection.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// Config bounds a fetcher.
type Config struct {
	Timeout time.Duration
	MaxSize int64 // bytes
}

// Info carries the response headers the pipeline cares about.
type Info struct {
	ContentType   string
	ContentLength int64
	StatusCode    int
}

type Fetcher struct {
	client *http.Client
	config *Config
	logger logger.Logger
}

func NewFetcher(log logger.Logger, config *Config) *Fetcher {
	if config == nil {
		config = &Config{
			Timeout: 20 * time.Second,
			MaxSize: 50 * 1024 * 1024,
		}
	}
	return &Fetcher{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		logger: log,
	}
}

// Fetch downloads the document at url. Oversize responses are rejected from
// the Content-Length header when present, and from the read cap otherwise.
// Errors are classified as Network or SizeLimit.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, *Info, error) {
	data, info, err := f.do(ctx, url, "")
	if err != nil {
		return nil, info, err
	}
	return data, info, nil
}

// FetchPrefix downloads at most n leading bytes using a Range request.
// Servers that ignore Range return the full body; the result is still
// truncated to n.
func (f *Fetcher) FetchPrefix(ctx context.Context, url string, n int64) ([]byte, *Info, error) {
	data, info, err := f.do(ctx, url, fmt.Sprintf("bytes=0-%d", n-1))
	if err != nil {
		return nil, info, err
	}
	if int64(len(data)) > n {
		data = data[:n]
	}
	return data, info, nil
}

func (f *Fetcher) do(ctx context.Context, url, rangeHeader string) ([]byte, *Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, models.NewParseError(models.ErrNetwork, "invalid document URL", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, models.NewParseError(models.ErrNetwork, "document fetch timed out", ctx.Err())
		}
		return nil, nil, models.NewParseError(models.ErrNetwork, "failed to fetch document", err)
	}
	defer resp.Body.Close()

	info := &Info{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		StatusCode:    resp.StatusCode,
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, info, models.NewParseError(models.ErrNetwork,
			fmt.Sprintf("access to document denied (HTTP %d)", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, info, models.NewParseError(models.ErrNetwork,
			fmt.Sprintf("server returned HTTP %d", resp.StatusCode), nil)
	}

	// Early rejection before buffering anything. Range responses report
	// the range length here, so the check only applies to full fetches.
	if rangeHeader == "" && resp.ContentLength > f.config.MaxSize {
		return nil, info, models.NewParseError(models.ErrSizeLimit,
			fmt.Sprintf("document size %d exceeds maximum of %d bytes", resp.ContentLength, f.config.MaxSize), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, info, models.NewParseError(models.ErrNetwork, "document fetch timed out", ctx.Err())
		}
		return nil, info, models.NewParseError(models.ErrNetwork, "failed to read document body", err)
	}
	if rangeHeader == "" && int64(len(data)) > f.config.MaxSize {
		return nil, info, models.NewParseError(models.ErrSizeLimit,
			fmt.Sprintf("document exceeds maximum of %d bytes", f.config.MaxSize), nil)
	}

	f.logger.Debug("Fetched document",
		logger.String("url", url),
		logger.Int("bytes", len(data)),
		logger.String("contentType", info.ContentType),
	)
	return data, info, nil
}
