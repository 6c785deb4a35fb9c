package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/attachment-extractor/internal/decoder"
	"github.com/feichai0017/attachment-extractor/internal/diag"
	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/internal/utils/validator"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// Fallback strategy names, stamped into ParsedContent.FallbackUsed.
const (
	FallbackAltDecode  = "Alternate extraction"
	FallbackTypeDetect = "Content type detection"
	FallbackPartial    = "Partial content"
	FallbackWebpage    = "Webpage content"
)

// redetectPrefixLen is how much of the document the type re-detection
// fetches; every signature the validator knows sits in the first bytes.
const redetectPrefixLen = 512

// fallbackChain sequences the degraded extraction strategies:
//
//	ALT_DECODE -> TYPE_REDETECT -> PARTIAL_CONTENT -> WEBPAGE_FALLBACK -> TERMINAL_ERROR
//
// The chain advances only on failure; the first strategy producing usable
// text short-circuits and stamps FallbackUsed. Every transition is logged
// and appended to the diagnostic ring.
type fallbackChain struct {
	fetcher          ContentFetcher
	registry         *decoder.Registry
	diag             *diag.RingLog
	logger           logger.Logger
	altDecodeTimeout time.Duration
}

func newFallbackChain(fetcher ContentFetcher, registry *decoder.Registry, ring *diag.RingLog, log logger.Logger, altTimeout time.Duration) *fallbackChain {
	if altTimeout <= 0 {
		altTimeout = 10 * time.Second
	}
	return &fallbackChain{
		fetcher:          fetcher,
		registry:         registry,
		diag:             ring,
		logger:           log,
		altDecodeTimeout: altTimeout,
	}
}

// Run walks the chain. data may be nil when the primary fetch itself
// failed; strategies that need bytes re-fetch on their own.
func (f *fallbackChain) Run(
	ctx context.Context,
	ref models.DocumentReference,
	opts *Options,
	data []byte,
	claimed models.DocType,
	cause error,
	security models.SecurityInfo,
) *models.ParsedContent {
	attempted := make([]string, 0, 4)
	stepErrs := make(map[string]string)

	record := func(stage, msg string, err error) {
		entry := diag.Entry{
			Stage:   stage,
			URL:     ref.URL,
			Message: msg,
			Context: map[string]string{
				"claimedType":   string(claimed),
				"originalError": cause.Error(),
			},
		}
		if err != nil {
			entry.Err = err.Error()
		}
		f.diag.Append(entry)
	}

	// ALT_DECODE
	attempted = append(attempted, FallbackAltDecode)
	if result, err := f.altDecode(ctx, ref, data, claimed); err == nil {
		record("fallback", "alternate extraction succeeded", nil)
		f.logger.Info("Fallback succeeded",
			logger.String("strategy", FallbackAltDecode),
			logger.String("url", ref.URL),
		)
		result.FallbackUsed = FallbackAltDecode
		result.Warning = fmt.Sprintf("primary extraction failed (%s); alternate extraction used", cause.Error())
		result.Source = models.Source{URL: ref.URL, Name: ref.Name, Type: claimed}
		result.Security = security
		return result
	} else {
		stepErrs[FallbackAltDecode] = err.Error()
		record("fallback", "alternate extraction failed", err)
	}

	// TYPE_REDETECT
	attempted = append(attempted, FallbackTypeDetect)
	if result, detected, err := f.typeRedetect(ctx, ref, claimed); err == nil {
		record("fallback", fmt.Sprintf("content re-detected as %s", detected), nil)
		f.logger.Info("Fallback succeeded",
			logger.String("strategy", FallbackTypeDetect),
			logger.String("url", ref.URL),
			logger.String("detectedType", string(detected)),
		)
		result.FallbackUsed = FallbackTypeDetect
		result.Warning = fmt.Sprintf("claimed type %s did not decode; content re-detected as %s", claimed, detected)
		result.Source = models.Source{URL: ref.URL, Name: ref.Name, Type: detected}
		result.Security = security
		return result
	} else {
		stepErrs[FallbackTypeDetect] = err.Error()
		record("fallback", "content type re-detection failed", err)
	}

	// PARTIAL_CONTENT
	attempted = append(attempted, FallbackPartial)
	if ref.PartialContent != "" {
		record("fallback", "using caller-supplied partial content", nil)
		result := wrapText(ref.PartialContent)
		result.FallbackUsed = FallbackPartial
		result.Warning = "document could not be parsed; previously captured partial content returned"
		result.Source = models.Source{URL: ref.URL, Name: ref.Name, Type: claimed}
		result.Security = security
		return result
	}
	stepErrs[FallbackPartial] = "no partial content available"

	// WEBPAGE_FALLBACK
	attempted = append(attempted, FallbackWebpage)
	if opts.EnableWebpageFallback && opts.FallbackContent != "" {
		record("fallback", "using caller-supplied webpage content", nil)
		result := wrapText(opts.FallbackContent)
		result.FallbackUsed = FallbackWebpage
		result.Warning = "document could not be parsed; hosting page text returned instead"
		result.Source = models.Source{URL: ref.URL, Name: ref.Name, Type: models.TypeWebpage}
		result.Security = security
		return result
	}
	stepErrs[FallbackWebpage] = "webpage fallback not enabled or no content supplied"

	// TERMINAL_ERROR
	record("fallback", "all fallback strategies exhausted", cause)
	f.logger.Error("All fallback strategies exhausted",
		logger.String("url", ref.URL),
		logger.String("claimedType", string(claimed)),
		logger.Error(cause),
	)
	result := terminalError(cause, ref, attempted, stepErrs)
	result.Security = security
	return result
}

// altDecode runs the reduced extraction path under its own timeout,
// re-fetching the document when the primary fetch never produced bytes.
func (f *fallbackChain) altDecode(ctx context.Context, ref models.DocumentReference, data []byte, claimed models.DocType) (*models.ParsedContent, error) {
	if claimed == models.TypeUnknown {
		return nil, fmt.Errorf("no document type to decode as")
	}
	altCtx, cancel := context.WithTimeout(ctx, f.altDecodeTimeout)
	defer cancel()

	if data == nil {
		fetched, _, err := f.fetcher.Fetch(altCtx, ref.URL)
		if err != nil {
			return nil, fmt.Errorf("re-fetch for alternate extraction failed: %w", err)
		}
		data = fetched
	}

	result := f.registry.DecodeNaive(altCtx, claimed, data)
	if !result.Success {
		return nil, fmt.Errorf("alternate extraction produced no text: %s", result.Error)
	}
	return result, nil
}

// typeRedetect fetches a signature-sized prefix, re-identifies the format,
// and on a mismatch re-fetches in full and decodes as the detected type.
func (f *fallbackChain) typeRedetect(ctx context.Context, ref models.DocumentReference, claimed models.DocType) (*models.ParsedContent, models.DocType, error) {
	prefix, _, err := f.fetcher.FetchPrefix(ctx, ref.URL, redetectPrefixLen)
	if err != nil {
		return nil, models.TypeUnknown, fmt.Errorf("prefix fetch failed: %w", err)
	}

	detected := validator.DetectType(prefix)
	if detected == models.TypeUnknown {
		detected = typeFromMime(prefix)
	}
	if detected == models.TypeUnknown {
		return nil, detected, fmt.Errorf("content type could not be detected")
	}
	if detected == claimed {
		return nil, detected, fmt.Errorf("detected type matches claimed type %s", claimed)
	}

	data, _, err := f.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, detected, fmt.Errorf("full re-fetch failed: %w", err)
	}
	result := f.registry.Decode(ctx, detected, data)
	if !result.Success {
		return nil, detected, fmt.Errorf("decode as %s failed: %s", detected, result.Error)
	}
	return result, detected, nil
}

func typeFromMime(prefix []byte) models.DocType {
	mime := mimetype.Detect(prefix)
	switch {
	case mime.Is("application/pdf"):
		return models.TypePDF
	case mime.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"),
		mime.Is("application/zip"):
		return models.TypeDOCX
	case mime.Is("application/msword"), mime.Is("application/x-ole-storage"):
		return models.TypeDOC
	default:
		return models.TypeUnknown
	}
}

// wrapText turns caller-supplied text into a well-formed result; structure
// comes from the plain-text heuristics only.
func wrapText(text string) *models.ParsedContent {
	text = extract.Truncate(text)
	return &models.ParsedContent{
		Text:    text,
		Success: true,
		Structure: models.Structure{
			Sections: extract.DetectSections(text),
			Tables:   extract.DetectTables(text),
		},
	}
}
