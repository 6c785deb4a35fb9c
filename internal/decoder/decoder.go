// Package decoder defines the format decoder contract and the static
// registry that selects a decoder per document type. Decoder capabilities
// are fixed at construction; there is no runtime conditional loading.
package decoder

import (
	"context"
	"fmt"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// Decoder turns a raw byte buffer into the normalized content model.
// Implementations return an error for internal failures; the registry
// converts errors and panics into a failed ParsedContent so nothing
// propagates past the decode boundary.
type Decoder interface {
	// Type reports the document type this decoder handles.
	Type() models.DocType

	// Decode runs the full extraction: text, metadata, structure.
	Decode(ctx context.Context, data []byte) (*models.ParsedContent, error)

	// DecodeNaive runs a reduced, dependency-light extraction used by the
	// alternate-decode fallback. It must not share the primary code path.
	DecodeNaive(ctx context.Context, data []byte) (*models.ParsedContent, error)
}

// Registry maps document types to decoders.
type Registry struct {
	decoders map[models.DocType]Decoder
	logger   logger.Logger
}

// NewRegistry builds a registry with the given decoders.
func NewRegistry(log logger.Logger, decoders ...Decoder) *Registry {
	r := &Registry{
		decoders: make(map[models.DocType]Decoder, len(decoders)),
		logger:   log,
	}
	for _, d := range decoders {
		r.decoders[d.Type()] = d
	}
	return r
}

// Get returns the decoder for a document type.
func (r *Registry) Get(t models.DocType) (Decoder, error) {
	d, ok := r.decoders[t]
	if !ok {
		return nil, models.NewParseError(models.ErrUnsupportedType,
			fmt.Sprintf("no decoder registered for type %q", t), nil)
	}
	return d, nil
}

// Decode runs the primary decoder for t. It always returns a value: decoder
// errors and panics become {Success:false, Error}.
func (r *Registry) Decode(ctx context.Context, t models.DocType, data []byte) *models.ParsedContent {
	return r.run(ctx, t, data, false)
}

// DecodeNaive runs the reduced extraction path for t.
func (r *Registry) DecodeNaive(ctx context.Context, t models.DocType, data []byte) *models.ParsedContent {
	return r.run(ctx, t, data, true)
}

func (r *Registry) run(ctx context.Context, t models.DocType, data []byte, naive bool) (result *models.ParsedContent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Decoder panic recovered",
				logger.String("type", string(t)),
				logger.Any("panic", rec),
			)
			result = Failed(fmt.Sprintf("decoder panic: %v", rec))
		}
	}()

	d, err := r.Get(t)
	if err != nil {
		return Failed(err.Error())
	}

	var content *models.ParsedContent
	if naive {
		content, err = d.DecodeNaive(ctx, data)
	} else {
		content, err = d.Decode(ctx, data)
	}
	if err != nil {
		return Failed(err.Error())
	}
	if content == nil {
		return Failed("decoder returned no content")
	}
	Normalize(content)
	return content
}

// Failed builds a failed result honoring the success/text/error invariant.
func Failed(msg string) *models.ParsedContent {
	return &models.ParsedContent{
		Success: false,
		Error:   msg,
		Structure: models.Structure{
			Sections: []models.Section{},
			Tables:   []models.Table{},
			Images:   []models.Image{},
		},
	}
}

// Normalize enforces the output invariants on a decoder result: text cap,
// word count, success flag consistency, non-nil structure slices.
func Normalize(c *models.ParsedContent) {
	c.Text = extract.Truncate(c.Text)
	c.Metadata.WordCount = extract.CountWords(c.Text)
	if c.Structure.Sections == nil {
		c.Structure.Sections = []models.Section{}
	}
	if c.Structure.Tables == nil {
		c.Structure.Tables = []models.Table{}
	}
	if c.Structure.Images == nil {
		c.Structure.Images = []models.Image{}
	}
	for i := range c.Structure.Sections {
		c.Structure.Sections[i].Level = extract.ClampLevel(c.Structure.Sections[i].Level)
	}
	// Numeric fields from untrusted decode paths are clamped to sane
	// ranges before crossing a trust boundary.
	if c.Metadata.Pages < 0 {
		c.Metadata.Pages = 0
	}
	if c.Metadata.Pages > 100_000 {
		c.Metadata.Pages = 100_000
	}
	if c.ProcessingTime < 0 {
		c.ProcessingTime = 0
	}
	c.Success = c.Text != ""
	if !c.Success {
		if c.Error == "" {
			c.Error = "no text could be extracted"
		}
	} else {
		c.Error = ""
	}
}
