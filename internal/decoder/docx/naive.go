package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags is the crude markup-to-text conversion: drop every tag,
// collapse the whitespace that is left.
func stripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	return strings.Join(strings.Fields(text), " ")
}

// DecodeNaive is the reduced extraction path: pull word/document.xml out of
// the ZIP and strip tags, without the XML token walk. Structure comes from
// the plain-text heuristics only.
func (d *Decoder) DecodeNaive(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(stripTags(string(raw)))
		if text == "" {
			return nil, fmt.Errorf("document body contains no text")
		}
		return &models.ParsedContent{
			Text: text,
			Metadata: models.Metadata{
				Pages: pageEstimate(text),
			},
			Structure: models.Structure{
				Sections: extract.DetectSections(text),
				Tables:   extract.DetectTables(text),
			},
		}, nil
	}
	return nil, fmt.Errorf("word/document.xml not present in archive")
}
