// Package doc handles legacy OLE compound documents (.doc). There is no
// maintained Go reader for the binary Word format, so extraction is
// best-effort: printable runs are pulled straight from the WordDocument
// stream region of the container. Output quality is explicitly degraded
// compared to the DOCX path.
package doc

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// minRunLen filters decoding noise: shorter printable runs are almost
// always structure bytes that happen to be ASCII.
const minRunLen = 4

const charsPerPage = 3000

type Decoder struct {
	logger logger.Logger
}

func NewDecoder(log logger.Logger) *Decoder {
	return &Decoder{logger: log}
}

func (d *Decoder) Type() models.DocType {
	return models.TypeDOC
}

func (d *Decoder) Decode(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	if !bytes.HasPrefix(data, oleSignature) {
		return nil, fmt.Errorf("not an OLE compound document")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	text := extractPrintableRuns(data)
	if text == "" {
		return nil, fmt.Errorf("no readable text recovered from binary document")
	}

	return &models.ParsedContent{
		Text: text,
		Metadata: models.Metadata{
			Pages: (len(text) + charsPerPage - 1) / charsPerPage,
		},
		Structure: models.Structure{
			Sections: extract.DetectSections(text),
			Tables:   extract.DetectTables(text),
		},
	}, nil
}

// DecodeNaive for legacy documents skips even the signature check and
// scans whatever it is given.
func (d *Decoder) DecodeNaive(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	text := extractPrintableRuns(data)
	if text == "" {
		return nil, fmt.Errorf("no readable text recovered")
	}
	return &models.ParsedContent{
		Text: text,
		Structure: models.Structure{
			Sections: extract.DetectSections(text),
			Tables:   extract.DetectTables(text),
		},
	}, nil
}

// extractPrintableRuns collects printable character runs, handling both
// the single-byte and UTF-16LE text regions Word interleaves.
func extractPrintableRuns(data []byte) string {
	var parts []string

	// Single-byte runs.
	var run []byte
	flush := func() {
		if len(run) >= minRunLen {
			s := strings.TrimSpace(string(run))
			if s != "" && hasLetters(s) {
				parts = append(parts, s)
			}
		}
		run = run[:0]
	}
	for _, b := range data {
		if b >= 0x20 && b < 0x7F || b == '\n' || b == '\t' {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()

	// UTF-16LE runs (ASCII byte followed by NUL), common in newer .doc
	// text streams.
	var u16 []uint16
	flushU16 := func() {
		if len(u16) >= minRunLen {
			s := strings.TrimSpace(string(utf16.Decode(u16)))
			if s != "" && hasLetters(s) {
				parts = append(parts, s)
			}
		}
		u16 = u16[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		c := uint16(data[i]) | uint16(data[i+1])<<8
		if c >= 0x20 && c < 0x7F {
			u16 = append(u16, c)
			continue
		}
		flushU16()
	}
	flushU16()

	return strings.TrimSpace(strings.Join(dedupe(parts), "\n"))
}

func hasLetters(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if letters >= 2 {
				return true
			}
		}
	}
	return false
}

// dedupe drops adjacent duplicates; the two scan passes recover the same
// region when the text is plain ASCII.
func dedupe(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := parts[:0]
	for _, p := range parts {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
