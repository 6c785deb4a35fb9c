package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
)

var (
	streamPattern = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	// Literal-string show operators: (text) Tj and [(a) (b)] TJ.
	tjPattern      = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*T[jJ]`)
	tjArrayElem    = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
	tjArrayPattern = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
)

// DecodeNaive is the reduced extraction path: it scans raw content streams
// for literal text-show operators, inflating Flate streams opportunistically.
// It shares no code with the primary decoder and survives documents that
// break the full parser.
func (d *Decoder) DecodeNaive(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF document")
	}

	var sb strings.Builder
	for _, match := range streamPattern.FindAllSubmatch(data, -1) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		raw := match[1]
		if inflated, err := inflate(raw); err == nil {
			raw = inflated
		}
		appendShownText(&sb, raw)
	}
	// Streams may also be absent (plain body); scan the whole buffer too.
	if sb.Len() == 0 {
		appendShownText(&sb, data)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("no literal text found in content streams")
	}

	return &models.ParsedContent{
		Text: text,
		Metadata: models.Metadata{
			Pages: countPages(data),
		},
		Structure: models.Structure{
			Sections: extract.DetectSections(text),
			Tables:   extract.DetectTables(text),
		},
	}, nil
}

// countPages counts page object markers, excluding the /Pages tree nodes
// the marker is a prefix of.
func countPages(data []byte) int {
	n := bytes.Count(data, []byte("/Type /Page")) + bytes.Count(data, []byte("/Type/Page"))
	n -= bytes.Count(data, []byte("/Type /Pages")) + bytes.Count(data, []byte("/Type/Pages"))
	if n < 0 {
		n = 0
	}
	return n
}

func appendShownText(sb *strings.Builder, raw []byte) {
	for _, m := range tjPattern.FindAllSubmatch(raw, -1) {
		sb.WriteString(unescapePDFString(string(m[1])))
		sb.WriteString(" ")
	}
	for _, arr := range tjArrayPattern.FindAllSubmatch(raw, -1) {
		for _, m := range tjArrayElem.FindAllSubmatch(arr[1], -1) {
			sb.WriteString(unescapePDFString(string(m[1])))
		}
		sb.WriteString(" ")
	}
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	// Inflate at most the text cap; damaged streams can claim huge sizes.
	return io.ReadAll(io.LimitReader(r, extract.MaxTextLen))
}

func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(s)
}
