// Package pdf decodes PDF documents into the normalized content model
// using github.com/ledongthuc/pdf for the primary path and a raw
// content-stream scan for the reduced path.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// pageSeparator joins per-page text in page order.
const pageSeparator = "\n\n"

// maxPageWorkers bounds the parallel page extraction fan-out.
const maxPageWorkers = 4

type Decoder struct {
	logger logger.Logger
}

func NewDecoder(log logger.Logger) *Decoder {
	return &Decoder{logger: log}
}

func (d *Decoder) Type() models.DocType {
	return models.TypePDF
}

// Decode opens the document, reads trailer metadata, extracts text per page
// in parallel, and records one section per page. Image extraction is
// best-effort: XObject image resources are counted, pixel data is not
// recovered.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	content := &models.ParsedContent{
		Metadata: models.Metadata{Pages: numPages},
	}
	d.readDocInfo(pdfReader, &content.Metadata)

	pageTexts := make([]string, numPages)
	images := make([][]models.Image, numPages)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxPageWorkers)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				// A single unreadable page does not fail the document.
				d.logger.Warn("Failed to extract page text",
					logger.Int("page", pageNum),
					logger.Error(err),
				)
				return nil
			}
			pageTexts[pageNum-1] = text
			images[pageNum-1] = collectImages(page, pageNum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("page extraction aborted: %w", err)
	}

	var sb strings.Builder
	sections := make([]models.Section, 0, numPages)
	for i, text := range pageTexts {
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		sb.WriteString(text)
		sections = append(sections, models.Section{
			Title:   fmt.Sprintf("Page %d", i+1),
			Content: strings.TrimSpace(text),
			Level:   1,
		})
	}
	content.Text = sb.String()
	content.Structure.Sections = sections
	content.Structure.Tables = extract.DetectTables(content.Text)
	for _, pageImages := range images {
		content.Structure.Images = append(content.Structure.Images, pageImages...)
	}

	return content, nil
}

func (d *Decoder) readDocInfo(r *pdf.Reader, meta *models.Metadata) {
	trailer := r.Trailer()
	if trailer.IsNull() {
		return
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return
	}
	if title := info.Key("Title"); !title.IsNull() {
		meta.Title = title.Text()
	}
	if author := info.Key("Author"); !author.IsNull() {
		meta.Author = author.Text()
	}
	if created := info.Key("CreationDate"); !created.IsNull() {
		meta.CreationDate = parsePDFDate(created.Text())
	}
	if modified := info.Key("ModDate"); !modified.IsNull() {
		meta.ModificationDate = parsePDFDate(modified.Text())
	}
}

// collectImages enumerates image XObjects in the page resources. Only
// identity is recorded; payloads stay in the document.
func collectImages(page pdf.Page, pageNum int) []models.Image {
	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return nil
	}
	keys := xobjects.Keys()
	sort.Strings(keys)
	var images []models.Image
	for _, name := range keys {
		obj := xobjects.Key(name)
		if obj.IsNull() || obj.Key("Subtype").Name() != "Image" {
			continue
		}
		images = append(images, models.Image{
			ID:          fmt.Sprintf("page%d/%s", pageNum, name),
			ContentType: "application/octet-stream",
			Data:        nil,
		})
	}
	return images
}

// parsePDFDate parses the PDF "D:YYYYMMDDHHmmSS" date form, ignoring the
// trailing timezone clause.
func parsePDFDate(s string) *time.Time {
	s = strings.TrimPrefix(s, "D:")
	for _, cut := range []string{"+", "-", "Z"} {
		if idx := strings.Index(s, cut); idx > 0 {
			s = s[:idx]
		}
	}
	for _, layout := range []string{"20060102150405", "200601021504", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
