// Package docx decodes DOCX documents. A DOCX file is a ZIP container; the
// primary path walks word/document.xml with encoding/xml to recover text,
// heading-based sections and table cells, and reads docProps/core.xml for
// metadata. No third-party office library is involved.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/feichai0017/attachment-extractor/internal/extract"
	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// charsPerPage approximates pagination; DOCX carries no real page breaks
// until rendered.
const charsPerPage = 3000

type Decoder struct {
	logger logger.Logger
}

func NewDecoder(log logger.Logger) *Decoder {
	return &Decoder{logger: log}
}

func (d *Decoder) Type() models.DocType {
	return models.TypeDOCX
}

func (d *Decoder) Decode(ctx context.Context, data []byte) (*models.ParsedContent, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX container: %w", err)
	}

	docXML, err := readZipFile(reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}

	content, err := walkDocument(ctx, docXML)
	if err != nil {
		// Markup conversion failed; fall back to raw tag stripping so a
		// damaged body still yields text.
		d.logger.Warn("DOCX markup walk failed, using raw text extraction",
			logger.Error(err),
		)
		text := strings.TrimSpace(stripTags(string(docXML)))
		if text == "" {
			return nil, fmt.Errorf("markup walk failed and no raw text recovered: %w", err)
		}
		content = &models.ParsedContent{
			Text: text,
			Structure: models.Structure{
				Sections: extract.DetectSections(text),
				Tables:   extract.DetectTables(text),
			},
		}
	}

	if coreXML, err := readZipFile(reader, "docProps/core.xml"); err == nil {
		readCoreProperties(coreXML, &content.Metadata)
	}
	content.Metadata.Pages = pageEstimate(content.Text)

	return content, nil
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not present in archive", name)
}

func pageEstimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerPage - 1) / charsPerPage
}

// coreProps mirrors the Dublin Core subset of docProps/core.xml.
type coreProps struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

func readCoreProperties(coreXML []byte, meta *models.Metadata) {
	var props coreProps
	if err := xml.Unmarshal(coreXML, &props); err != nil {
		return
	}
	meta.Title = props.Title
	meta.Author = props.Creator
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		meta.CreationDate = &t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		meta.ModificationDate = &t
	}
}
