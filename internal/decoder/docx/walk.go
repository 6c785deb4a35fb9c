package docx

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/feichai0017/attachment-extractor/internal/models"
)

// walkDocument streams through word/document.xml and builds the content
// model: paragraph text in order, Heading1..6 styled paragraphs opening
// sections, table rows/cells, and drawings recorded as image placeholders.
func walkDocument(ctx context.Context, docXML []byte) (*models.ParsedContent, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var (
		textParts []string
		sections  []models.Section
		tables    []models.Table
		images    []models.Image

		current *models.Section

		para         strings.Builder
		inParagraph  bool
		pendingStyle string

		table    *models.Table
		row      []string
		cell     strings.Builder
		inCell   bool
		imageSeq int
	)

	closeSection := func() {
		if current != nil {
			current.Content = strings.TrimSpace(current.Content)
			sections = append(sections, *current)
			current = nil
		}
	}

	flushParagraph := func() {
		text := para.String()
		para.Reset()
		inParagraph = false
		style := pendingStyle
		pendingStyle = ""

		if level, ok := headingStyleLevel(style); ok {
			closeSection()
			current = &models.Section{Title: strings.TrimSpace(text), Level: level}
			if strings.TrimSpace(text) != "" {
				textParts = append(textParts, strings.TrimSpace(text))
			}
			return
		}
		if strings.TrimSpace(text) != "" {
			textParts = append(textParts, text)
			if current != nil {
				current.Content += text + "\n"
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed document markup: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
			case "pStyle":
				pendingStyle = attrValue(t, "val")
			case "tab":
				writeText(&para, &cell, inCell, "\t")
			case "br", "cr":
				writeText(&para, &cell, inCell, "\n")
			case "tbl":
				table = &models.Table{}
			case "tr":
				row = nil
			case "tc":
				inCell = true
				cell.Reset()
			case "drawing", "pict":
				imageSeq++
				images = append(images, models.Image{
					ID:          fmt.Sprintf("image%d", imageSeq),
					ContentType: "application/octet-stream",
					Data:        nil, // embedded media is ignored by policy
				})
			case "docPr":
				if alt := attrValue(t, "descr"); alt != "" && len(images) > 0 {
					images[len(images)-1].Alt = alt
				}
			}
		case xml.CharData:
			writeText(&para, &cell, inCell, string(t))
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph && !inCell {
					flushParagraph()
				}
			case "tc":
				inCell = false
				row = append(row, strings.TrimSpace(cell.String()))
			case "tr":
				if table != nil && len(row) > 0 {
					table.Rows = append(table.Rows, row)
				}
			case "tbl":
				if table != nil && len(table.Rows) > 0 {
					tables = append(tables, *table)
				}
				table = nil
			}
		}
	}
	if inParagraph {
		flushParagraph()
	}
	closeSection()

	text := strings.Join(textParts, "\n")
	if strings.TrimSpace(text) == "" && len(tables) == 0 {
		return nil, fmt.Errorf("document body contains no text")
	}

	return &models.ParsedContent{
		Text: text,
		Structure: models.Structure{
			Sections: sections,
			Tables:   tables,
			Images:   images,
		},
	}, nil
}

func writeText(para *strings.Builder, cell *strings.Builder, inCell bool, s string) {
	if inCell {
		cell.WriteString(s)
		return
	}
	para.WriteString(s)
}

// headingStyleLevel maps Word's built-in "Heading1".."Heading9" styles to
// section levels, clamped to the model's [1,6] range.
func headingStyleLevel(style string) (int, bool) {
	if !strings.HasPrefix(style, "Heading") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(style, "Heading"))
	if err != nil || n < 1 {
		return 0, false
	}
	if n > 6 {
		n = 6
	}
	return n, true
}

func attrValue(el xml.StartElement, name string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
