package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Introduction</w:t></w:r></w:p>
<w:p><w:r><w:t>Hello world from the body.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Age</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Alice</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>30</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:drawing><wp:docPr xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" descr="sales chart"/></w:drawing></w:r></w:p>
</w:body>
</w:document>`

const coreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Quarterly Report</dc:title>
<dc:creator>Alice Example</dc:creator>
<dcterms:created>2024-03-01T10:00:00Z</dcterms:created>
<dcterms:modified>2024-03-02T11:30:00Z</dcterms:modified>
</cp:coreProperties>`

func buildDOCX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := buildDOCX(t, map[string]string{
		"word/document.xml": documentXML,
		"docProps/core.xml": coreXML,
	})

	content, err := d.Decode(context.Background(), data)
	require.NoError(t, err)

	assert.Contains(t, content.Text, "Introduction")
	assert.Contains(t, content.Text, "Hello world from the body.")

	require.Len(t, content.Structure.Sections, 1)
	assert.Equal(t, "Introduction", content.Structure.Sections[0].Title)
	assert.Equal(t, 1, content.Structure.Sections[0].Level)
	assert.Contains(t, content.Structure.Sections[0].Content, "Hello world")

	require.Len(t, content.Structure.Tables, 1)
	require.Len(t, content.Structure.Tables[0].Rows, 2)
	assert.Equal(t, []string{"Name", "Age"}, content.Structure.Tables[0].Rows[0])
	assert.Equal(t, []string{"Alice", "30"}, content.Structure.Tables[0].Rows[1])

	require.Len(t, content.Structure.Images, 1)
	assert.Equal(t, "sales chart", content.Structure.Images[0].Alt)
	assert.Nil(t, content.Structure.Images[0].Data, "embedded media is never decoded")

	assert.Equal(t, "Quarterly Report", content.Metadata.Title)
	assert.Equal(t, "Alice Example", content.Metadata.Author)
	require.NotNil(t, content.Metadata.CreationDate)
	assert.Equal(t, 2024, content.Metadata.CreationDate.Year())
	assert.Equal(t, 1, content.Metadata.Pages)
}

func TestDecodeNotAZip(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	_, err := d.Decode(context.Background(), []byte("not a zip at all"))
	require.Error(t, err)
}

func TestDecodeMissingDocumentBody(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := buildDOCX(t, map[string]string{"other.txt": "hi"})
	_, err := d.Decode(context.Background(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document body")
}

func TestDecodeMalformedMarkupFallsBackToRawText(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := buildDOCX(t, map[string]string{
		"word/document.xml": `<w:document><w:p><w:t>recovered text</w:t></w:badend></w:document>`,
	})

	content, err := d.Decode(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, content.Text, "recovered text")
}

func TestDecodeNaive(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := buildDOCX(t, map[string]string{"word/document.xml": documentXML})

	content, err := d.DecodeNaive(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, content.Text, "Hello world from the body.")
	assert.NotContains(t, content.Text, "<w:")
}

func TestDecodeNaiveMissingBody(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := buildDOCX(t, map[string]string{"other.txt": "hi"})
	_, err := d.DecodeNaive(context.Background(), data)
	require.Error(t, err)
}

func TestHeadingStyleLevel(t *testing.T) {
	tests := []struct {
		style string
		level int
		ok    bool
	}{
		{"Heading1", 1, true},
		{"Heading3", 3, true},
		{"Heading9", 6, true},
		{"Normal", 0, false},
		{"HeadingX", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		level, ok := headingStyleLevel(tt.style)
		assert.Equal(t, tt.ok, ok, tt.style)
		assert.Equal(t, tt.level, level, tt.style)
	}
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "one two", stripTags("<a><b>one</b> <c/>two</a>"))
}

func TestPageEstimate(t *testing.T) {
	assert.Equal(t, 0, pageEstimate(""))
	assert.Equal(t, 1, pageEstimate("short"))
	assert.Equal(t, 2, pageEstimate(string(bytes.Repeat([]byte("a"), charsPerPage+1))))
}
