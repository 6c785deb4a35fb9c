package doc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// buildDOC fakes an OLE container: the real signature, structure noise, and
// a text region.
func buildDOC(text string) []byte {
	data := make([]byte, 0, 512)
	data = append(data, oleSignature...)
	data = append(data, make([]byte, 64)...)
	data = append(data, []byte(text)...)
	data = append(data, make([]byte, 64)...)
	return data
}

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

func TestDecode(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	content, err := d.Decode(context.Background(), buildDOC("Hello from a legacy Word file."))
	require.NoError(t, err)

	assert.Contains(t, content.Text, "Hello from a legacy Word file.")
	assert.Equal(t, 1, content.Metadata.Pages)
}

func TestDecodeUTF16Text(t *testing.T) {
	data := append(buildDOC(""), utf16le("Wide character content here")...)
	data = append(data, 0, 0)

	d := NewDecoder(logger.NewTestLogger())
	content, err := d.Decode(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, content.Text, "Wide character content here")
}

func TestDecodeRejectsNonOLE(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	_, err := d.Decode(context.Background(), []byte("plain text, no container"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OLE")
}

func TestDecodeNoText(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	data := append([]byte{}, oleSignature...)
	data = append(data, make([]byte, 128)...)
	_, err := d.Decode(context.Background(), data)
	require.Error(t, err)
}

func TestDecodeNaiveSkipsSignatureCheck(t *testing.T) {
	d := NewDecoder(logger.NewTestLogger())
	content, err := d.DecodeNaive(context.Background(), []byte("raw bytes with readable words"))
	require.NoError(t, err)
	assert.Contains(t, content.Text, "raw bytes with readable words")
}

func TestExtractPrintableRunsFiltersNoise(t *testing.T) {
	// Short ASCII runs between control bytes are structure noise.
	data := []byte{0x01, 'a', 'b', 0x02, 0x03}
	data = append(data, []byte("meaningful sentence here")...)
	data = append(data, 0x00)

	text := extractPrintableRuns(data)
	assert.Contains(t, text, "meaningful sentence here")
	assert.NotContains(t, text, "ab")
}
