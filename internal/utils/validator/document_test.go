package validator

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

func newTestValidator(maxSize int64) *DocumentValidator {
	return NewDocumentValidator(logger.NewTestLogger(), &Config{MaxFileSize: maxSize})
}

// buildZip assembles an in-memory ZIP archive from name->content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
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

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want models.DocType
	}{
		{"pdf", []byte("%PDF-1.7 rest"), models.TypePDF},
		{"zip container", []byte("PK\x03\x04rest"), models.TypeDOCX},
		{"ole container", append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 'x'), models.TypeDOC},
		{"plain text", []byte("hello"), models.TypeUnknown},
		{"empty", nil, models.TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectType(tt.data))
		})
	}
}

func TestValidateEmptyDocument(t *testing.T) {
	v := newTestValidator(1024)
	result := v.Validate(nil, models.TypePDF)

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSizeLimit, result.Category)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "empty")
}

func TestValidateOversizeDocument(t *testing.T) {
	v := newTestValidator(16)
	result := v.Validate(bytes.Repeat([]byte("a"), 32), models.TypePDF)

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSizeLimit, result.Category)
	assert.Contains(t, result.Checks, "size")
	assert.NotContains(t, result.Checks, "signature", "nothing runs past the size gate")
}

func TestValidateCleanPDF(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	result := v.Validate([]byte("%PDF-1.4\nsome harmless pdf body"), models.TypePDF)

	assert.True(t, result.IsValid)
	assert.Equal(t, models.TypePDF, result.DetectedType)
	assert.Empty(t, result.Warnings)
	assert.Contains(t, result.Checks, "signature")
	assert.Contains(t, result.Checks, "executable-scan")
	assert.Contains(t, result.Checks, "content-scan")
}

func TestValidateSignatureMismatchIsWarning(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	result := v.Validate([]byte("%PDF-1.4\nbody"), models.TypeDOCX)

	assert.True(t, result.IsValid, "mismatch alone never blocks decoding")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "does not match claimed type")
}

func TestValidateDOCAndDOCXInterchangeable(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	data := buildZip(t, map[string]string{"word/document.xml": "<w:document/>"})

	result := v.Validate(data, models.TypeDOC)
	assert.True(t, result.IsValid)
	for _, w := range result.Warnings {
		assert.NotContains(t, w, "does not match", "Word container mislabeling is not flagged")
	}
}

func TestValidateRejectsELF(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	data := append([]byte("%PDF-1.4\n"), 0x7F, 'E', 'L', 'F')
	data = append(data, []byte(" trailing")...)

	result := v.Validate(data, models.TypePDF)
	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSecurityRejected, result.Category)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "executable")
}

func TestValidateRejectsPE(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	result := v.Validate([]byte("MZ\x90\x00 this program cannot be run in DOS mode"), models.TypePDF)

	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSecurityRejected, result.Category)
}

func TestValidateRejectsPEAfterBenignMZ(t *testing.T) {
	v := newTestValidator(1024 * 1024)

	// A stray MZ pair early in the body must not mask a real executable
	// embedded further in: MZ stub followed by the PE header magic.
	data := []byte("%PDF-1.4\nharmless MZ byte pair in content\n")
	data = append(data, bytes.Repeat([]byte("filler "), 1200)...)
	data = append(data, []byte("MZ\x90\x00\x03\x00")...)
	data = append(data, bytes.Repeat([]byte{0x00}, 58)...)
	data = append(data, []byte("PE\x00\x00")...)

	result := v.Validate(data, models.TypePDF)
	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSecurityRejected, result.Category)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "executable")
}

func TestValidateRejectsEmbeddedMachO(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	data := append([]byte("%PDF-1.4\nbody before the payload "), 0xFE, 0xED, 0xFA, 0xCE)
	data = append(data, []byte(" trailing")...)

	result := v.Validate(data, models.TypePDF)
	assert.False(t, result.IsValid)
	assert.Equal(t, models.ErrSecurityRejected, result.Category)
}

func TestValidateScriptPatternIsWarning(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	result := v.Validate([]byte("%PDF-1.4\n<script>alert(1)</script>"), models.TypePDF)

	assert.True(t, result.IsValid)
	found := false
	for _, w := range result.Warnings {
		if bytes.Contains([]byte(w), []byte("<script")) {
			found = true
		}
	}
	assert.True(t, found, "script pattern surfaces as a warning")
}

func TestValidateSuspiciousURLWarnings(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	result := v.Validate([]byte("%PDF-1.4\nvisit http://192.168.0.1/x and https://bit.ly/abc"), models.TypePDF)

	assert.True(t, result.IsValid)
	joined := ""
	for _, w := range result.Warnings {
		joined += w + ";"
	}
	assert.Contains(t, joined, "raw IP address")
	assert.Contains(t, joined, "URL shortener")
}

func TestValidateStripsMacros(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	data := buildZip(t, map[string]string{
		"word/document.xml":   "<w:document/>",
		"word/vbaProject.bin": "macro bytes",
	})

	result := v.Validate(data, models.TypeDOCX)
	require.True(t, result.IsValid)
	assert.True(t, result.Sanitized)
	require.NotNil(t, result.SanitizedData)
	assert.Contains(t, result.Checks, "macro-scan")
	assert.Contains(t, result.Checks, "images-ignored-policy")

	names := zipNames(t, result.SanitizedData)
	assert.Contains(t, names, "word/document.xml")
	assert.NotContains(t, names, "word/vbaProject.bin")
}

func TestValidateCleanDOCXNotSanitized(t *testing.T) {
	v := newTestValidator(1024 * 1024)
	data := buildZip(t, map[string]string{"word/document.xml": "<w:document/>"})

	result := v.Validate(data, models.TypeDOCX)
	assert.True(t, result.IsValid)
	assert.False(t, result.Sanitized)
	assert.Nil(t, result.SanitizedData)
}
