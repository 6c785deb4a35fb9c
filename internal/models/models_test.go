package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeFromName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DocType
	}{
		{"pdf", "report.pdf", TypePDF},
		{"docx", "notes.DOCX", TypeDOCX},
		{"doc", "legacy.doc", TypeDOC},
		{"url path", "https://example.com/files/q3.pdf", TypePDF},
		{"query string stripped", "https://example.com/dl/report.pdf?token=abc.docx", TypePDF},
		{"no extension", "https://example.com/download", TypeUnknown},
		{"unrelated extension", "archive.tar.gz", TypeUnknown},
		{"empty", "", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeFromName(tt.in))
		})
	}
}

func TestParseErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewParseError(ErrNetwork, "fetch failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "NETWORK")
	assert.Contains(t, err.Error(), "connection refused")

	var pe *ParseError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &pe))
	assert.Equal(t, ErrNetwork, pe.Category)
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, ErrSizeLimit, CategoryOf(NewParseError(ErrSizeLimit, "too big", nil)))
	assert.Equal(t, ErrDecodeFailure, CategoryOf(errors.New("plain")), "unclassified errors default to decode failure")
}

func TestIsCategory(t *testing.T) {
	err := NewParseError(ErrSecurityRejected, "executable found", nil)
	assert.True(t, IsCategory(err, ErrSecurityRejected))
	assert.False(t, IsCategory(err, ErrNetwork))
	assert.False(t, IsCategory(errors.New("plain"), ErrNetwork))
}
