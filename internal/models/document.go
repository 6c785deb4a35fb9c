package models

import (
	"path"
	"strings"
	"time"
)

// DocType identifies a supported document format.
type DocType string

const (
	TypePDF     DocType = "PDF"
	TypeDOCX    DocType = "DOCX"
	TypeDOC     DocType = "DOC"
	TypeWebpage DocType = "WEBPAGE"
	TypeUnknown DocType = ""
)

// DocumentReference identifies a remote document to parse. It is created by
// the attachment-discovery collaborator and never mutated by the pipeline.
type DocumentReference struct {
	URL  string  `json:"url"`
	Type DocType `json:"type,omitempty"` // claimed type, inferred when empty
	Name string  `json:"name,omitempty"`
	// PartialContent holds previously captured text, used as a
	// last-resort fallback when the document itself is unreachable.
	PartialContent string `json:"partialContent,omitempty"`
}

// Metadata carries document-level information recovered by a decoder.
type Metadata struct {
	Title            string     `json:"title,omitempty"`
	Author           string     `json:"author,omitempty"`
	Pages            int        `json:"pages,omitempty"`
	WordCount        int        `json:"wordCount"`
	CreationDate     *time.Time `json:"creationDate,omitempty"`
	ModificationDate *time.Time `json:"modificationDate,omitempty"`
}

// Section is one detected document section. Level is clamped to [1,6].
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Level   int    `json:"level"`
}

// Table holds rows recovered from markup or from the delimiter heuristic.
type Table struct {
	Rows    [][]string `json:"rows"`
	Caption string     `json:"caption,omitempty"`
}

// Image is a best-effort image record. Data is elided (nil) unless the
// decoder can recover pixel data safely.
type Image struct {
	ID          string `json:"id"`
	Alt         string `json:"alt,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Structure groups the structural elements recovered from a document.
type Structure struct {
	Sections []Section `json:"sections"`
	Tables   []Table   `json:"tables"`
	Images   []Image   `json:"images"`
}

// Source records where the parsed content came from.
type Source struct {
	URL  string  `json:"url"`
	Name string  `json:"name,omitempty"`
	Type DocType `json:"type"`
}

// SecurityInfo is the audit trail of validation performed on the input.
type SecurityInfo struct {
	Validated      bool     `json:"validated"`
	Sanitized      bool     `json:"sanitized"`
	Warnings       []string `json:"warnings,omitempty"`
	SecurityChecks []string `json:"securityChecks,omitempty"`
}

// ParsedContent is the pipeline's output contract.
//
// Invariants:
//   - Success == false implies Text == "" and Error != ""
//   - FallbackUsed != "" implies Warning != ""
//   - Metadata.WordCount always equals the whitespace-token count of Text
type ParsedContent struct {
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata"`
	Structure Structure `json:"structure"`

	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Warning      string `json:"warning,omitempty"`
	FallbackUsed string `json:"fallbackUsed,omitempty"`

	Source         Source       `json:"source"`
	ProcessingTime int64        `json:"processingTime"` // milliseconds
	Security       SecurityInfo `json:"security"`

	RecoverySuggestions []string          `json:"recoverySuggestions,omitempty"`
	ErrorContext        map[string]string `json:"errorContext,omitempty"`
}

// TypeFromName infers a document type from the file extension of a URL path
// or file name. Returns TypeUnknown when the extension is not recognized.
func TypeFromName(name string) DocType {
	ext := strings.ToLower(path.Ext(strings.SplitN(name, "?", 2)[0]))
	switch ext {
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	case ".doc":
		return TypeDOC
	default:
		return TypeUnknown
	}
}
