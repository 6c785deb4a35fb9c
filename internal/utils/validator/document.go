// Package validator inspects untrusted document bytes before any decoder
// touches them: signature checks against the claimed format, heuristic
// threat scans, and format-specific sanitization. It performs no I/O.
package validator

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/feichai0017/attachment-extractor/internal/models"
	"github.com/feichai0017/attachment-extractor/pkg/logger"
)

// Format signatures.
var (
	sigPDF = []byte("%PDF-")
	sigZIP = []byte("PK\x03\x04")
	sigOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Embedded-executable signatures. Any hit is fatal; sanitization and
// fallbacks never run on content that failed the threat scan.
var (
	sigELF     = []byte{0x7F, 'E', 'L', 'F'}
	sigPE      = []byte("PE\x00\x00")
	machMagics = [][]byte{
		{0xFE, 0xED, 0xFA, 0xCE},
		{0xFE, 0xED, 0xFA, 0xCF},
		{0xCF, 0xFA, 0xED, 0xFE},
		{0xCE, 0xFA, 0xED, 0xFE},
	}
)

var (
	scriptPatterns = []string{
		"<script", "javascript:", "/JavaScript", "/OpenAction", "/Launch",
		"/AA", "eval(", "powershell", "cmd.exe",
	}
	ipURLPattern        = regexp.MustCompile(`https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	shortenerPattern    = regexp.MustCompile(`https?://(bit\.ly|tinyurl\.com|goo\.gl|t\.co|is\.gd|ow\.ly)/`)
	suspiciousTLDs      = regexp.MustCompile(`https?://[^/\s"']+\.(tk|ml|ga|cf|gq|zip|mov)([/\s"']|$)`)
	macroPartIndicators = []string{"vbaProject.bin", "word/vbaData.xml", "macrosheets"}
)

// threatScanWindow bounds how much of the buffer the text-pattern scan
// decodes; executable signatures are searched over the full buffer.
const threatScanWindow = 64 * 1024

// Config bounds what the validator accepts.
type Config struct {
	MaxFileSize int64 // bytes, fatal above this
}

// Result is the validation outcome. Errors are fatal; Warnings are
// advisory and never block decoding on their own. Checks records which
// validations ran, for the result's security audit trail.
type Result struct {
	IsValid       bool     `json:"isValid"`
	SanitizedData []byte   `json:"-"` // replacement buffer when sanitization rewrote the input
	Sanitized     bool     `json:"sanitized"`
	Warnings      []string `json:"warnings,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	Checks        []string `json:"checks,omitempty"`
	DetectedType  models.DocType
	// Category classifies the fatal error when IsValid is false.
	Category models.ErrorCategory
}

// DocumentValidator runs the full validation pass.
type DocumentValidator struct {
	logger logger.Logger
	config *Config
}

// NewDocumentValidator creates a validator. A nil config gets the 50 MB
// default cap.
func NewDocumentValidator(log logger.Logger, config *Config) *DocumentValidator {
	if config == nil {
		config = &Config{MaxFileSize: 50 * 1024 * 1024}
	}
	return &DocumentValidator{logger: log, config: config}
}

// DetectType identifies the format from magic bytes alone.
func DetectType(data []byte) models.DocType {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		return models.TypePDF
	case bytes.HasPrefix(data, sigZIP):
		return models.TypeDOCX
	case bytes.HasPrefix(data, sigOLE):
		return models.TypeDOC
	default:
		return models.TypeUnknown
	}
}

// Validate inspects data against the claimed type. Signature mismatch is a
// warning only — the claimed type may be wrong while the content is still
// salvageable via type re-detection. A threat-scan hit is fatal.
func (v *DocumentValidator) Validate(data []byte, claimed models.DocType) *Result {
	result := &Result{IsValid: true}

	// Size gate first; nothing else runs on empty or oversize input.
	result.Checks = append(result.Checks, "size")
	if len(data) == 0 {
		result.IsValid = false
		result.Category = models.ErrSizeLimit
		result.Errors = append(result.Errors, "document is empty")
		return result
	}
	if int64(len(data)) > v.config.MaxFileSize {
		result.IsValid = false
		result.Category = models.ErrSizeLimit
		result.Errors = append(result.Errors,
			fmt.Sprintf("document size %d exceeds maximum of %d bytes", len(data), v.config.MaxFileSize))
		return result
	}

	result.Checks = append(result.Checks, "signature")
	result.DetectedType = DetectType(data)
	if claimed != models.TypeUnknown && !signatureMatches(result.DetectedType, claimed) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("file signature does not match claimed type %s", claimed))
	}

	result.Checks = append(result.Checks, "executable-scan")
	if hit := v.scanExecutables(data); hit != "" {
		result.IsValid = false
		result.Category = models.ErrSecurityRejected
		result.Errors = append(result.Errors, fmt.Sprintf("embedded executable detected (%s)", hit))
		v.logger.Warn("Rejected document containing executable signature",
			logger.String("signature", hit),
			logger.Int("size", len(data)),
		)
		return result
	}

	result.Checks = append(result.Checks, "content-scan")
	result.Warnings = append(result.Warnings, v.scanTextPrefix(data)...)

	if result.DetectedType == models.TypeDOCX || claimed == models.TypeDOCX {
		result.Checks = append(result.Checks, "macro-scan")
		if containsMacroIndicators(data) {
			result.Warnings = append(result.Warnings, "document contains macro indicators")
			if sanitized, err := stripMacroParts(data); err == nil {
				result.SanitizedData = sanitized
				result.Sanitized = true
				result.Warnings = append(result.Warnings, "macro parts removed during sanitization")
			}
		}
		// Embedded media is never decoded to pixels; record the policy.
		result.Checks = append(result.Checks, "images-ignored-policy")
	}

	return result
}

// signatureMatches treats DOCX and DOC as interchangeable at signature
// level: mislabeling between the two Word container formats is common.
func signatureMatches(detected, claimed models.DocType) bool {
	if detected == claimed {
		return true
	}
	wordish := func(t models.DocType) bool { return t == models.TypeDOC || t == models.TypeDOCX }
	return wordish(detected) && wordish(claimed)
}

// scanExecutables searches the full buffer for every signature: an
// executable embedded at any offset is as dangerous as one at the start.
func (v *DocumentValidator) scanExecutables(data []byte) string {
	if bytes.Contains(data, sigELF) {
		return "ELF"
	}
	for _, m := range machMagics {
		if bytes.Contains(data, m) {
			return "Mach-O"
		}
	}
	// PE files start with an MZ DOS stub, but the stub bytes also occur in
	// benign content, so MZ alone is only fatal as a file prefix. The PE
	// header magic is fatal anywhere; this covers a real executable after
	// any number of stray MZ pairs.
	if bytes.HasPrefix(data, []byte("MZ")) {
		return "PE"
	}
	if bytes.Contains(data, sigPE) {
		return "PE"
	}
	return ""
}

func (v *DocumentValidator) scanTextPrefix(data []byte) []string {
	window := data
	if len(window) > threatScanWindow {
		window = window[:threatScanWindow]
	}
	text := strings.ToLower(string(window))

	var warnings []string
	for _, pattern := range scriptPatterns {
		if strings.Contains(text, strings.ToLower(pattern)) {
			warnings = append(warnings, fmt.Sprintf("suspicious content pattern %q", pattern))
		}
	}
	if ipURLPattern.MatchString(text) {
		warnings = append(warnings, "document references a raw IP address URL")
	}
	if shortenerPattern.MatchString(text) {
		warnings = append(warnings, "document references a URL shortener")
	}
	if suspiciousTLDs.MatchString(text) {
		warnings = append(warnings, "document references a URL with an unusual TLD")
	}
	return warnings
}

func containsMacroIndicators(data []byte) bool {
	for _, ind := range macroPartIndicators {
		if bytes.Contains(data, []byte(ind)) {
			return true
		}
	}
	return false
}
