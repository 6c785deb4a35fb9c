package parser

import (
	"fmt"
	"strings"

	"github.com/feichai0017/attachment-extractor/internal/models"
)

// terminalError is the single authoritative builder for terminal failure
// results: human-readable message, ordered recovery suggestions, and the
// diagnostic context of the fallbacks that were attempted. Everything
// user-facing comes from here; no stack traces leak into the result.
func terminalError(cause error, ref models.DocumentReference, attempted []string, stepErrs map[string]string) *models.ParsedContent {
	category := models.CategoryOf(cause)

	result := &models.ParsedContent{
		Success:             false,
		Error:               categoryMessage(category, ref),
		Source:              models.Source{URL: ref.URL, Name: ref.Name, Type: ref.Type},
		RecoverySuggestions: categorySuggestions(category, ref.Type),
		ErrorContext: map[string]string{
			"category": string(category),
			"detail":   cause.Error(),
		},
	}
	if len(attempted) > 0 {
		result.ErrorContext["fallbacksAttempted"] = strings.Join(attempted, ", ")
	}
	for step, msg := range stepErrs {
		result.ErrorContext["fallback:"+step] = msg
	}
	return result
}

func categoryMessage(category models.ErrorCategory, ref models.DocumentReference) string {
	name := ref.Name
	if name == "" {
		name = "the document"
	}
	switch category {
	case models.ErrNetwork:
		return fmt.Sprintf("%s could not be downloaded; the server did not respond in time or refused the request", name)
	case models.ErrSizeLimit:
		return fmt.Sprintf("%s is empty or larger than the supported maximum size", name)
	case models.ErrSecurityRejected:
		return fmt.Sprintf("%s was blocked: it contains content matching known malware signatures", name)
	case models.ErrFormatInvalid:
		return fmt.Sprintf("%s appears to be corrupt or is not a valid document of its claimed format", name)
	case models.ErrUnsupportedType:
		return fmt.Sprintf("%s is not a supported document format (PDF, DOCX and DOC are supported)", name)
	case models.ErrTooManyConcurrent:
		return "too many documents are being processed right now; please retry shortly"
	default:
		return fmt.Sprintf("%s could not be parsed; the file may be damaged or use unsupported features", name)
	}
}

// categorySuggestions returns ordered, user-actionable recovery steps
// tailored to the failure category and file type.
func categorySuggestions(category models.ErrorCategory, docType models.DocType) []string {
	switch category {
	case models.ErrNetwork:
		return []string{
			"Check that the document link still works in a browser",
			"Retry in a few minutes; the hosting server may be temporarily unavailable",
			"If the document requires a login, download it manually and review it directly",
		}
	case models.ErrSizeLimit:
		return []string{
			"Documents over 50 MB are not processed; try a smaller export of the file",
			"If the file is empty, re-download it from the original source",
		}
	case models.ErrSecurityRejected:
		return []string{
			"Do not open this document; it contains executable content",
			"Report the message carrying this attachment to your security team",
		}
	case models.ErrFormatInvalid:
		return append(typeHint(docType),
			"Re-download the document; the copy may be truncated or corrupt",
			"Open the file locally to confirm it is readable",
		)
	case models.ErrUnsupportedType:
		return []string{
			"Convert the document to PDF or DOCX and retry",
			"Review the document manually if conversion is not possible",
		}
	case models.ErrTooManyConcurrent:
		return []string{
			"Wait for the current documents to finish processing and retry",
		}
	default:
		return append(typeHint(docType),
			"Retry the analysis; transient decode failures sometimes recover",
			"If the failure persists, review the document manually",
		)
	}
}

func typeHint(docType models.DocType) []string {
	switch docType {
	case models.TypePDF:
		return []string{"If the PDF is password protected, remove the password and retry"}
	case models.TypeDOC:
		return []string{"Legacy .doc support is limited; save the file as .docx and retry"}
	default:
		return nil
	}
}
