package validator

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
)

// stripMacroParts rebuilds a ZIP-based document without its VBA macro
// parts. The rewritten archive replaces the original buffer; decoders only
// ever see the sanitized bytes.
func stripMacroParts(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, file := range reader.File {
		if isMacroPart(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			writer.Close()
			return nil, err
		}
		w, err := writer.Create(file.Name)
		if err != nil {
			rc.Close()
			writer.Close()
			return nil, err
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			writer.Close()
			return nil, err
		}
		rc.Close()
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isMacroPart(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "vbaproject.bin") ||
		strings.HasSuffix(lower, "vbadata.xml") ||
		strings.Contains(lower, "macrosheets/")
}
