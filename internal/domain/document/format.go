package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// Format is the declared type of an uploaded document.
type Format string

// Supported upload formats.
const (
	PDF  Format = "pdf"
	DOCX Format = "docx"
)

// IsValid checks if the format is one of the supported values.
func (f Format) IsValid() bool {
	return f == PDF || f == DOCX
}

// FormatFromFilename derives the format from the file extension, case-insensitively.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	f := Format(ext)
	if !f.IsValid() {
		if ext == "" {
			return "", fmt.Errorf("%q has no extension: %w", name, domain.ErrUnsupportedFormat)
		}
		return "", fmt.Errorf("extension .%s: %w", ext, domain.ErrUnsupportedFormat)
	}
	return f, nil
}
