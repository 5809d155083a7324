// Package extractor turns uploaded PDF and DOCX bytes into plain text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/domain/document"
	"github.com/kailas-cloud/atscore/internal/metrics"
)

// DefaultMaxBytes caps uploads at 10 MiB.
const DefaultMaxBytes = 10 << 20

// Extraction is the outcome of reading one uploaded file.
type Extraction struct {
	Filename string
	Format   document.Format
	Text     string
}

// Extractor reads documents of the supported formats.
type Extractor struct {
	maxBytes int64
	logger   *zap.Logger
}

// New creates an Extractor. maxBytes <= 0 selects DefaultMaxBytes.
func New(maxBytes int64, logger *zap.Logger) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes, logger: logger}
}

// MaxBytes returns the upload size limit.
func (e *Extractor) MaxBytes() int64 { return e.maxBytes }

// ExtractFile reads r up to the size limit, derives the format from filename and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, filename string, r io.Reader) (Extraction, error) {
	format, err := document.FormatFromFilename(filename)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("unknown", "unsupported").Inc()
		return Extraction{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return Extraction{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if int64(len(data)) > e.maxBytes {
		metrics.ExtractionsTotal.WithLabelValues(string(format), "too_large").Inc()
		return Extraction{}, fmt.Errorf("%s exceeds %d bytes: %w", filename, e.maxBytes, domain.ErrPayloadTooLarge)
	}

	text, err := e.Extract(ctx, data, format)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	return Extraction{Filename: filename, Format: format, Text: text}, nil
}

// Extract returns the plain text of data read as format.
// Unparseable bytes yield a *domain.ParseError, a document without visible text yields domain.ErrEmptyContent.
func (e *Extractor) Extract(ctx context.Context, data []byte, format document.Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	var (
		text string
		err  error
	)
	switch format {
	case document.PDF:
		text, err = extractPDF(data)
	case document.DOCX:
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("format %q: %w", format, domain.ErrUnsupportedFormat)
	}

	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(string(format), "parse_error").Inc()
		e.logger.Warn("Document parse failed",
			zap.String("format", string(format)),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return "", domain.NewParseError(string(format), err)
	}

	if document.IsBlank(text) {
		metrics.ExtractionsTotal.WithLabelValues(string(format), "empty").Inc()
		return "", fmt.Errorf("%s: %w", format, domain.ErrEmptyContent)
	}

	metrics.ExtractionsTotal.WithLabelValues(string(format), "success").Inc()
	e.logger.Debug("Document extracted",
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("text_bytes", len(text)),
	)
	return text, nil
}

func readerAt(data []byte) (*bytes.Reader, int64) {
	return bytes.NewReader(data), int64(len(data))
}
