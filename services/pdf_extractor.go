package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"humana-api/internal/logger"

	"github.com/ledongthuc/pdf"
)

// ErrNoExtractableText is returned for scanned or image-only PDFs.
var ErrNoExtractableText = errors.New("no extractable text in PDF")

// PDFExtractor pulls plain text out of uploaded PDFs.
type PDFExtractor struct {
	maxSize int64
}

func NewPDFExtractor(maxSize int64) *PDFExtractor {
	return &PDFExtractor{maxSize: maxSize}
}

// ExtractionResult contains the result of PDF text extraction
type ExtractionResult struct {
	Text           string
	Pages          int
	ProcessingTime time.Duration
	WordCount      int
	QualityScore   float64
}

// Extract reads every page in order. Pages that fail to decode are skipped
// and logged; the result is an error only when no page yields text.
func (e *PDFExtractor) Extract(ctx context.Context, content []byte) (*ExtractionResult, error) {
	start := time.Now()
	if e.maxSize > 0 && int64(len(content)) > e.maxSize {
		return nil, fmt.Errorf("pdf exceeds %d bytes", e.maxSize)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to extract text from PDF page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(strings.TrimSpace(text))
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(extracted) == "" {
		return nil, ErrNoExtractableText
	}

	return &ExtractionResult{
		Text:           extracted,
		Pages:          pages,
		ProcessingTime: time.Since(start),
		WordCount:      len(strings.Fields(extracted)),
		QualityScore:   textQuality(extracted),
	}, nil
}

// textQuality is the share of printable characters. Low scores usually mean
// a font without a usable encoding map.
func textQuality(text string) float64 {
	var printable, total int
	for _, r := range text {
		total++
		if r == unicode.ReplacementChar {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
