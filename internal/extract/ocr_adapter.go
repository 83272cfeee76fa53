package extract

import (
	"context"

	"billscan/internal/ocr"
)

// OCRAdapter bridges the concrete tesseract-backed extractor to the
// TextExtractor contract.
type OCRAdapter struct {
	e *ocr.Extractor
}

func NewOCRAdapter(e *ocr.Extractor) *OCRAdapter {
	return &OCRAdapter{e: e}
}

func (a *OCRAdapter) Extract(ctx context.Context, data []byte, format string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, data, format)
	return TextExtractionResult{
		Text:       r.Text,
		Confidence: r.Confidence,
		Method:     r.Method,
		Pages:      r.Pages,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
	}, err
}
