package extract

import (
	"context"
	"time"

	"billscan/constants"
	"billscan/internal/classify"
)

// TextExtractor is the OCR collaborator boundary: opaque bytes -> text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format string) (TextExtractionResult, error)
}

// TextExtractionResult is what an OCR engine hands back.
type TextExtractionResult struct {
	Text       string
	Confidence float64 // 0..1 transcription confidence
	Method     string  // "pdf-text" | "pdf-ocr" | "image-ocr"
	Pages      int
	Duration   time.Duration
	Warnings   []string
}

// DocumentExtractor is the LLM collaborator boundary: whole document text
// in, partial pipeline result out. Implementations are swappable strategies
// the orchestrator tries in priority order.
type DocumentExtractor interface {
	ProcessDocument(ctx context.Context, text string) (PartialResult, error)
}

// PartialResult mirrors the response shape so collaborator output can be
// forwarded with minimal reshaping.
type PartialResult struct {
	Currency string                      `json:"currency"`
	Amounts  []classify.ClassifiedAmount `json:"amounts"`
	Status   constants.Status            `json:"status"`
}

// Input is one pipeline request: either typed text or an opaque binary
// blob. The distinction changes classification fallback behavior.
type Input struct {
	Text string
	Data []byte
}

// IsText reports whether the input came in as a text string.
func (in Input) IsText() bool { return in.Data == nil }
