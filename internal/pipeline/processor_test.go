package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billscan/constants"
	"billscan/internal/classify"
	"billscan/internal/extract"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTextProcessor(t *testing.T) *Processor {
	t.Helper()
	return NewProcessor(discardLogger(), Config{}, extract.NewTokenStage(nil, discardLogger()), nil)
}

// stubLLM is a canned DocumentExtractor.
type stubLLM struct {
	res extract.PartialResult
	err error
}

func (s *stubLLM) ProcessDocument(_ context.Context, _ string) (extract.PartialResult, error) {
	return s.res, s.err
}

func TestProcessBillLine(t *testing.T) {
	p := newTextProcessor(t)

	res := p.Process(context.Background(), extract.Input{Text: "Total: INR 1200 | Paid: 1000 | Due: 200"})
	require.Equal(t, constants.StatusOK, res.Status)
	assert.Equal(t, "INR", res.Currency)

	require.Len(t, res.Amounts, 3)
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, 1200.0, res.Amounts[0].Value)
	assert.Equal(t, constants.Paid, res.Amounts[1].Type)
	assert.Equal(t, 1000.0, res.Amounts[1].Value)
	assert.Equal(t, constants.Due, res.Amounts[2].Type)
	assert.Equal(t, 200.0, res.Amounts[2].Value)

	// 0.4*1.0 + 0.3*1.0 + 0.3*0.89 = 0.967
	assert.Equal(t, 0.97, res.Confidence)
	assert.Empty(t, res.Warnings)
}

func TestProcessGuardrailNoisy(t *testing.T) {
	p := newTextProcessor(t)

	for _, text := range []string{"", "no numbers at all", "Total: $100"} {
		res := p.Process(context.Background(), extract.Input{Text: text})
		assert.Equal(t, constants.StatusNoAmountsFound, res.Status, "text=%q", text)
		assert.Equal(t, "document too noisy", res.Reason, "text=%q", text)
		assert.Empty(t, res.Amounts, "text=%q", text)
	}
}

func TestProcessGuardrailNormalization(t *testing.T) {
	p := newTextProcessor(t)

	// two tokens survive extraction, both are percentages
	res := p.Process(context.Background(), extract.Input{Text: "10% off and 20% off"})
	assert.Equal(t, constants.StatusNoAmountsFound, res.Status)
	assert.Equal(t, "no valid amounts found after normalization", res.Reason)
	assert.Empty(t, res.Amounts)
}

func TestProcessKeepsThresholdAmounts(t *testing.T) {
	p := newTextProcessor(t)

	// no keyword context: both classify as other at exactly 0.5, which the
	// strict filter keeps
	res := p.Process(context.Background(), extract.Input{Text: "codes 77 and 88 appear"})
	require.Equal(t, constants.StatusOK, res.Status)
	require.Len(t, res.Amounts, 2)
	assert.Equal(t, constants.Other, res.Amounts[0].Type)
	assert.Equal(t, 88.0, res.Amounts[0].Value)
	assert.Equal(t, 77.0, res.Amounts[1].Value)
}

func TestProcessErrorWhenAllFiltered(t *testing.T) {
	p := NewProcessor(discardLogger(), Config{MinAmountConfidence: 0.9},
		extract.NewTokenStage(nil, discardLogger()), nil)

	res := p.Process(context.Background(), extract.Input{Text: "codes 77 and 88 appear"})
	assert.Equal(t, constants.StatusError, res.Status)
	assert.Empty(t, res.Amounts)
	assert.Contains(t, res.Error, "below confidence threshold")
}

func TestProcessFallbackRescuesFilteredResult(t *testing.T) {
	p := NewProcessor(discardLogger(), Config{MinAmountConfidence: 0.9},
		extract.NewTokenStage(nil, discardLogger()), nil)

	// unlabelled but currency-marked amounts survive via the regex fallback
	res := p.Process(context.Background(), extract.Input{Text: "₹500 then ₹300 scribbled"})
	require.Equal(t, constants.StatusOK, res.Status)
	require.Len(t, res.Amounts, 2)
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, 500.0, res.Amounts[0].Value)
	assert.Equal(t, constants.Paid, res.Amounts[1].Type)
	assert.Equal(t, 300.0, res.Amounts[1].Value)
	assert.Equal(t, "INR", res.Currency)
}

func TestProcessUnsupportedBinary(t *testing.T) {
	p := NewProcessor(discardLogger(), Config{},
		extract.NewTokenStage(stubOCR{}, discardLogger()), nil)

	res := p.Process(context.Background(), extract.Input{Data: []byte("garbage bytes")})
	assert.Equal(t, constants.StatusError, res.Status)
	assert.Equal(t, "unsupported input type", res.Error)
	assert.Equal(t, "INR", res.Currency)
}

type stubOCR struct{}

func (stubOCR) Extract(_ context.Context, _ []byte, _ string) (extract.TextExtractionResult, error) {
	return extract.TextExtractionResult{Text: "Total: Rs 900 Paid: 400", Confidence: 0.9}, nil
}

func TestProcessLLMStrategyWins(t *testing.T) {
	llm := &stubLLM{res: extract.PartialResult{
		Currency: "USD",
		Status:   constants.StatusOK,
		Amounts: []classify.ClassifiedAmount{
			{Type: constants.Due, Value: 200, Confidence: 0.9, Source: "llm"},
			{Type: constants.TotalBill, Value: 1200, Confidence: 0.95, Source: "llm"},
		},
	}}
	p := NewProcessor(discardLogger(), Config{},
		extract.NewTokenStage(nil, discardLogger()), llm)

	res := p.Process(context.Background(), extract.Input{Text: "Total: $1200 Due: $200"})
	require.Equal(t, constants.StatusOK, res.Status)
	assert.Equal(t, "USD", res.Currency)
	require.Len(t, res.Amounts, 2)
	// collaborator output is re-sorted by type priority
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, constants.Due, res.Amounts[1].Type)
}

func TestProcessLLMFallsThroughOnError(t *testing.T) {
	llm := &stubLLM{err: errors.New("quota exceeded")}
	p := NewProcessor(discardLogger(), Config{},
		extract.NewTokenStage(nil, discardLogger()), llm)

	res := p.Process(context.Background(), extract.Input{Text: "Total: INR 1200 | Paid: 1000 | Due: 200"})
	require.Equal(t, constants.StatusOK, res.Status)
	require.Len(t, res.Amounts, 3)
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
}

func TestProcessLLMFallsThroughOnEmpty(t *testing.T) {
	llm := &stubLLM{res: extract.PartialResult{
		Currency: "INR",
		Status:   constants.StatusNoAmountsFound,
	}}
	p := NewProcessor(discardLogger(), Config{},
		extract.NewTokenStage(nil, discardLogger()), llm)

	res := p.Process(context.Background(), extract.Input{Text: "Total: INR 1200 | Paid: 1000 | Due: 200"})
	require.Equal(t, constants.StatusOK, res.Status)
	require.Len(t, res.Amounts, 3)
}

func TestPositionalClassify(t *testing.T) {
	res := positionalClassify([]float64{1200, 1000, 200})
	require.Len(t, res.Amounts, 3)
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, constants.Paid, res.Amounts[1].Type)
	assert.Equal(t, constants.Due, res.Amounts[2].Type)
	for _, a := range res.Amounts {
		assert.Equal(t, 0.7, a.Confidence)
	}

	single := positionalClassify([]float64{500})
	require.Len(t, single.Amounts, 1)
	assert.Equal(t, constants.Due, single.Amounts[0].Type)
}

func TestBlendConfidence(t *testing.T) {
	assert.Equal(t, 0.97, blendConfidence(1.0, 1.0, 0.89))
	// missing stages renormalize instead of dragging the blend down
	assert.Equal(t, 0.9, blendConfidence(0.9, 0, 0))
	assert.Equal(t, 0.0, blendConfidence(0, 0, 0))
}
