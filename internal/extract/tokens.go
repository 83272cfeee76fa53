package extract

import (
	"context"
	"log/slog"
	"math"

	"billscan/constants"
	"billscan/internal/common"
	"billscan/internal/token"
)

// minTokens is the noise guardrail: a single number is too ambiguous to
// constitute a parseable financial document.
const minTokens = 2

// TokenExtraction is the outcome of the token-extraction stage.
type TokenExtraction struct {
	Status       constants.Status `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	RawTokens    []string         `json:"raw_tokens"`
	CurrencyHint string           `json:"currency_hint"`
	Confidence   float64          `json:"confidence"`

	// Text is the source text the tokens came from. For binary input this
	// is the OCR transcription, kept so classification has context to
	// work with.
	Text string `json:"-"`
}

// TokenStage runs numeric-token extraction over text or, for binary input,
// over text recovered by the OCR collaborator.
type TokenStage struct {
	OCR TextExtractor
	Log *slog.Logger
}

func NewTokenStage(ocr TextExtractor, log *slog.Logger) *TokenStage {
	if log == nil {
		log = slog.Default()
	}
	return &TokenStage{OCR: ocr, Log: log}
}

// Run extracts raw numeric tokens and a currency hint from the input.
// Typed text carries no transcription uncertainty, so its confidence is
// fixed at 1.0; OCR text blends the engine's confidence with a token-count
// factor. Fewer than minTokens raw tokens short-circuits with
// no_amounts_found.
func (s *TokenStage) Run(ctx context.Context, in Input) (TokenExtraction, error) {
	var (
		text    string
		ocrConf float64
		fromOCR bool
	)

	switch {
	case in.IsText():
		text = in.Text
	default:
		format := constants.SniffFormat(in.Data)
		if format == "" {
			s.Log.Error("extract.tokens.unsupported_input", "bytes", len(in.Data))
			return TokenExtraction{}, common.ErrUnsupportedInput
		}
		if s.OCR == nil {
			return TokenExtraction{}, common.NewAppError("OCR_UNAVAILABLE", "no text extractor configured", common.ErrExternalCollaborator)
		}
		res, err := s.OCR.Extract(ctx, in.Data, format)
		if err != nil {
			s.Log.Error("extract.tokens.ocr_failed", "format", format, "error", err)
			return TokenExtraction{}, common.WrapError(err, "ocr extract")
		}
		text = res.Text
		ocrConf = res.Confidence
		fromOCR = true
	}

	tokens := token.ExtractNumericStrings(text)
	currency := token.DetectCurrency(text)
	if currency == "" {
		currency = constants.DefaultCurrency
	}

	if len(tokens) < minTokens {
		s.Log.Warn("extract.tokens.guardrail", "tokens", len(tokens))
		return TokenExtraction{
			Status:       constants.StatusNoAmountsFound,
			Reason:       constants.ReasonTooNoisy,
			RawTokens:    []string{},
			CurrencyHint: currency,
			Confidence:   0,
			Text:         text,
		}, nil
	}

	conf := 1.0
	if fromOCR {
		tokenFactor := math.Min(float64(len(tokens))/10, 1)
		conf = math.Round((ocrConf*0.8+tokenFactor*0.2)*100) / 100
	}

	s.Log.Debug("extract.tokens.ok",
		"tokens", len(tokens),
		"currency_hint", currency,
		"confidence", conf,
		"from_ocr", fromOCR,
	)

	return TokenExtraction{
		Status:       constants.StatusOK,
		RawTokens:    tokens,
		CurrencyHint: currency,
		Confidence:   conf,
		Text:         text,
	}, nil
}
