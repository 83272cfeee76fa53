package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"billscan/constants"
	"billscan/internal/classify"
	"billscan/internal/common"
	"billscan/internal/extract"
	"billscan/internal/normalize"
)

// Config holds orchestration thresholds.
type Config struct {
	// MinAmountConfidence filters classified amounts below it (strictly;
	// an amount at exactly the threshold is kept). Default 0.5.
	MinAmountConfidence float64
	// WarnConfidence is the overall-confidence floor under which the
	// result degrades to a warning. Default 0.6.
	WarnConfidence float64
	// CollaboratorTimeout bounds a single LLM collaborator call.
	CollaboratorTimeout time.Duration
}

// Processor sequences token extraction, normalization, and classification,
// with guardrail exits and a regex fallback. Collaborators are injected at
// construction: no hidden globals, one instance serves all requests.
type Processor struct {
	Log    *slog.Logger
	Cfg    Config
	Tokens *extract.TokenStage

	// LLM is optional. When configured it is tried first as a
	// whole-document strategy, falling back to the local stages.
	LLM extract.DocumentExtractor
}

func NewProcessor(log *slog.Logger, cfg Config, tokens *extract.TokenStage, llm extract.DocumentExtractor) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MinAmountConfidence <= 0 {
		cfg.MinAmountConfidence = 0.5
	}
	if cfg.WarnConfidence <= 0 {
		cfg.WarnConfidence = 0.6
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 60 * time.Second
	}
	return &Processor{Log: log, Cfg: cfg, Tokens: tokens, LLM: llm}
}

// Process runs one request through the pipeline. Callers never see an
// error: every failure mode is converted into a structured Result status.
func (p *Processor) Process(ctx context.Context, in extract.Input) Result {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()
	stage := "extraction"

	tok, err := p.Tokens.Run(ctx, in)
	if err != nil {
		p.Log.Error("pipeline.stage_failed", "req_id", rid, "stage", stage, "error", err)
		if errors.Is(err, common.ErrUnsupportedInput) {
			return errorResult("", "unsupported input type")
		}
		// no text was recovered, so the regex fallback has nothing to chew on
		return errorResult("", fmt.Sprintf("extraction failed: %v", err))
	}
	if tok.Status == constants.StatusNoAmountsFound {
		p.Log.Info("pipeline.guardrail", "req_id", rid, "stage", stage, "reason", tok.Reason)
		return guardrailResult(tok.CurrencyHint, tok.Reason)
	}

	if p.LLM != nil {
		if res, ok := p.tryCollaborator(ctx, rid, tok); ok {
			p.Log.Info("pipeline.done",
				"req_id", rid, "strategy", "llm",
				"amounts", len(res.Amounts), "status", res.Status,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res
		}
	}

	res := p.runLocal(rid, tok, in.IsText())
	p.Log.Info("pipeline.done",
		"req_id", rid, "strategy", "local",
		"amounts", len(res.Amounts), "status", res.Status,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// tryCollaborator asks the LLM strategy for a whole-document result. Any
// failure or empty answer falls through to the local pipeline; an LLM
// timeout must never sink the request.
func (p *Processor) tryCollaborator(ctx context.Context, rid string, tok extract.TokenExtraction) (Result, bool) {
	cctx, cancel := common.WithTimeout(ctx, p.Cfg.CollaboratorTimeout)
	defer cancel()

	partial, err := p.LLM.ProcessDocument(cctx, tok.Text)
	if err != nil {
		p.Log.Warn("pipeline.llm_fallthrough", "req_id", rid, "error", err)
		return Result{}, false
	}
	if partial.Status != constants.StatusOK || len(partial.Amounts) == 0 {
		p.Log.Info("pipeline.llm_empty", "req_id", rid, "status", partial.Status)
		return Result{}, false
	}

	currency := partial.Currency
	if currency == "" {
		currency = tok.CurrencyHint
	}
	amounts := make([]classify.ClassifiedAmount, len(partial.Amounts))
	copy(amounts, partial.Amounts)
	sortAmounts(amounts)
	return Result{
		Currency:   currency,
		Amounts:    amounts,
		Status:     constants.StatusOK,
		Confidence: tok.Confidence,
	}, true
}

// runLocal is the three-stage local strategy plus formatting. A failure in
// any stage degrades to the regex fallback before giving up.
func (p *Processor) runLocal(rid string, tok extract.TokenExtraction, isText bool) Result {
	norm := normalize.Tokens(tok.RawTokens)
	if len(norm.NormalizedAmounts) == 0 {
		p.Log.Info("pipeline.guardrail", "req_id", rid, "stage", "normalization",
			"reason", constants.ReasonNoValidAmounts)
		return guardrailResult(tok.CurrencyHint, constants.ReasonNoValidAmounts)
	}

	var cls classify.Result
	if strings.TrimSpace(tok.Text) != "" {
		// keyword context is authoritative whenever any text exists
		cls = classify.Amounts(tok.Text, norm.NormalizedAmounts)
	} else {
		cls = positionalClassify(norm.NormalizedAmounts)
	}

	res := p.format(tok, norm, cls)
	if res.Status == constants.StatusError {
		// formatting rejected everything; the regex fallback over the raw
		// text is the last resort
		if fb, ok := fallbackExtract(tok.Text); ok {
			p.Log.Warn("pipeline.fallback_used", "req_id", rid, "amounts", len(fb.Amounts))
			return fb
		}
	}
	return res
}

// positionalClassify assigns types purely by position in the sequence,
// used only when no text at all is available for context: the leading
// amount reads as the total, the second as paid, the trailing one as due.
func positionalClassify(values []float64) classify.Result {
	const conf = 0.7
	const source = "No text context available for classification"

	items := make([]classify.ClassifiedAmount, len(values))
	for i, v := range values {
		typ := constants.Other
		switch {
		case i == 0 && len(values) > 1:
			typ = constants.TotalBill
		case i == 1 && len(values) > 2:
			typ = constants.Paid
		case i == len(values)-1:
			typ = constants.Due
		}
		items[i] = classify.ClassifiedAmount{
			Type:       typ,
			Value:      v,
			Confidence: conf,
			Source:     source,
		}
	}
	return classify.Result{
		Amounts:    items,
		Confidence: classify.OverallConfidence(items),
	}
}

// format filters low-confidence amounts, orders the survivors, blends the
// stage confidences, and decides the final status.
func (p *Processor) format(tok extract.TokenExtraction, norm normalize.Result, cls classify.Result) Result {
	kept := make([]classify.ClassifiedAmount, 0, len(cls.Amounts))
	filtered := 0
	for _, a := range cls.Amounts {
		if a.Confidence < p.Cfg.MinAmountConfidence {
			filtered++
			continue
		}
		kept = append(kept, a)
	}
	sortAmounts(kept)

	overall := blendConfidence(tok.Confidence, norm.Confidence, cls.Confidence)

	res := Result{
		Currency:   tok.CurrencyHint,
		Amounts:    kept,
		Status:     constants.StatusOK,
		Confidence: overall,
	}

	if len(kept) == 0 {
		return errorResult(tok.CurrencyHint, "all amounts below confidence threshold")
	}

	var warnings []string
	if filtered > 0 {
		warnings = append(warnings, fmt.Sprintf("%d low-confidence amounts filtered out", filtered))
	}
	if overall < p.Cfg.WarnConfidence {
		warnings = append(warnings, fmt.Sprintf("low overall confidence: %.2f", overall))
	}
	warnings = append(warnings, norm.Warnings...)

	if filtered > 0 || overall < p.Cfg.WarnConfidence {
		res.Status = constants.StatusWarning
		res.Warnings = warnings
	}
	return res
}

// sortAmounts orders by type priority, then by descending value.
func sortAmounts(items []classify.ClassifiedAmount) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := constants.PriorityRank(items[i].Type), constants.PriorityRank(items[j].Type)
		if ri != rj {
			return ri < rj
		}
		return items[i].Value > items[j].Value
	})
}

// blendConfidence combines stage confidences with weights 0.4/0.3/0.3
// (extraction/normalization/classification), renormalizing over the stages
// that actually reported a value.
func blendConfidence(extraction, normalization, classification float64) float64 {
	weights := []float64{0.4, 0.3, 0.3}
	values := []float64{extraction, normalization, classification}

	var sum, wsum float64
	for i, v := range values {
		if v <= 0 {
			continue
		}
		sum += weights[i] * v
		wsum += weights[i]
	}
	if wsum == 0 {
		return 0
	}
	return math.Round(sum/wsum*100) / 100
}
