package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"billscan/constants"
	"billscan/internal/common"
	"billscan/internal/extract"
)

// Config holds the Gemini client configuration, including the retry ladder.
type Config struct {
	APIKey           string
	Model            string // primary model, default "gemini-2.0-flash"
	FallbackModel    string // default "gemini-1.5-pro"
	Temperature      float32
	AttemptsPerModel int           // default 3
	InitialBackoff   time.Duration // default 1s
	MaxBackoff       time.Duration // default 10s
}

// Gemini implements extract.DocumentExtractor against the Gemini API. One
// instance is built at process start and is safe for concurrent use.
type Gemini struct {
	client *genai.Client
	cfg    Config
	log    *slog.Logger
}

func NewGemini(ctx context.Context, cfg Config, log *slog.Logger) (*Gemini, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, common.NewAppError("LLM_CONFIG", "gemini api key is required", common.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "gemini-1.5-pro"
	}
	if cfg.AttemptsPerModel <= 0 {
		cfg.AttemptsPerModel = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg, log: log}, nil
}

// Close closes the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// ProcessDocument asks the model for structured amounts from document text.
// The schema-validated response is forwarded as a partial result; any
// failure after the retry ladder is exhausted surfaces as an error so the
// orchestrator can fall back to local extraction.
func (g *Gemini) ProcessDocument(ctx context.Context, text string) (extract.PartialResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return extract.PartialResult{
			Currency: constants.DefaultCurrency,
			Amounts:  nil,
			Status:   constants.StatusNoAmountsFound,
		}, nil
	}

	g.log.Info("llm.extract.start",
		"req_id", rid,
		"model", g.cfg.Model,
		"temp", g.cfg.Temperature,
		"text_len", len(text),
	)

	raw, err := g.generateWithRetry(ctx, buildPrompt(text))
	if err != nil {
		g.log.Error("llm.extract.failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PartialResult{}, common.WrapError(err, "gemini generate")
	}

	res, dropped, err := ParseResponse(raw)
	if err != nil {
		g.log.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "raw_len", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PartialResult{}, common.WrapError(err, "parse gemini response")
	}
	if len(dropped) > 0 {
		g.log.Warn("llm.extract.sanitized", "req_id", rid, "dropped", dropped)
	}

	g.log.Info("llm.extract.ok",
		"req_id", rid,
		"currency", res.Currency,
		"amounts", len(res.Amounts),
		"status", res.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// generateWithRetry walks the model ladder: bounded attempts against the
// primary model with exponential backoff and jitter on retryable errors,
// then the same against the fallback model.
func (g *Gemini) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	models := []string{g.cfg.Model, g.cfg.FallbackModel}

	var lastErr error
	for _, name := range models {
		model := g.client.GenerativeModel(name)
		model.SetTemperature(g.cfg.Temperature)

		for attempt := 1; attempt <= g.cfg.AttemptsPerModel; attempt++ {
			text, err := g.generateOnce(ctx, model, prompt)
			if err == nil {
				return text, nil
			}
			lastErr = err

			if !isRetryable(err) || attempt == g.cfg.AttemptsPerModel {
				g.log.Warn("llm.retry.giving_up_on_model",
					"model", name, "attempt", attempt, "error", err)
				break
			}

			wait := backoff(attempt, g.cfg.InitialBackoff, g.cfg.MaxBackoff)
			g.log.Warn("llm.retry.backing_off",
				"model", name, "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all model attempts failed")
	}
	return "", lastErr
}

func (g *Gemini) generateOnce(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("empty response text")
	}
	return out, nil
}

// retryablePatterns are substrings of error messages worth another attempt.
var retryablePatterns = []string{
	"429", "quota", "rate limit", "too many requests",
	"unavailable", "temporarily", "service unavailable",
	"timeout", "deadline", "gateway", "internal error",
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// backoff returns initial*2^(attempt-1) capped at max, plus up to 30%
// jitter to avoid thundering-herd retries, still capped at max.
func backoff(attempt int, initial, max time.Duration) time.Duration {
	d := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Float64() * 0.3 * float64(d))
	if d+jitter > max {
		return max
	}
	return d + jitter
}
