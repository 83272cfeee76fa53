package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "tesseract", cfg.OCR.Tesseract)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.AttemptsPerModel)
	assert.Equal(t, 0.5, cfg.Pipeline.MinAmountConfidence)
	assert.Equal(t, 0.6, cfg.Pipeline.WarnConfidence)
	assert.Equal(t, 1000, cfg.History.MaxRows)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OCR_DPI", "150")
	t.Setenv("GEMINI_TIMEOUT", "10s")
	t.Setenv("MIN_AMOUNT_CONFIDENCE", "0.7")

	cfg := LoadConfig()
	assert.Equal(t, 150, cfg.OCR.DPI)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 0.7, cfg.Pipeline.MinAmountConfidence)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := LoadConfig()
	cfg.OCR.DPI = 10
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Pipeline.MinAmountConfidence = 1.5
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Pipeline.CollaboratorTimeout = 0
	assert.Error(t, cfg.Validate())
}
