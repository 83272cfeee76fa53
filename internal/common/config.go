package common

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	OCR      OCRConfig
	LLM      LLMConfig
	History  HistoryConfig
	Pipeline PipelineConfig
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract        string
	Pdftotext        string
	Pdftoppm         string
	TesseractLang    string
	TessdataDir      string
	DPI              int
	ArtifactCacheDir string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey           string
	Model            string
	FallbackModel    string
	Temperature      float32
	Timeout          time.Duration
	AttemptsPerModel int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// HistoryConfig holds the result-history store configuration
type HistoryConfig struct {
	Path    string
	MaxRows int
}

// PipelineConfig holds orchestration thresholds
type PipelineConfig struct {
	MinAmountConfidence float64
	WarnConfidence      float64
	CollaboratorTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:        getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TesseractLang:    getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		LLM: LLMConfig{
			APIKey:           getEnv("GEMINI_API_KEY", ""),
			Model:            getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			FallbackModel:    getEnv("GEMINI_FALLBACK_MODEL", "gemini-1.5-pro"),
			Temperature:      getEnvAsFloat32("GEMINI_TEMPERATURE", 0.1),
			Timeout:          getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
			AttemptsPerModel: getEnvAsInt("GEMINI_ATTEMPTS_PER_MODEL", 3),
			InitialBackoff:   getEnvAsDuration("GEMINI_INITIAL_BACKOFF", time.Second),
			MaxBackoff:       getEnvAsDuration("GEMINI_MAX_BACKOFF", 10*time.Second),
		},
		History: HistoryConfig{
			Path:    getEnv("HISTORY_DB_PATH", "./billscan.db"),
			MaxRows: getEnvAsInt("HISTORY_MAX_ROWS", 1000),
		},
		Pipeline: PipelineConfig{
			MinAmountConfidence: getEnvAsFloat64("MIN_AMOUNT_CONFIDENCE", 0.5),
			WarnConfidence:      getEnvAsFloat64("WARN_CONFIDENCE", 0.6),
			CollaboratorTimeout: getEnvAsDuration("COLLABORATOR_TIMEOUT", 60*time.Second),
		},
	}
}

// Validate checks values that would otherwise fail deep inside a scan.
func (c *Config) Validate() error {
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return fmt.Errorf("OCR_DPI must be between 72 and 1200, got %d", c.OCR.DPI)
	}
	if c.Pipeline.MinAmountConfidence < 0 || c.Pipeline.MinAmountConfidence > 1 {
		return fmt.Errorf("MIN_AMOUNT_CONFIDENCE must be in [0,1], got %v", c.Pipeline.MinAmountConfidence)
	}
	if c.Pipeline.WarnConfidence < 0 || c.Pipeline.WarnConfidence > 1 {
		return fmt.Errorf("WARN_CONFIDENCE must be in [0,1], got %v", c.Pipeline.WarnConfidence)
	}
	if c.Pipeline.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT must be positive, got %v", c.Pipeline.CollaboratorTimeout)
	}
	if c.History.MaxRows < 0 {
		return fmt.Errorf("HISTORY_MAX_ROWS must not be negative, got %d", c.History.MaxRows)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
