package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"billscan/constants"
	"billscan/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract writes the blob to a scratch file and picks a strategy based on
// the sniffed format.
func (e *Extractor) Extract(ctx context.Context, data []byte, format string) (ExtractionResult, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "format", format, "bytes", len(data))

	path, cleanup, err := e.spool(data, format)
	if err != nil {
		return ExtractionResult{}, err
	}
	defer cleanup()

	switch format {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("ocr.extract.unsupported_format", "format", format)
		return ExtractionResult{}, fmt.Errorf("unsupported format %q: %w", format, common.ErrUnsupportedInput)
	}
}

// spool writes data to a temp file with an extension tesseract and the
// poppler tools recognize.
func (e *Extractor) spool(data []byte, format string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "billscan-ocr-*")
	if err != nil {
		return "", nil, fmt.Errorf("scratch dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := "input.png"
	if format == constants.PDF {
		name = "input.pdf"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("spool input: %w", err)
	}
	return path, cleanup, nil
}

var (
	reBoxNoise  = regexp.MustCompile(`(?m)^[|_\-=~\x60'"]{3,}\s*$`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
	reSpaceRuns = regexp.MustCompile(`[ \t]{2,}`)
	reCtrlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0E-\x1F]`)
)

// CleanText strips line noise and collapses whitespace so downstream token
// scanning sees stable text.
func CleanText(s string) string {
	s = reCtrlChars.ReplaceAllString(s, "")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reSpaceRuns.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
