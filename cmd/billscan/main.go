package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"billscan/constants"
	"billscan/internal/async"
	"billscan/internal/common"
	"billscan/internal/export"
	"billscan/internal/extract"
	"billscan/internal/history"
	"billscan/internal/llm"
	"billscan/internal/ocr"
	"billscan/internal/pipeline"
)

const usage = `billscan extracts monetary amounts from medical bills and receipts.

Usage:
  billscan scan [-text "..."] [file]   scan a text snippet, image, or PDF
  billscan batch [-workers 4] <file|dir>...
  billscan history [-n 20]             list recent detections
  billscan export [-n 100] [-o out.xlsx]

Input for scan is a file path, -text, or stdin.`

func main() {
	zl, _ := zap.NewProduction()
	defer func() { _ = zl.Sync() }()
	edge := zl.Sugar()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		edge.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[1:]
	cmd := "scan"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "scan":
		err = runScan(ctx, cfg, logger, args)
	case "batch":
		err = runBatch(ctx, cfg, logger, args)
	case "history":
		err = runHistory(ctx, cfg, logger, args)
	case "export":
		err = runExport(ctx, cfg, logger, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		edge.Errorw("billscan failed", "cmd", cmd, "error", err)
		os.Exit(1)
	}
}

func runScan(ctx context.Context, cfg *common.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	text := fs.String("text", "", "scan this text instead of a file")
	noHistory := fs.Bool("no-history", false, "do not record the result")
	_ = fs.Parse(args)

	in, kind, err := readInput(fs.Args(), *text)
	if err != nil {
		return err
	}

	proc := buildProcessor(ctx, cfg, logger)
	res := proc.Process(ctx, in)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	if !*noHistory {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxRows, logger)
		if err != nil {
			logger.Warn("history.open_failed", "path", cfg.History.Path, "error", err)
			return nil
		}
		defer store.Close()
		if _, err := store.Record(ctx, kind, res); err != nil {
			logger.Warn("history.record_failed", "error", err)
		}
	}
	return nil
}

func runBatch(ctx context.Context, cfg *common.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	workers := fs.Int("workers", 4, "concurrent scans")
	noHistory := fs.Bool("no-history", false, "do not record results")
	_ = fs.Parse(args)

	paths, err := collectPaths(fs.Args())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("batch: no scannable files given")
	}

	var rec async.Recorder
	if !*noHistory {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxRows, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		rec = store
	}

	proc := buildProcessor(ctx, cfg, logger)
	queue := async.NewScanQueue(proc, rec, logger,
		async.WithWorkers(*workers),
		async.WithScanTimeout(cfg.Pipeline.CollaboratorTimeout+time.Minute),
	)
	for _, p := range paths {
		_ = queue.Enqueue(ctx, async.Job{Path: p, SubmittedAt: time.Now()})
	}
	queue.Shutdown(ctx)

	out, err := json.MarshalIndent(queue.Results(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// collectPaths expands directory arguments one level deep, keeping only
// files with a supported extension.
func collectPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := constants.NormalizeExt(filepath.Ext(e.Name()))
			if _, ok := constants.AllowedExtensions[ext]; ok {
				paths = append(paths, filepath.Join(a, e.Name()))
			}
		}
	}
	return paths, nil
}

func runHistory(ctx context.Context, cfg *common.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	n := fs.Int("n", 20, "number of entries")
	_ = fs.Parse(args)

	store, err := history.Open(cfg.History.Path, cfg.History.MaxRows, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, *n)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runExport(ctx context.Context, cfg *common.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	n := fs.Int("n", 100, "number of entries")
	out := fs.String("o", "detections.xlsx", "output path")
	_ = fs.Parse(args)

	store, err := history.Open(cfg.History.Path, cfg.History.MaxRows, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := export.NewService(store, logger)
	data, err := svc.ExportDetectionsXLSX(ctx, *n)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", *out)
	return nil
}

// buildProcessor wires OCR and, when an API key is configured, the Gemini
// collaborator into the pipeline.
func buildProcessor(ctx context.Context, cfg *common.Config, logger *slog.Logger) *pipeline.Processor {
	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:           cfg.OCR.Pdftotext,
		Pdftoppm:            cfg.OCR.Pdftoppm,
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		EnableTSVConfidence: true,
		PSM:                 6,
	}, logger)

	tokens := extract.NewTokenStage(extract.NewOCRAdapter(extractor), logger)

	var collaborator extract.DocumentExtractor
	if cfg.LLM.APIKey != "" {
		g, err := llm.NewGemini(ctx, llm.Config{
			APIKey:           cfg.LLM.APIKey,
			Model:            cfg.LLM.Model,
			FallbackModel:    cfg.LLM.FallbackModel,
			Temperature:      cfg.LLM.Temperature,
			AttemptsPerModel: cfg.LLM.AttemptsPerModel,
			InitialBackoff:   cfg.LLM.InitialBackoff,
			MaxBackoff:       cfg.LLM.MaxBackoff,
		}, logger)
		if err != nil {
			logger.Warn("llm.init_failed", "error", err)
		} else {
			collaborator = g
		}
	}

	return pipeline.NewProcessor(logger, pipeline.Config{
		MinAmountConfidence: cfg.Pipeline.MinAmountConfidence,
		WarnConfidence:      cfg.Pipeline.WarnConfidence,
		CollaboratorTimeout: cfg.Pipeline.CollaboratorTimeout,
	}, tokens, collaborator)
}

// readInput resolves the scan input: -text wins, then a file argument, then
// stdin. Files with a known document extension are passed as binary.
func readInput(args []string, text string) (extract.Input, string, error) {
	if text != "" {
		return extract.Input{Text: text}, constants.TEXT, nil
	}
	if len(args) > 0 {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return extract.Input{}, "", fmt.Errorf("read %s: %w", path, err)
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if format := constants.MapExtToFormat(ext); format != "" && format != constants.TEXT {
			return extract.Input{Data: data}, format, nil
		}
		return extract.Input{Text: string(data)}, constants.TEXT, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return extract.Input{}, "", fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return extract.Input{}, "", fmt.Errorf("no input: %s", usage)
	}
	if format := constants.SniffFormat(data); format != "" && format != constants.TEXT {
		return extract.Input{Data: data}, format, nil
	}
	return extract.Input{Text: string(data)}, constants.TEXT, nil
}
