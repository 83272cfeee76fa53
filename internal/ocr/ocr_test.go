package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billscan/constants"
)

// scriptedRunner dispatches on the binary name so each external tool can be
// stubbed independently.
type scriptedRunner struct {
	run func(name string, args []string) (stdout, stderr []byte, err error)
}

func (s scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	return s.run(name, args)
}

func testExtractor(r Runner, cfg Config) *Extractor {
	e := NewExtractor(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.runner = r
	return e
}

// tsvOutput builds a minimal tesseract TSV payload with the given word
// confidences in the trailing column.
func tsvOutput(confs ...string) string {
	var b strings.Builder
	b.WriteString("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\ttext\tconf\n")
	for _, c := range confs {
		b.WriteString("5\t1\t1\t1\t1\t1\t0\t0\t10\t10\tword\t" + c + "\n")
	}
	return b.String()
}

func TestExtractImage(t *testing.T) {
	const text = "Total: Rs. 1200\nPaid: 1000"
	r := scriptedRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsvOutput("90", "80")), nil, nil
		}
		return []byte(text), nil, nil
	}}
	e := testExtractor(r, Config{EnableTSVConfidence: true})

	res, err := e.Extract(context.Background(), []byte("fake png"), constants.IMAGE)
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Contains(t, res.Text, "Total: Rs. 1200")
	// tsv mean 0.85 blended with heuristic 0.70: 0.7*0.85 + 0.3*0.70
	assert.InDelta(t, 0.805, res.Confidence, 0.001)
}

func TestExtractImageWithoutTSV(t *testing.T) {
	r := scriptedRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("Total: 500"), nil, nil
	}}
	e := testExtractor(r, Config{})

	res, err := e.Extract(context.Background(), []byte("fake png"), constants.IMAGE)
	require.NoError(t, err)
	// heuristic only: base + amount + label
	assert.InDelta(t, 0.55, res.Confidence, 0.001)
}

func TestExtractImageFailure(t *testing.T) {
	boom := errors.New("exit status 1")
	r := scriptedRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		return nil, []byte("no such language"), boom
	}}
	e := testExtractor(r, Config{})

	_, err := e.Extract(context.Background(), []byte("fake png"), constants.IMAGE)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestExtractPDFEmbeddedText(t *testing.T) {
	embedded := "Apollo Hospital Invoice\nTotal: INR 4,500.00\nPaid: 4,000\nDue: 500\n"
	tesseractCalled := false
	r := scriptedRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte(embedded), nil, nil
		default:
			tesseractCalled = true
			return nil, nil, errors.New("should not run")
		}
	}}
	e := testExtractor(r, Config{})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.7"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.False(t, tesseractCalled)
	assert.Contains(t, res.Text, "Total: INR 4,500.00")
}

func TestExtractPDFScannedFallsBackToOCR(t *testing.T) {
	r := scriptedRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			// scanned PDF: no usable text layer
			return []byte("  \n"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, suffix := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+suffix, []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		default: // tesseract per page
			return []byte("Total: Rs 900"), nil, nil
		}
	}}
	e := testExtractor(r, Config{})

	res, err := e.Extract(context.Background(), []byte("%PDF-1.7"), constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "Total: Rs 900")
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := testExtractor(scriptedRunner{run: func(string, []string) ([]byte, []byte, error) {
		return nil, nil, nil
	}}, Config{})

	_, err := e.Extract(context.Background(), []byte("data"), "AUDIO")
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	in := "Total:   1200\n\n\n\n|||||\nPaid:\t\t1000\x00"
	got := CleanText(in)
	assert.Equal(t, "Total: 1200\n\nPaid: 1000", got)
}

func TestHeuristicConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, heuristicConfidence("zzzz"), 0.001)
	// amount + currency + label + date
	rich := "Total: ₹1,200.00 due on 2026-01-15"
	assert.InDelta(t, 0.8, heuristicConfidence(rich), 0.001)
}
