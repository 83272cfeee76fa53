package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"billscan/constants"
	"billscan/internal/extract"
	"billscan/internal/history"
	"billscan/internal/pipeline"
)

// Recorder persists one finished scan. *history.Store satisfies it; a nil
// recorder skips persistence.
type Recorder interface {
	Record(ctx context.Context, inputKind string, res pipeline.Result) (history.Entry, error)
}

// ScanResult pairs one job with its pipeline outcome.
type ScanResult struct {
	Path   string          `json:"path"`
	Result pipeline.Result `json:"result"`
	Err    string          `json:"error,omitempty"`
}

// ScanQueue fans document scans out over a small worker pool. Used by the
// batch command to chew through a directory of bills concurrently.
type ScanQueue struct {
	proc    *pipeline.Processor
	rec     Recorder
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	resMu   sync.Mutex
	results []ScanResult
}

type Option func(*ScanQueue)

func WithWorkers(n int) Option {
	return func(q *ScanQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ScanQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithScanTimeout(d time.Duration) Option {
	return func(q *ScanQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewScanQueue(proc *pipeline.Processor, rec Recorder, logger *slog.Logger, opts ...Option) *ScanQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ScanQueue{
		proc:    proc,
		rec:     rec,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ScanQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.scanOne(ctx, workerID, job)
					cancel()
				}

				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ScanQueue) scanOne(ctx context.Context, workerID int, job Job) {
	in, kind, err := readDocument(job.Path)
	if err != nil {
		q.logger.Error("async.scan.read_failed", "worker_id", workerID, "path", job.Path, "error", err)
		q.append(ScanResult{Path: job.Path, Err: err.Error()})
		return
	}

	res := q.proc.Process(ctx, in)
	q.logger.Info("async.scan.done",
		"worker_id", workerID, "path", job.Path,
		"status", res.Status, "amounts", len(res.Amounts),
	)

	if q.rec != nil {
		if _, err := q.rec.Record(ctx, kind, res); err != nil {
			q.logger.Warn("async.scan.record_failed", "path", job.Path, "error", err)
		}
	}
	q.append(ScanResult{Path: job.Path, Result: res})
}

func (q *ScanQueue) append(r ScanResult) {
	q.resMu.Lock()
	q.results = append(q.results, r)
	q.resMu.Unlock()
}

// Results returns a snapshot of finished scans. Call after Shutdown for the
// complete set.
func (q *ScanQueue) Results() []ScanResult {
	q.resMu.Lock()
	defer q.resMu.Unlock()
	out := make([]ScanResult, len(q.results))
	copy(out, q.results)
	return out
}

func (q *ScanQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("async.enqueue.rejected", "path", job.Path)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("async.enqueue.ok", "path", job.Path)
	default:
		q.logger.Warn("async.enqueue.backpressure", "path", job.Path)
		q.ch <- job
	}
	return nil
}

func (q *ScanQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}

// readDocument loads one file and decides whether it enters the pipeline as
// text or as an opaque binary blob.
func readDocument(path string) (extract.Input, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Input{}, "", err
	}
	ext := constants.NormalizeExt(filepath.Ext(path))
	if format := constants.MapExtToFormat(ext); format != "" && format != constants.TEXT {
		return extract.Input{Data: data}, format, nil
	}
	if format := constants.SniffFormat(data); format != "" {
		return extract.Input{Data: data}, format, nil
	}
	return extract.Input{Text: string(data)}, constants.TEXT, nil
}
