package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"billscan/internal/classify"
	"billscan/internal/pipeline"
)

// Entry is one recorded pipeline run.
type Entry struct {
	ID         string                      `json:"id"`
	CreatedAt  time.Time                   `json:"created_at"`
	InputKind  string                      `json:"input_kind"` // TEXT | IMAGE | PDF
	Currency   string                      `json:"currency"`
	Status     string                      `json:"status"`
	Confidence float64                     `json:"confidence"`
	Amounts    []classify.ClassifiedAmount `json:"amounts"`
}

// Store keeps recent pipeline results in a local SQLite file so past
// detections can be listed and exported.
type Store struct {
	db      *sql.DB
	log     *slog.Logger
	maxRows int
}

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	input_kind  TEXT NOT NULL,
	currency    TEXT NOT NULL,
	status      TEXT NOT NULL,
	confidence  REAL NOT NULL,
	amounts     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_detections_created_at ON detections(created_at);
`

// Open opens (creating if needed) the store at path. maxRows <= 0 disables
// pruning.
func Open(path string, maxRows int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db, log: log, maxRows: maxRows}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists one pipeline result and prunes old rows past the cap.
func (s *Store) Record(ctx context.Context, inputKind string, res pipeline.Result) (Entry, error) {
	e := Entry{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		InputKind:  inputKind,
		Currency:   res.Currency,
		Status:     string(res.Status),
		Confidence: res.Confidence,
		Amounts:    res.Amounts,
	}

	amounts, err := json.Marshal(e.Amounts)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal amounts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO detections (id, created_at, input_kind, currency, status, confidence, amounts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.Format(time.RFC3339Nano), e.InputKind, e.Currency, e.Status, e.Confidence, string(amounts))
	if err != nil {
		return Entry{}, fmt.Errorf("insert detection: %w", err)
	}

	if err := s.prune(ctx); err != nil {
		s.log.Warn("history.prune_failed", "error", err)
	}
	return e, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, input_kind, currency, status, confidence, amounts
		 FROM detections ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry by ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, input_kind, currency, status, confidence, amounts
		 FROM detections WHERE id = ?`, id)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var e Entry
	var createdAt, amounts string
	if err := r.Scan(&e.ID, &createdAt, &e.InputKind, &e.Currency, &e.Status, &e.Confidence, &amounts); err != nil {
		return Entry{}, fmt.Errorf("scan detection: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = t
	if err := json.Unmarshal([]byte(amounts), &e.Amounts); err != nil {
		return Entry{}, fmt.Errorf("unmarshal amounts: %w", err)
	}
	return e, nil
}

func (s *Store) prune(ctx context.Context) error {
	if s.maxRows <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM detections WHERE id NOT IN (
			SELECT id FROM detections ORDER BY created_at DESC LIMIT ?
		)`, s.maxRows)
	return err
}
