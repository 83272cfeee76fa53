package async

import (
	"context"
	"time"
)

// Job is one document to scan. Extend as needed later (priority, retry).
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
