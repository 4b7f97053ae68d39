package repository

import (
	"context"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// JobRepository manages the analysis job queue.
type JobRepository interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next queued or retrying job (FIFO).
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Update modifies job state. A job updated to retrying is queued again.
	Update(ctx context.Context, job *domain.Job) error

	// UpdateProgress records the latest progress report of a job.
	UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// ListPending returns all queued/retrying jobs.
	ListPending(ctx context.Context) ([]*domain.Job, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

func (s *QueueStats) add(status domain.JobStatus, n int) {
	switch status {
	case domain.JobStatusQueued:
		s.Queued += n
	case domain.JobStatusProcessing:
		s.Processing += n
	case domain.JobStatusCompleted:
		s.Completed += n
	case domain.JobStatusFailed:
		s.Failed += n
	case domain.JobStatusRetrying:
		s.Retrying += n
	}
}
