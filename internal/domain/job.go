package domain

import (
	"time"
)

// JobID is a unique identifier for an analysis job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Progress is the last progress report of a run.
type Progress struct {
	CurrentChunk int       `json:"current_chunk"`
	TotalChunks  int       `json:"total_chunks"`
	Message      string    `json:"message"`
	ReportedAt   time.Time `json:"reported_at"`
}

// AnalysisRequest describes what to analyze.
type AnalysisRequest struct {
	SourceRef string         `json:"source_ref"`
	Tier      string         `json:"tier"`
	Types     []AnalysisType `json:"types"`
	Combined  bool           `json:"combined"`
}

// Job is a queued analysis of one stored video.
type Job struct {
	ID         JobID
	Request    AnalysisRequest
	Status     JobStatus
	Attempts   int
	MaxRetries int
	LastError  string
	Progress   Progress
	Result     *AggregatedResult
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob creates a new queued job.
func NewJob(id JobID, req AnalysisRequest, maxRetries int) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		Request:    req,
		Status:     JobStatusQueued,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted stores the result and marks the job completed.
func (j *Job) MarkCompleted(result *AggregatedResult) {
	j.Status = JobStatusCompleted
	j.Result = result
	j.LastError = ""
	j.UpdatedAt = time.Now()
}

// MarkFailed records a failed attempt. The job is retried while attempts remain.
func (j *Job) MarkFailed(err string) {
	j.Attempts++
	j.LastError = err
	j.Result = nil
	j.UpdatedAt = time.Now()

	if j.CanRetry() {
		j.Status = JobStatusRetrying
	} else {
		j.Status = JobStatusFailed
	}
}

// RecordProgress stores the latest progress report.
func (j *Job) RecordProgress(current, total int, message string) {
	now := time.Now()
	j.Progress = Progress{
		CurrentChunk: current,
		TotalChunks:  total,
		Message:      message,
		ReportedAt:   now,
	}
	j.UpdatedAt = now
}
