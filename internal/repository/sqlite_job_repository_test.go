package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

func openTestDB(t *testing.T, path string) *SQLiteJobRepository {
	t.Helper()
	repo, err := OpenSQLite(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteJobRepository_EnqueueDequeue(t *testing.T) {
	repo := openTestDB(t, filepath.Join(t.TempDir(), "jobs.db"))
	ctx := context.Background()

	if _, err := repo.Dequeue(ctx); err != domain.ErrNoJobs {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}

	for _, id := range []string{"job-1", "job-2"} {
		if err := repo.Enqueue(ctx, newTestJob(id)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	job, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job.ID != "job-1" {
		t.Errorf("expected job-1, got %s", job.ID)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Errorf("Status = %q, dequeued jobs are claimed", job.Status)
	}
	if job.Request.Tier != "pro" || len(job.Request.Types) != 1 || job.MaxRetries != 3 {
		t.Errorf("Request = %+v", job.Request)
	}

	next, err := repo.Dequeue(ctx)
	if err != nil || next.ID != "job-2" {
		t.Fatalf("second Dequeue = %v, %v", next, err)
	}
	if _, err := repo.Dequeue(ctx); err != domain.ErrNoJobs {
		t.Errorf("expected ErrNoJobs, got %v", err)
	}
}

func TestSQLiteJobRepository_RetryRequeues(t *testing.T) {
	repo := openTestDB(t, filepath.Join(t.TempDir(), "jobs.db"))
	ctx := context.Background()

	repo.Enqueue(ctx, newTestJob("job-1"))
	repo.Enqueue(ctx, newTestJob("job-2"))

	job, _ := repo.Dequeue(ctx)
	job.MarkFailed("quota exceeded")
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// The retried job goes behind job-2.
	next, _ := repo.Dequeue(ctx)
	if next.ID != "job-2" {
		t.Errorf("expected job-2, got %s", next.ID)
	}
	retried, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if retried.ID != "job-1" || retried.Attempts != 1 || retried.LastError != "quota exceeded" {
		t.Errorf("retried = %+v", retried)
	}
}

func TestSQLiteJobRepository_ResultRoundTrip(t *testing.T) {
	repo := openTestDB(t, filepath.Join(t.TempDir(), "jobs.db"))
	ctx := context.Background()

	job := newTestJob("job-1")
	repo.Enqueue(ctx, job)

	pct := 62.5
	job.MarkCompleted(&domain.AggregatedResult{
		Summary:  &domain.SummaryResult{Summary: "merged", ChunkCount: 3, Synthesized: true},
		Chapters: []domain.Chapter{{Index: 1, Title: "Intro", StartSeconds: 0, EndSeconds: 90}},
		Elements: &domain.Elements{Speakers: []domain.Speaker{{ID: "chunk2_Speaker_1", SpeakingPercentage: &pct}}},
		Totals:   domain.Totals{TotalTokens: 1234, Cost: 0.05, AnalysesCompleted: 7},
		Metadata: domain.RunMetadata{Tier: "pro", Chunked: true, ChunkCount: 3},
	})
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.JobStatusCompleted || got.Result == nil {
		t.Fatalf("job = %+v", got)
	}
	r := got.Result
	if r.Summary.Summary != "merged" || r.Chapters[0].Title != "Intro" || r.Totals.TotalTokens != 1234 {
		t.Errorf("result = %+v", r)
	}
	if sp := r.Elements.Speakers[0]; sp.SpeakingPercentage == nil || *sp.SpeakingPercentage != 62.5 {
		t.Errorf("speaker = %+v", sp)
	}
	if !got.CreatedAt.Equal(job.CreatedAt.UTC().Truncate(time.Nanosecond)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, job.CreatedAt)
	}
}

func TestSQLiteJobRepository_ProgressAndStats(t *testing.T) {
	repo := openTestDB(t, filepath.Join(t.TempDir(), "jobs.db"))
	ctx := context.Background()

	repo.Enqueue(ctx, newTestJob("job-1"))
	repo.Enqueue(ctx, newTestJob("job-2"))
	repo.Dequeue(ctx)

	p := domain.Progress{CurrentChunk: 1, TotalChunks: 4, Message: "extracting chunk 2/4", ReportedAt: time.Now()}
	if err := repo.UpdateProgress(ctx, "job-1", p); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	job, _ := repo.Get(ctx, "job-1")
	if job.Progress.Message != "extracting chunk 2/4" || job.Progress.TotalChunks != 4 {
		t.Errorf("Progress = %+v", job.Progress)
	}

	if err := repo.UpdateProgress(ctx, "missing", p); err != domain.ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); err != domain.ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Processing != 1 || stats.Queued != 1 {
		t.Errorf("Stats = %+v", stats)
	}

	pending, _ := repo.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != "job-2" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSQLiteJobRepository_RequeuesInterruptedJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	ctx := context.Background()

	first, err := OpenSQLite(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	first.Enqueue(ctx, newTestJob("job-1"))
	first.Dequeue(ctx)
	first.Close()

	// Reopening applies no migration twice and requeues the processing job.
	repo := openTestDB(t, path)
	job, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job.ID != "job-1" || job.LastError != "interrupted by restart" {
		t.Errorf("job = %+v", job)
	}
}
