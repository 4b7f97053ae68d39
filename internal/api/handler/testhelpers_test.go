package handler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/config"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/orchestrator"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/progress"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/repository"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	stats    *repository.QueueStats
	statsErr error
	jobs     map[domain.JobID]*domain.Job
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		stats: &repository.QueueStats{},
		jobs:  make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued {
			return job, nil
		}
	}
	return nil, domain.ErrNoJobs
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) UpdateProgress(ctx context.Context, id domain.JobID, p domain.Progress) error {
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Progress = p
	return nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.QueueStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *mockJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	var pending []*domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

// idleRunner never runs; HTTP handlers only queue jobs.
type idleRunner struct{}

func (idleRunner) Run(ctx context.Context, req orchestrator.Request, sink progress.Sink) (*domain.AggregatedResult, error) {
	return nil, nil
}

func newTestAnalysisService(repo repository.JobRepository) *service.AnalysisService {
	return service.NewAnalysisService(
		repo,
		idleRunner{},
		nil,
		nil,
		config.AnalysisConfig{DefaultTier: "pro", MaxOutputTokens: 8192, Temperature: 0.2, CallTimeout: time.Minute},
		config.GeminiConfig{LiteModel: "lite-model", ProModel: "pro-model", PremierModel: "premier-model"},
		config.WorkerConfig{MaxRetries: 2},
		testLogger(),
	)
}
