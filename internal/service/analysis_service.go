package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/analysis"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/chunking"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/config"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/orchestrator"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/pricing"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/progress"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/repository"
)

// Rough token expectations used for plan cost estimates only.
const (
	estimatedTokensPerSecond     = 300
	estimatedOutputTokensPerCall = 2048
)

// Runner executes one analysis run.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request, sink progress.Sink) (*domain.AggregatedResult, error)
}

// AnalysisService manages analysis jobs around the orchestrator.
type AnalysisService struct {
	jobRepo     repository.JobRepository
	runner      Runner
	planner     *chunking.Planner
	prices      pricing.Table
	analysisCfg config.AnalysisConfig
	geminiCfg   config.GeminiConfig
	workerCfg   config.WorkerConfig
	logger      *slog.Logger
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(
	jobRepo repository.JobRepository,
	runner Runner,
	planner *chunking.Planner,
	prices pricing.Table,
	analysisCfg config.AnalysisConfig,
	geminiCfg config.GeminiConfig,
	workerCfg config.WorkerConfig,
	logger *slog.Logger,
) *AnalysisService {
	if planner == nil {
		planner = chunking.NewPlanner(nil)
	}
	if prices == nil {
		prices = pricing.DefaultTable()
	}
	return &AnalysisService{
		jobRepo:     jobRepo,
		runner:      runner,
		planner:     planner,
		prices:      prices,
		analysisCfg: analysisCfg,
		geminiCfg:   geminiCfg,
		workerCfg:   workerCfg,
		logger:      logger,
	}
}

// SubmitRequest asks for the analysis of one stored video.
type SubmitRequest struct {
	SourceRef string
	Tier      string
	// Types lists analysis types. Empty selects all.
	Types []string
	// Combined overrides the configured combined mode when set.
	Combined *bool
}

// SubmitResponse is returned after submitting an analysis.
type SubmitResponse struct {
	JobID   domain.JobID
	Status  domain.JobStatus
	Message string
}

// StatusResponse contains the current state of an analysis job.
type StatusResponse struct {
	JobID     domain.JobID
	Status    domain.JobStatus
	Request   domain.AnalysisRequest
	Attempts  int
	Error     string
	Progress  domain.Progress
	Result    *domain.AggregatedResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Submit validates a request and queues it.
func (s *AnalysisService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	areq, err := s.NewRequest(req)
	if err != nil {
		return nil, err
	}

	jobID := domain.JobID("job_" + uuid.New().String()[:8])
	job := domain.NewJob(jobID, areq, s.workerCfg.MaxRetries)

	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("analysis submitted",
		"job_id", jobID,
		"source", areq.SourceRef,
		"tier", areq.Tier,
		"types", areq.Types,
	)

	return &SubmitResponse{
		JobID:   jobID,
		Status:  job.Status,
		Message: "Analysis queued for processing",
	}, nil
}

// NewRequest validates req and fills in configured defaults.
func (s *AnalysisService) NewRequest(req SubmitRequest) (domain.AnalysisRequest, error) {
	source := strings.TrimSpace(req.SourceRef)
	if source == "" {
		return domain.AnalysisRequest{}, domain.ErrInvalidSource
	}

	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if tier == "" {
		tier = s.analysisCfg.DefaultTier
	}
	if _, err := s.planner.Table().Lookup(tier); err != nil {
		return domain.AnalysisRequest{}, err
	}

	types, err := domain.ParseAnalysisTypes(strings.Join(req.Types, ","))
	if err != nil {
		return domain.AnalysisRequest{}, err
	}

	combined := s.analysisCfg.Combined
	if req.Combined != nil {
		combined = *req.Combined
	}

	return domain.AnalysisRequest{
		SourceRef: source,
		Tier:      tier,
		Types:     types,
		Combined:  combined,
	}, nil
}

// Options builds the per-call options for a request.
func (s *AnalysisService) Options(req domain.AnalysisRequest) analysis.Options {
	return analysis.Options{
		Tier:            req.Tier,
		Model:           s.geminiCfg.ModelFor(req.Tier),
		MaxOutputTokens: int32(s.analysisCfg.MaxOutputTokens),
		Temperature:     float32(s.analysisCfg.Temperature),
		Combined:        req.Combined,
		CallTimeout:     s.analysisCfg.CallTimeout,
	}
}

// Analyze runs a request to completion without queueing it.
func (s *AnalysisService) Analyze(ctx context.Context, req domain.AnalysisRequest, sink progress.Sink) (*domain.AggregatedResult, error) {
	return s.runner.Run(ctx, orchestrator.Request{
		SourceKey: req.SourceRef,
		Types:     req.Types,
		Options:   s.Options(req),
	}, sink)
}

// Process runs a dequeued job. Progress is recorded on the job as it
// arrives; the caller persists the final state.
func (s *AnalysisService) Process(ctx context.Context, job *domain.Job) (*domain.AggregatedResult, error) {
	logger := s.logger.With("job_id", job.ID)

	sink := progress.Multi{
		progress.NewLogSink(logger),
		progress.Func(func(current, total int, message string) {
			job.RecordProgress(current, total, message)
			if err := s.jobRepo.UpdateProgress(ctx, job.ID, job.Progress); err != nil {
				logger.Warn("failed to record progress", "error", err)
			}
		}),
	}

	result, err := s.Analyze(ctx, job.Request, sink)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", job.Request.SourceRef, err)
	}
	return result, nil
}

// GetStatus returns the current state of a job.
func (s *AnalysisService) GetStatus(ctx context.Context, id domain.JobID) (*StatusResponse, error) {
	job, err := s.jobRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Request:   job.Request,
		Attempts:  job.Attempts,
		Error:     job.LastError,
		Progress:  job.Progress,
		Result:    job.Result,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

// QueueStats returns job queue statistics.
func (s *AnalysisService) QueueStats(ctx context.Context) (*repository.QueueStats, error) {
	return s.jobRepo.Stats(ctx)
}

// TierInfo describes one capability tier.
type TierInfo struct {
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	MaxDuration     float64 `json:"max_duration"`
	ChunkDuration   float64 `json:"chunk_duration"`
	OverlapFraction float64 `json:"overlap_fraction"`
	OverlapSeconds  float64 `json:"overlap_seconds"`
	InputPer1K      float64 `json:"input_per_1k"`
	OutputPer1K     float64 `json:"output_per_1k"`
}

// Tiers returns the tier table version and its tiers sorted by name.
func (s *AnalysisService) Tiers() (string, []TierInfo) {
	table := s.planner.Table()
	var out []TierInfo
	for _, name := range table.Names() {
		t := table.Tiers[name]
		price := s.prices[name]
		out = append(out, TierInfo{
			Name:            name,
			Model:           s.geminiCfg.ModelFor(name),
			MaxDuration:     t.MaxDuration,
			ChunkDuration:   t.ChunkDuration,
			OverlapFraction: t.OverlapFraction,
			OverlapSeconds:  t.Overlap(),
			InputPer1K:      price.InputPer1K,
			OutputPer1K:     price.OutputPer1K,
		})
	}
	return table.Version, out
}

// PlanResponse describes how a video would be processed.
type PlanResponse struct {
	chunking.Parameters
	Chunks        []domain.Chunk `json:"chunks"`
	EstimatedCost float64        `json:"estimated_cost"`
}

// Plan reports the chunk plan and a rough cost for a video of duration
// seconds analyzed with the given types.
func (s *AnalysisService) Plan(tier string, duration float64, types []domain.AnalysisType, combined bool) (*PlanResponse, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		tier = s.analysisCfg.DefaultTier
	}
	params, err := s.planner.CalculateChunkParameters(tier, duration)
	if err != nil {
		return nil, err
	}
	chunks, err := s.planner.GenerateChunkBoundaries(duration, tier)
	if err != nil {
		return nil, err
	}

	calls := len(types)
	if calls == 0 {
		calls = len(domain.AllAnalysisTypes)
	}
	if combined {
		calls = 1
	}
	window := duration
	if params.NeedsChunking {
		window = params.ChunkDuration + 2*params.OverlapSeconds
	}
	cost, err := s.prices.Estimate(tier, len(chunks), calls, int(window*estimatedTokensPerSecond), estimatedOutputTokensPerCall)
	if err != nil && !errors.Is(err, domain.ErrUnknownTier) {
		return nil, err
	}

	return &PlanResponse{
		Parameters:    params,
		Chunks:        chunks,
		EstimatedCost: cost,
	}, nil
}
