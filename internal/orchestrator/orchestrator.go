// Package orchestrator drives one analysis run: probe, plan, stage and
// analyze each chunk, aggregate, and release every staged artifact.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/analysis"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/chunking"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/progress"
)

// DefaultFallbackDuration is assumed when a video cannot be probed.
const DefaultFallbackDuration = 300 * time.Second

// Prober measures a stored video.
type Prober interface {
	Probe(ctx context.Context, key string) (*domain.MediaInfo, error)
}

// Stager makes a stored object available as a local file.
type Stager interface {
	Download(ctx context.Context, key string) (string, error)
}

// Extractor stages and removes chunk artifacts.
type Extractor interface {
	ArtifactDeleter
	// Extract stages chunk under a key scoped to runID.
	Extract(ctx context.Context, runID, sourceKey string, chunk domain.Chunk) (string, error)
}

// ChunkAnalyzer analyzes one staged artifact.
type ChunkAnalyzer interface {
	Analyze(ctx context.Context, in analysis.Input, types []domain.AnalysisType, opts analysis.Options) (*domain.ChunkResult, error)
}

// ResultAggregator merges per-chunk results.
type ResultAggregator interface {
	Aggregate(ctx context.Context, results []domain.ChunkResult, opts analysis.Options) (*domain.AggregatedResult, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store      Stager
	Prober     Prober
	Planner    *chunking.Planner
	Extractor  Extractor
	Analyzer   ChunkAnalyzer
	Aggregator ResultAggregator
}

// Config configures an Orchestrator.
type Config struct {
	// Concurrency is the number of chunks in flight. 1 processes chunks
	// strictly in index order.
	Concurrency int
	// FallbackDuration replaces the duration of a video that cannot be probed.
	FallbackDuration time.Duration
}

// Request describes one run.
type Request struct {
	SourceKey string
	Types     []domain.AnalysisType
	Options   analysis.Options
}

// Orchestrator runs the chunking and aggregation pipeline.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	logger   *slog.Logger
	observer func(State)
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.FallbackDuration <= 0 {
		cfg.FallbackDuration = DefaultFallbackDuration
	}
	if deps.Planner == nil {
		deps.Planner = chunking.NewPlanner(nil)
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "orchestrator"),
	}
}

// SetStateObserver registers a callback invoked on every state transition.
// It must be set before Run is called.
func (o *Orchestrator) SetStateObserver(fn func(State)) {
	o.observer = fn
}

// run holds the state of one Run call.
type run struct {
	id       string
	o        *Orchestrator
	req      Request
	sink     progress.Sink
	registry *registry
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

func (r *run) enter(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == s || r.state.Terminal() {
		return
	}
	r.logger.Debug("state transition", "from", r.state, "to", s)
	r.state = s
	if r.o.observer != nil {
		r.o.observer(s)
	}
}

// Run analyzes the video at req.SourceKey. It returns either a complete
// result or an error, never a partial result. Every chunk artifact staged
// during the run is deleted before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink progress.Sink) (result *domain.AggregatedResult, err error) {
	if req.SourceKey == "" {
		return nil, domain.ErrInvalidSource
	}
	if len(req.Types) == 0 {
		req.Types = domain.AllAnalysisTypes
	}

	id := uuid.NewString()
	logger := o.logger.With("run_id", id, "source", req.SourceKey, "tier", req.Options.Tier)
	r := &run{
		id:       id,
		o:        o,
		req:      req,
		sink:     progress.NewSafe(sink, logger),
		registry: newRegistry(o.deps.Extractor, logger),
		logger:   logger,
		state:    StatePlanning,
	}
	if o.observer != nil {
		o.observer(StatePlanning)
	}

	defer func() {
		r.enter(StateCleaningUp)
		if failed := r.registry.release(ctx); failed > 0 {
			logger.Warn("cleanup incomplete", "failed", failed)
		}
		if err != nil {
			result = nil
			r.enter(StateFailed)
			logger.Error("analysis run failed", "error", err)
			return
		}
		r.enter(StateDone)
	}()

	start := time.Now()
	result, err = r.execute(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("analysis run complete",
		"chunks", result.Metadata.ChunkCount,
		"total_tokens", result.Totals.TotalTokens,
		"cost", result.Totals.Cost,
		"duration", time.Since(start),
	)
	return result, nil
}

func (r *run) execute(ctx context.Context) (*domain.AggregatedResult, error) {
	planner := r.o.deps.Planner
	tier := r.req.Options.Tier

	info, degraded := r.probe(ctx)
	duration := info.DurationSeconds

	chunked, err := planner.NeedsChunking(duration, tier)
	if err != nil {
		return nil, err
	}
	params, err := planner.CalculateChunkParameters(tier, duration)
	if err != nil {
		return nil, err
	}

	var results []domain.ChunkResult
	if chunked {
		chunks, err := planner.GenerateChunkBoundaries(duration, tier)
		if err != nil {
			return nil, err
		}
		r.logger.Info("video requires chunking",
			"duration", duration,
			"chunks", len(chunks),
			"chunk_duration", params.ChunkDuration,
			"overlap", params.OverlapSeconds,
		)
		results, err = r.processChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
	} else {
		res, err := r.processWhole(ctx, duration)
		if err != nil {
			return nil, err
		}
		results = []domain.ChunkResult{*res}
	}

	r.enter(StateAggregating)
	out, err := r.o.deps.Aggregator.Aggregate(ctx, results, r.req.Options)
	if err != nil {
		return nil, err
	}

	out.Metadata = domain.RunMetadata{
		Tier:             tier,
		TierTableVersion: planner.Table().Version,
		Chunked:          chunked,
		ChunkCount:       len(results),
		DurationDegraded: degraded,
		Video:            info,
	}
	if chunked {
		out.Metadata.ChunkDuration = params.ChunkDuration
		out.Metadata.OverlapSeconds = params.OverlapSeconds
	}
	return out, nil
}

// probe measures the source. A failed probe is not fatal: the fallback
// duration is used instead and the result is marked degraded.
func (r *run) probe(ctx context.Context) (*domain.MediaInfo, bool) {
	info, err := r.o.deps.Prober.Probe(ctx, r.req.SourceKey)
	if err == nil && info != nil && info.DurationSeconds > 0 {
		return info, false
	}
	if err == nil {
		err = errors.New("no duration reported")
	}
	fallback := r.o.cfg.FallbackDuration.Seconds()
	r.logger.Warn("using fallback duration",
		"error", fmt.Errorf("%w: %w", domain.ErrProbeDegraded, err),
		"fallback_seconds", fallback,
	)
	return &domain.MediaInfo{DurationSeconds: fallback}, true
}

// processWhole analyzes the source directly without staging any artifact.
func (r *run) processWhole(ctx context.Context, duration float64) (*domain.ChunkResult, error) {
	r.enter(StateAnalyzing)
	r.sink.Report(0, 1, "analyzing video")

	path, err := r.o.deps.Store.Download(ctx, r.req.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("stage source: %w", err)
	}
	chunk := domain.Chunk{
		CoreEnd:    duration,
		OverlapEnd: duration,
		Duration:   duration,
	}
	res, err := r.o.deps.Analyzer.Analyze(ctx, analysis.Input{
		MediaPath:   path,
		Chunk:       chunk,
		TotalChunks: 1,
	}, r.req.Types, r.req.Options)
	if err != nil {
		return nil, err
	}
	r.sink.Report(1, 1, "analysis complete")
	return res, nil
}

// processChunks stages and analyzes every chunk. Results are placed by chunk
// index regardless of completion order.
func (r *run) processChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkResult, error) {
	results := make([]domain.ChunkResult, len(chunks))

	if r.o.cfg.Concurrency == 1 {
		for i, c := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := r.processChunk(ctx, c, len(chunks))
			if err != nil {
				return nil, err
			}
			results[i] = *res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.cfg.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.processChunk(gctx, c, len(chunks))
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *run) processChunk(ctx context.Context, c domain.Chunk, total int) (*domain.ChunkResult, error) {
	logger := r.logger.With("chunk_index", c.Index)
	label := fmt.Sprintf("chunk %d/%d", c.Index+1, total)

	r.enter(StateExtracting)
	r.sink.Report(c.Index, total, "extracting "+label)

	key, err := r.o.deps.Extractor.Extract(ctx, r.id, r.req.SourceKey, c)
	if err != nil {
		return nil, err
	}
	r.registry.stage(key)

	path, err := r.o.deps.Store.Download(ctx, key)
	if err != nil {
		return nil, domain.NewChunkError(c.Index, "stage artifact", fmt.Errorf("%w: %w", domain.ErrSegmentExtraction, err))
	}

	r.enter(StateAnalyzing)
	started := time.Now()
	res, err := r.o.deps.Analyzer.Analyze(ctx, analysis.Input{
		MediaPath:   path,
		Chunk:       c,
		TotalChunks: total,
	}, r.req.Types, r.req.Options)
	if err != nil {
		return nil, err
	}

	m := res.TotalMetrics()
	logger.Info("chunk analyzed",
		"analyses", res.AnalysesCompleted(),
		"total_tokens", m.TotalTokens,
		"cost", m.Cost,
		"elapsed", time.Since(started),
	)
	r.sink.Report(c.Index+1, total, label+" complete")
	return res, nil
}
