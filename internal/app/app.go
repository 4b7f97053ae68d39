// Package app assembles the analysis pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/aggregate"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/analysis"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/chunking"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/config"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/orchestrator"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/pricing"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/repository"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/segment"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/service"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/storage"
	"github.com/AAKevin8450/aquaticartists-video-sub000/pkg/ffmpeg"
	"github.com/AAKevin8450/aquaticartists-video-sub000/pkg/gemini"
)

// App holds the wired pipeline.
type App struct {
	Store        *storage.Filesystem
	Planner      *chunking.Planner
	Prices       pricing.Table
	Orchestrator *orchestrator.Orchestrator
	JobRepo      repository.JobRepository
	Service      *service.AnalysisService

	closers []func() error
}

// New wires every component described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Prices: pricing.DefaultTable()}

	if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	store, err := storage.NewFilesystem(cfg.Storage.BasePath, cfg.Storage.TempPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.Store = store

	table, err := chunking.LoadTierTable(cfg.Chunking.TiersFile)
	if err != nil {
		return nil, fmt.Errorf("load tier table: %w", err)
	}
	if _, err := table.Lookup(cfg.Analysis.DefaultTier); err != nil {
		return nil, fmt.Errorf("default tier: %w", err)
	}
	a.Planner = chunking.NewPlanner(table)

	proc, err := ffmpeg.NewProcessor(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("init ffmpeg: %w", err)
	}

	client, err := gemini.NewClient(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	analyzer := analysis.NewAnalyzer(client, a.Prices, logger)

	a.Orchestrator = orchestrator.New(orchestrator.Deps{
		Store:      store,
		Prober:     segment.NewProber(store, proc),
		Planner:    a.Planner,
		Extractor:  segment.NewExtractor(store, proc, segment.Config{StagingDir: cfg.Storage.TempPath, MinFreeBytes: cfg.Storage.MinFreeBytes}, logger),
		Analyzer:   analyzer,
		Aggregator: aggregate.NewAggregator(analyzer, logger),
	}, orchestrator.Config{
		Concurrency:      cfg.Chunking.Concurrency,
		FallbackDuration: cfg.Chunking.FallbackDuration,
	}, logger)

	repo, closeRepo, err := OpenJobRepository(cfg.Database, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.JobRepo = repo
	if closeRepo != nil {
		a.closers = append(a.closers, closeRepo)
	}

	a.Service = service.NewAnalysisService(
		repo,
		a.Orchestrator,
		a.Planner,
		a.Prices,
		cfg.Analysis,
		cfg.Gemini,
		cfg.Worker,
		logger,
	)
	return a, nil
}

// OpenJobRepository returns the SQLite repository when a database path is
// configured and an in-memory one otherwise. The returned close func may be nil.
func OpenJobRepository(cfg config.DatabaseConfig, logger *slog.Logger) (repository.JobRepository, func() error, error) {
	if cfg.Path == "" {
		return repository.NewInMemoryJobRepository(), nil, nil
	}
	repo, err := repository.OpenSQLite(cfg.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open job database: %w", err)
	}
	return repo, repo.Close, nil
}

// Close releases the capability client and the job database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
