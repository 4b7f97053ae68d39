// Package aggregate merges per-chunk analysis results into one whole-video
// result.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/analysis"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// Synthesizer merges per-chunk summaries into one narrative.
type Synthesizer interface {
	Synthesize(ctx context.Context, sections []analysis.Section, opts analysis.Options) (string, domain.Metrics, error)
}

// Aggregator implements the merge. Apart from the summary synthesis call it
// is deterministic and keeps no state between calls.
type Aggregator struct {
	synth  Synthesizer
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(synth Synthesizer, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		synth:  synth,
		logger: logger.With("component", "aggregator"),
	}
}

// Aggregate merges results. The input slice is not modified.
func (a *Aggregator) Aggregate(ctx context.Context, results []domain.ChunkResult, opts analysis.Options) (*domain.AggregatedResult, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no chunk results", domain.ErrAggregation)
	}
	ordered := sortedByIndex(results)

	out := &domain.AggregatedResult{
		Chapters:       MergeChapters(ordered),
		Elements:       MergeElements(ordered),
		Classification: PickClassification(ordered),
		Totals:         SumTotals(ordered),
	}

	summary, err := a.mergeSummary(ctx, ordered, opts)
	if err != nil {
		return nil, err
	}
	if summary != nil && summary.Synthesis != nil {
		out.Totals.AddMetrics(*summary.Synthesis)
	}
	out.Summary = summary

	a.logger.Info("aggregation complete",
		"chunks", len(ordered),
		"chapters", len(out.Chapters),
		"total_tokens", out.Totals.TotalTokens,
		"cost", out.Totals.Cost,
	)
	return out, nil
}

// mergeSummary synthesizes one narrative when more than one chunk produced a
// summary. A single summary is used as is.
func (a *Aggregator) mergeSummary(ctx context.Context, results []domain.ChunkResult, opts analysis.Options) (*domain.SummaryResult, error) {
	var sections []analysis.Section
	var keyPoints []string
	seen := make(map[string]bool)

	for _, r := range results {
		if r.Summary == nil {
			continue
		}
		sections = append(sections, analysis.Section{
			Label:   r.Chunk.Label(),
			Summary: r.Summary.Text,
		})
		for _, kp := range r.Summary.KeyPoints {
			norm := strings.ToLower(strings.TrimSpace(kp))
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			keyPoints = append(keyPoints, kp)
		}
	}

	switch len(sections) {
	case 0:
		return nil, nil
	case 1:
		return &domain.SummaryResult{
			Summary:    sections[0].Summary,
			KeyPoints:  keyPoints,
			ChunkCount: len(results),
		}, nil
	}

	if a.synth == nil {
		return nil, fmt.Errorf("%w: no synthesizer configured", domain.ErrAggregation)
	}
	text, metrics, err := a.synth.Synthesize(ctx, sections, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: summary synthesis: %w", domain.ErrAggregation, err)
	}

	return &domain.SummaryResult{
		Summary:     text,
		KeyPoints:   keyPoints,
		ChunkCount:  len(results),
		Synthesized: true,
		Synthesis:   &metrics,
	}, nil
}

// PickClassification returns the classification with the highest confidence.
// Ties go to the earliest chunk.
func PickClassification(results []domain.ChunkResult) *domain.ClassificationResult {
	var best *domain.ClassificationResult
	for _, r := range sortedByIndex(results) {
		c := r.Classification
		if c == nil {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = &domain.ClassificationResult{
				Classification: copyClassification(*c),
				SourceChunk:    r.ChunkIndex,
			}
		}
	}
	return best
}

// metricOrder fixes the summation order so totals are reproducible.
var metricOrder = append(append([]domain.AnalysisType(nil), domain.AllAnalysisTypes...), domain.AnalysisCombined)

// SumTotals adds up every capability call recorded on the results.
func SumTotals(results []domain.ChunkResult) domain.Totals {
	var totals domain.Totals
	for _, r := range results {
		for _, t := range metricOrder {
			if m, ok := r.Metrics[t]; ok {
				totals.AddMetrics(m)
			}
		}
	}
	return totals
}

func sortedByIndex(results []domain.ChunkResult) []domain.ChunkResult {
	ordered := append([]domain.ChunkResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})
	return ordered
}

func copyClassification(c domain.Classification) domain.Classification {
	c.Subcategories = append([]string(nil), c.Subcategories...)
	c.Tags = append([]string(nil), c.Tags...)
	return c
}
