// Package analysis runs the external analysis capability over one media
// artifact and turns its answers into enriched structured results.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/pricing"
	"github.com/AAKevin8450/aquaticartists-video-sub000/pkg/gemini"
)

// Capability is the external multimodal analysis service.
type Capability interface {
	Invoke(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// MediaPinner is implemented by capabilities that can share one media upload
// across the calls made for a chunk.
type MediaPinner interface {
	Pin(mediaPath string) (release func())
}

var _ MediaPinner = (*gemini.Client)(nil)

// Options control every call of one run.
type Options struct {
	Tier            string
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	// Combined requests all analysis types in a single call.
	Combined bool
	// CallTimeout bounds each capability call. Zero means no limit beyond ctx.
	CallTimeout time.Duration
}

// Input is the artifact to analyze and where it sits in the whole video.
type Input struct {
	MediaPath   string
	Chunk       domain.Chunk
	TotalChunks int
}

// Analyzer implements per-chunk analysis.
type Analyzer struct {
	capability Capability
	prices     pricing.Table
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer. A nil price table selects the defaults.
func NewAnalyzer(capability Capability, prices pricing.Table, logger *slog.Logger) *Analyzer {
	if prices == nil {
		prices = pricing.DefaultTable()
	}
	return &Analyzer{
		capability: capability,
		prices:     prices,
		logger:     logger.With("component", "analyzer"),
	}
}

// Analyze invokes the capability once per requested type, or once in total in
// combined mode, and returns the enriched results. Any invocation or parse
// failure fails the whole chunk.
func (a *Analyzer) Analyze(ctx context.Context, in Input, types []domain.AnalysisType, opts Options) (*domain.ChunkResult, error) {
	if len(types) == 0 {
		types = domain.AllAnalysisTypes
	}
	result := &domain.ChunkResult{
		Chunk:      in.Chunk,
		ChunkIndex: in.Chunk.Index,
		Metrics:    make(map[domain.AnalysisType]domain.Metrics),
	}

	if p, ok := a.capability.(MediaPinner); ok && in.MediaPath != "" {
		release := p.Pin(in.MediaPath)
		defer release()
	}

	if opts.Combined {
		if err := a.analyzeCombined(ctx, in, types, opts, result); err != nil {
			return nil, domain.NewChunkError(in.Chunk.Index, "analyze combined", err)
		}
		return result, nil
	}

	for _, t := range types {
		if err := a.analyzeOne(ctx, in, t, opts, result); err != nil {
			return nil, domain.NewChunkError(in.Chunk.Index, "analyze "+string(t), err)
		}
	}
	return result, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, in Input, t domain.AnalysisType, opts Options, result *domain.ChunkResult) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAnalysisType, t)
	}

	resp, metrics, err := a.call(ctx, in.MediaPath, BuildPrompt(t, in.Chunk, in.TotalChunks), opts, true)
	if err != nil {
		return err
	}

	switch t {
	case domain.AnalysisSummary:
		var raw rawSummary
		if err := DecodeJSON(resp.Text, &raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw.Summary) == "" {
			return fmt.Errorf("%w: summary is empty", domain.ErrResponseParse)
		}
		result.Summary = enrichSummary(raw)
	case domain.AnalysisChapters:
		var raw rawChapters
		if err := DecodeJSON(resp.Text, &raw); err != nil {
			return err
		}
		result.Chapters = tagChapters(enrichChapters(raw.Chapters), in.Chunk.Index)
	case domain.AnalysisElements:
		var raw rawElements
		if err := DecodeJSON(resp.Text, &raw); err != nil {
			return err
		}
		result.Elements = tagSpeakers(enrichElements(raw), in.Chunk.Index)
	case domain.AnalysisClassification:
		var raw rawClassification
		if err := DecodeJSON(resp.Text, &raw); err != nil {
			return err
		}
		result.Classification = enrichClassification(raw)
	}

	result.Metrics[t] = metrics
	a.logger.Info("analysis complete",
		"chunk_index", in.Chunk.Index,
		"type", t,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"cost", metrics.Cost,
	)
	return nil
}

func (a *Analyzer) analyzeCombined(ctx context.Context, in Input, types []domain.AnalysisType, opts Options, result *domain.ChunkResult) error {
	resp, metrics, err := a.call(ctx, in.MediaPath, BuildPrompt(domain.AnalysisCombined, in.Chunk, in.TotalChunks), opts, true)
	if err != nil {
		return err
	}

	var raw rawCombined
	if err := DecodeJSON(resp.Text, &raw); err != nil {
		return err
	}

	for _, t := range types {
		switch t {
		case domain.AnalysisSummary:
			if raw.Summary == nil || strings.TrimSpace(raw.Summary.Summary) == "" {
				return fmt.Errorf("%w: combined answer has no summary", domain.ErrResponseParse)
			}
			result.Summary = enrichSummary(*raw.Summary)
		case domain.AnalysisChapters:
			result.Chapters = tagChapters(enrichChapters(raw.Chapters), in.Chunk.Index)
		case domain.AnalysisElements:
			var el rawElements
			if raw.Elements != nil {
				el = *raw.Elements
			}
			result.Elements = tagSpeakers(enrichElements(el), in.Chunk.Index)
		case domain.AnalysisClassification:
			if raw.Classification == nil {
				return fmt.Errorf("%w: combined answer has no classification", domain.ErrResponseParse)
			}
			result.Classification = enrichClassification(*raw.Classification)
		}
	}

	result.Metrics[domain.AnalysisCombined] = metrics
	a.logger.Info("combined analysis complete",
		"chunk_index", in.Chunk.Index,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"cost", metrics.Cost,
	)
	return nil
}

// Synthesize merges per-chunk summaries into one narrative with a text-only call.
func (a *Analyzer) Synthesize(ctx context.Context, sections []Section, opts Options) (string, domain.Metrics, error) {
	resp, metrics, err := a.call(ctx, "", BuildSynthesisPrompt(sections), opts, false)
	if err != nil {
		return "", domain.Metrics{}, err
	}
	text := strings.TrimSpace(StripCodeFences(resp.Text))
	if text == "" {
		return "", domain.Metrics{}, fmt.Errorf("%w: synthesis returned no text", domain.ErrResponseParse)
	}
	return text, metrics, nil
}

func (a *Analyzer) call(ctx context.Context, mediaPath, prompt string, opts Options, wantJSON bool) (*gemini.Response, domain.Metrics, error) {
	if opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.capability.Invoke(ctx, gemini.Request{
		Model:           opts.Model,
		MediaPath:       mediaPath,
		Prompt:          prompt,
		MaxOutputTokens: opts.MaxOutputTokens,
		Temperature:     opts.Temperature,
		JSON:            wantJSON,
	})
	if err != nil {
		return nil, domain.Metrics{}, fmt.Errorf("%w: %w", domain.ErrAnalysisInvocation, err)
	}

	if resp.StopReason == "max_tokens" {
		a.logger.Warn("capability answer truncated at max output tokens",
			"max_output_tokens", opts.MaxOutputTokens,
			"output_tokens", resp.OutputTokens,
		)
	}

	model := resp.Model
	if model == "" {
		model = opts.Model
	}
	metrics := a.prices.Apply(opts.Tier, domain.Metrics{
		Model:          model,
		InputTokens:    resp.InputTokens,
		OutputTokens:   resp.OutputTokens,
		TotalTokens:    resp.TotalTokens,
		ProcessingTime: time.Since(start),
		StopReason:     resp.StopReason,
	})
	return resp, metrics, nil
}

func tagChapters(chapters []domain.Chapter, chunkIndex int) []domain.Chapter {
	for i := range chapters {
		chapters[i].ChunkIndex = chunkIndex
	}
	return chapters
}

func tagSpeakers(el *domain.Elements, chunkIndex int) *domain.Elements {
	for i := range el.Speakers {
		el.Speakers[i].ChunkIndex = chunkIndex
	}
	return el
}
