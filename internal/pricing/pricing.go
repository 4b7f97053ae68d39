// Package pricing computes informational cost estimates for capability calls.
// The figures are not billing data.
package pricing

import (
	"fmt"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// Price is the cost per 1,000 tokens for one tier.
type Price struct {
	InputPer1K  float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" json:"output_per_1k"`
}

// Table maps tier names to prices.
type Table map[string]Price

// DefaultTable returns the built-in per-tier prices in USD.
func DefaultTable() Table {
	return Table{
		"lite":    {InputPer1K: 0.00006, OutputPer1K: 0.00024},
		"pro":     {InputPer1K: 0.0008, OutputPer1K: 0.0032},
		"premier": {InputPer1K: 0.0025, OutputPer1K: 0.0125},
	}
}

// Cost returns the estimated cost of a call on tier.
func (t Table) Cost(tier string, inputTokens, outputTokens int) (float64, error) {
	p, ok := t[tier]
	if !ok {
		return 0, fmt.Errorf("%w: no pricing for %q", domain.ErrUnknownTier, tier)
	}
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K, nil
}

// Apply fills m.Cost from its token counts. Unknown tiers leave the cost at zero.
func (t Table) Apply(tier string, m domain.Metrics) domain.Metrics {
	cost, err := t.Cost(tier, m.InputTokens, m.OutputTokens)
	if err != nil {
		return m
	}
	m.Cost = cost
	return m
}

// Estimate projects the cost of analyzing a video, given per-chunk token
// expectations and the number of calls each chunk makes.
func (t Table) Estimate(tier string, chunks, callsPerChunk, inputPerCall, outputPerCall int) (float64, error) {
	per, err := t.Cost(tier, inputPerCall, outputPerCall)
	if err != nil {
		return 0, err
	}
	return per * float64(chunks*callsPerChunk), nil
}
