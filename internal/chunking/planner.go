package chunking

import (
	"fmt"
	"math"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// MaxChunks bounds the number of chunks a single plan may produce.
const MaxChunks = 10000

// Parameters summarizes how a video of a given length will be planned.
type Parameters struct {
	Tier           string  `json:"tier"`
	MaxDuration    float64 `json:"max_duration"`
	ChunkDuration  float64 `json:"chunk_duration"`
	OverlapSeconds float64 `json:"overlap_seconds"`
	NeedsChunking  bool    `json:"needs_chunking"`
	// EstimatedChunks may differ from the planned count by one because of
	// edge clamping. The estimate steps by chunk minus overlap, so it grows
	// faster than the plan for very long videos.
	EstimatedChunks int `json:"estimated_chunks"`
}

// Planner computes chunk boundaries from a tier table. It performs no I/O.
type Planner struct {
	table *TierTable
}

// NewPlanner creates a planner over table. A nil table selects the defaults.
func NewPlanner(table *TierTable) *Planner {
	if table == nil {
		table = DefaultTierTable()
	}
	return &Planner{table: table}
}

// Table returns the tier table in use.
func (p *Planner) Table() *TierTable {
	return p.table
}

// NeedsChunking reports whether duration exceeds the tier's single-call limit.
func (p *Planner) NeedsChunking(duration float64, tierName string) (bool, error) {
	tier, err := p.table.Lookup(tierName)
	if err != nil {
		return false, err
	}
	return duration > tier.MaxDuration, nil
}

// GenerateChunkBoundaries plans the chunks for a video of duration seconds.
//
// Core windows are contiguous and cover [0, duration) exactly. Each overlap
// window extends the core window by the tier's overlap on both sides, clamped
// to the video.
func (p *Planner) GenerateChunkBoundaries(duration float64, tierName string) ([]domain.Chunk, error) {
	tier, err := p.table.Lookup(tierName)
	if err != nil {
		return nil, err
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: invalid duration %v", domain.ErrPlanning, duration)
	}
	if err := checkChunkCount(tier, duration); err != nil {
		return nil, err
	}

	if duration <= tier.MaxDuration {
		return []domain.Chunk{{
			Index:        0,
			CoreStart:    0,
			CoreEnd:      duration,
			OverlapStart: 0,
			OverlapEnd:   duration,
			Duration:     duration,
		}}, nil
	}

	overlap := tier.Overlap()
	var chunks []domain.Chunk
	for start := 0.0; start < duration; {
		coreEnd := math.Min(start+tier.ChunkDuration, duration)
		if coreEnd <= start {
			return nil, fmt.Errorf("%w: chunk %d does not advance past %v", domain.ErrPlanning, len(chunks), start)
		}

		overlapStart := math.Max(start-overlap, 0)
		overlapEnd := math.Min(coreEnd+overlap, duration)

		chunks = append(chunks, domain.Chunk{
			Index:        len(chunks),
			CoreStart:    start,
			CoreEnd:      coreEnd,
			OverlapStart: overlapStart,
			OverlapEnd:   overlapEnd,
			Duration:     overlapEnd - overlapStart,
		})
		start = coreEnd
	}
	return chunks, nil
}

// CalculateChunkParameters reports the planning parameters and an estimated
// chunk count for cost estimation.
func (p *Planner) CalculateChunkParameters(tierName string, duration float64) (Parameters, error) {
	tier, err := p.table.Lookup(tierName)
	if err != nil {
		return Parameters{}, err
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Parameters{}, fmt.Errorf("%w: invalid duration %v", domain.ErrPlanning, duration)
	}
	if err := checkChunkCount(tier, duration); err != nil {
		return Parameters{}, err
	}

	params := Parameters{
		Tier:            tierName,
		MaxDuration:     tier.MaxDuration,
		ChunkDuration:   tier.ChunkDuration,
		OverlapSeconds:  tier.Overlap(),
		NeedsChunking:   duration > tier.MaxDuration,
		EstimatedChunks: 1,
	}
	if !params.NeedsChunking {
		return params, nil
	}

	step := tier.ChunkDuration - params.OverlapSeconds
	params.EstimatedChunks = int(math.Ceil((duration - params.OverlapSeconds) / step))
	if params.EstimatedChunks < 1 {
		params.EstimatedChunks = 1
	}
	return params, nil
}

// checkChunkCount rejects durations that would plan more than MaxChunks
// chunks. Floating point steps stop advancing long before a plan that large
// could complete.
func checkChunkCount(tier Tier, duration float64) error {
	if duration <= tier.MaxDuration {
		return nil
	}
	if n := math.Ceil(duration / tier.ChunkDuration); n > MaxChunks {
		return fmt.Errorf("%w: duration %v needs %.0f chunks, limit is %d", domain.ErrPlanning, duration, n, MaxChunks)
	}
	return nil
}

// ValidateChunks checks a plan for gaps, overlapping core windows and
// coverage of [0, duration).
func ValidateChunks(chunks []domain.Chunk, duration float64) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", domain.ErrPlanning)
	}
	if chunks[0].CoreStart != 0 || chunks[0].OverlapStart != 0 {
		return fmt.Errorf("%w: first chunk must start at 0", domain.ErrPlanning)
	}
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("%w: chunk %d has index %d", domain.ErrPlanning, i, c.Index)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPlanning, err)
		}
		if i > 0 && chunks[i-1].CoreEnd != c.CoreStart {
			return fmt.Errorf("%w: gap or overlap between chunk %d and %d", domain.ErrPlanning, i-1, i)
		}
	}
	last := chunks[len(chunks)-1]
	if last.CoreEnd != duration || last.OverlapEnd != duration {
		return fmt.Errorf("%w: last chunk must end at %v", domain.ErrPlanning, duration)
	}
	return nil
}
