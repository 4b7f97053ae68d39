// Package chunking plans the time windows a long video is split into before
// each window is sent to the analysis capability.
package chunking

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// DefaultTierTableVersion identifies the built-in tier table.
const DefaultTierTableVersion = "2025-01"

// Tier bounds how much video one capability call can reason about.
type Tier struct {
	MaxDuration     float64 `yaml:"max_duration" json:"max_duration"`
	ChunkDuration   float64 `yaml:"chunk_duration" json:"chunk_duration"`
	OverlapFraction float64 `yaml:"overlap_fraction" json:"overlap_fraction"`
}

// Overlap returns the overlap in seconds added on each side of a core window.
func (t Tier) Overlap() float64 {
	return t.ChunkDuration * t.OverlapFraction
}

// Validate checks that the tier can produce a terminating plan.
func (t Tier) Validate() error {
	if t.MaxDuration <= 0 {
		return fmt.Errorf("max_duration must be positive")
	}
	if t.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive")
	}
	if t.OverlapFraction < 0 || t.OverlapFraction >= 1 {
		return fmt.Errorf("overlap_fraction must be in [0, 1)")
	}
	return nil
}

// TierTable is a versioned set of named tiers.
type TierTable struct {
	Version string          `yaml:"version" json:"version"`
	Tiers   map[string]Tier `yaml:"tiers" json:"tiers"`
}

// DefaultTierTable returns the built-in lite/pro/premier table.
func DefaultTierTable() *TierTable {
	return &TierTable{
		Version: DefaultTierTableVersion,
		Tiers: map[string]Tier{
			"lite":    {MaxDuration: 1800, ChunkDuration: 1500, OverlapFraction: 0.10},
			"pro":     {MaxDuration: 1800, ChunkDuration: 1500, OverlapFraction: 0.10},
			"premier": {MaxDuration: 5400, ChunkDuration: 4800, OverlapFraction: 0.10},
		},
	}
}

// LoadTierTable reads a YAML tier table. Tiers in the file replace or extend
// the defaults; an empty path returns the defaults.
func LoadTierTable(path string) (*TierTable, error) {
	table := DefaultTierTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier table: %w", err)
	}

	var file TierTable
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}

	if file.Version != "" {
		table.Version = file.Version
	}
	for name, tier := range file.Tiers {
		table.Tiers[name] = tier
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks every tier in the table.
func (t *TierTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: tier table version is required", domain.ErrPlanning)
	}
	if len(t.Tiers) == 0 {
		return fmt.Errorf("%w: tier table is empty", domain.ErrPlanning)
	}
	for name, tier := range t.Tiers {
		if err := tier.Validate(); err != nil {
			return fmt.Errorf("%w: tier %q: %v", domain.ErrPlanning, name, err)
		}
	}
	return nil
}

// Lookup returns the named tier.
func (t *TierTable) Lookup(name string) (Tier, error) {
	tier, ok := t.Tiers[name]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %w: %q", domain.ErrPlanning, domain.ErrUnknownTier, name)
	}
	return tier, nil
}

// Names lists the tier names in sorted order.
func (t *TierTable) Names() []string {
	names := make([]string, 0, len(t.Tiers))
	for name := range t.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
