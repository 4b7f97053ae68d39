package domain

// ChunkResult is the analysis outcome of one chunk.
type ChunkResult struct {
	Chunk          Chunk                    `json:"chunk"`
	ChunkIndex     int                      `json:"chunk_index"`
	Summary        *Summary                 `json:"summary,omitempty"`
	Chapters       []Chapter                `json:"chapters,omitempty"`
	Elements       *Elements                `json:"elements,omitempty"`
	Classification *Classification          `json:"classification,omitempty"`
	Metrics        map[AnalysisType]Metrics `json:"metrics"`
}

// AnalysesCompleted counts capability calls that fed this result.
func (r ChunkResult) AnalysesCompleted() int {
	return len(r.Metrics)
}

// TotalMetrics sums every call recorded on the result.
func (r ChunkResult) TotalMetrics() Metrics {
	var total Metrics
	for _, m := range r.Metrics {
		total = total.Add(m)
	}
	return total
}

// SummaryResult is the whole-video narrative.
type SummaryResult struct {
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points,omitempty"`
	ChunkCount  int      `json:"chunk_count"`
	Synthesized bool     `json:"synthesized"`
	// Synthesis holds the usage of the synthesis call, when one was made.
	Synthesis *Metrics `json:"synthesis,omitempty"`
}

// ClassificationResult is the selected classification and where it came from.
type ClassificationResult struct {
	Classification
	SourceChunk int `json:"source_chunk"`
}

// Totals sums usage across a run.
type Totals struct {
	InputTokens       int     `json:"input_tokens"`
	OutputTokens      int     `json:"output_tokens"`
	TotalTokens       int     `json:"total_tokens"`
	Cost              float64 `json:"cost"`
	ProcessingSeconds float64 `json:"processing_seconds"`
	AnalysesCompleted int     `json:"analyses_completed"`
}

// AddMetrics folds one call's usage into the totals.
func (t *Totals) AddMetrics(m Metrics) {
	t.InputTokens += m.InputTokens
	t.OutputTokens += m.OutputTokens
	t.TotalTokens += m.TotalTokens
	t.Cost += m.Cost
	t.ProcessingSeconds += m.ProcessingTime.Seconds()
	t.AnalysesCompleted++
}

// MediaInfo holds probed properties of a stored video.
type MediaInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FPS             float64 `json:"fps"`
	Codec           string  `json:"codec"`
}

// RunMetadata describes how a run was executed.
type RunMetadata struct {
	Tier             string     `json:"tier"`
	TierTableVersion string     `json:"tier_table_version"`
	Chunked          bool       `json:"chunked"`
	ChunkCount       int        `json:"chunk_count"`
	ChunkDuration    float64    `json:"chunk_duration"`
	OverlapSeconds   float64    `json:"overlap_seconds"`
	DurationDegraded bool       `json:"duration_degraded"`
	Video            *MediaInfo `json:"video,omitempty"`
}

// AggregatedResult is the final merged output of one run.
type AggregatedResult struct {
	Summary        *SummaryResult        `json:"summary,omitempty"`
	Chapters       []Chapter             `json:"chapters,omitempty"`
	Elements       *Elements             `json:"elements,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Totals         Totals                `json:"totals"`
	Metadata       RunMetadata           `json:"metadata"`
}
