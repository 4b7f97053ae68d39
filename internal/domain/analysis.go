package domain

import (
	"fmt"
	"strings"
	"time"
)

// AnalysisType identifies one kind of structured analysis.
type AnalysisType string

const (
	AnalysisSummary        AnalysisType = "summary"
	AnalysisChapters       AnalysisType = "chapters"
	AnalysisElements       AnalysisType = "elements"
	AnalysisClassification AnalysisType = "classification"
	// AnalysisCombined requests all four types in a single capability call.
	AnalysisCombined AnalysisType = "combined"
)

// AllAnalysisTypes lists the individually requestable types in canonical order.
var AllAnalysisTypes = []AnalysisType{
	AnalysisSummary,
	AnalysisChapters,
	AnalysisElements,
	AnalysisClassification,
}

// ParseAnalysisTypes parses a comma separated list such as "summary,chapters".
// An empty string selects every type.
func ParseAnalysisTypes(s string) ([]AnalysisType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return append([]AnalysisType(nil), AllAnalysisTypes...), nil
	}
	var out []AnalysisType
	seen := make(map[AnalysisType]bool)
	for _, part := range strings.Split(s, ",") {
		t := AnalysisType(strings.ToLower(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysisType, t)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrUnknownAnalysisType)
	}
	return out, nil
}

// Valid reports whether t is one of the individually requestable types.
func (t AnalysisType) Valid() bool {
	for _, known := range AllAnalysisTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TimeRange is a parsed "start-end" range in seconds.
type TimeRange struct {
	Raw             string  `json:"raw"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Shift returns a copy of r moved by offset seconds.
func (r TimeRange) Shift(offset float64) TimeRange {
	r.StartSeconds += offset
	r.EndSeconds += offset
	return r
}

// Summary is the narrative summary of one analyzed window.
type Summary struct {
	Text      string   `json:"summary"`
	KeyPoints []string `json:"key_points,omitempty"`
	Tone      string   `json:"tone,omitempty"`
	Audience  string   `json:"audience,omitempty"`
}

// Chapter is one enriched chapter. Seconds are relative to the analyzed
// window until the aggregator rebases them onto the whole video.
type Chapter struct {
	Index           int      `json:"index"`
	Title           string   `json:"title"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	StartSeconds    float64  `json:"start_seconds"`
	EndSeconds      float64  `json:"end_seconds"`
	DurationSeconds float64  `json:"duration_seconds"`
	Duration        string   `json:"duration"`
	Summary         string   `json:"summary,omitempty"`
	DetailedSummary string   `json:"detailed_summary,omitempty"`
	KeyPoints       []string `json:"key_points,omitempty"`
	ChunkIndex      int      `json:"chunk_index"`
}

// EquipmentItem is a piece of equipment seen in the video.
type EquipmentItem struct {
	Name             string      `json:"name"`
	Category         string      `json:"category,omitempty"`
	Description      string      `json:"description,omitempty"`
	TimeRanges       []string    `json:"time_ranges"`
	Confidence       string      `json:"confidence"`
	ParsedTimeRanges []TimeRange `json:"parsed_time_ranges"`
}

// Topic is a subject discussed in the video.
type Topic struct {
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	TimeRanges       []string    `json:"time_ranges"`
	Importance       string      `json:"importance"`
	ParsedTimeRanges []TimeRange `json:"parsed_time_ranges"`
}

// Speaker is a person speaking in the video.
type Speaker struct {
	ID                 string      `json:"speaker_id"`
	Role               string      `json:"role,omitempty"`
	Description        string      `json:"description,omitempty"`
	TimeRanges         []string    `json:"time_ranges"`
	SpeakingPercentage *float64    `json:"speaking_percentage"`
	ParsedTimeRanges   []TimeRange `json:"parsed_time_ranges"`
	ChunkIndex         int         `json:"chunk_index"`
}

// People summarizes who appears in the video.
type People struct {
	MaxCount         int  `json:"max_count"`
	MultipleSpeakers bool `json:"multiple_speakers"`
}

// Elements groups detected equipment, topics and speakers.
type Elements struct {
	Equipment []EquipmentItem `json:"equipment"`
	Topics    []Topic         `json:"topics"`
	People    People          `json:"people"`
	Speakers  []Speaker       `json:"speakers"`
}

// Classification is a taxonomy classification of the content.
type Classification struct {
	PrimaryCategory string   `json:"primary_category"`
	Subcategories   []string `json:"subcategories,omitempty"`
	ContentType     string   `json:"content_type,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale,omitempty"`
}

// Metrics records usage of one capability call.
type Metrics struct {
	Model          string        `json:"model,omitempty"`
	InputTokens    int           `json:"input_tokens"`
	OutputTokens   int           `json:"output_tokens"`
	TotalTokens    int           `json:"total_tokens"`
	Cost           float64       `json:"cost"`
	ProcessingTime time.Duration `json:"processing_time"`
	StopReason     string        `json:"stop_reason,omitempty"`
}

// Add returns the element-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	m.InputTokens += o.InputTokens
	m.OutputTokens += o.OutputTokens
	m.TotalTokens += o.TotalTokens
	m.Cost += o.Cost
	m.ProcessingTime += o.ProcessingTime
	return m
}
