package domain

import (
	"fmt"
	"time"
)

// Chunk is a planned time window of a video.
//
// The core window [CoreStart, CoreEnd) is the range this chunk is
// authoritative for. The overlap window [OverlapStart, OverlapEnd) is what is
// actually extracted and sent to the analysis capability.
type Chunk struct {
	Index        int     `json:"index"`
	CoreStart    float64 `json:"core_start"`
	CoreEnd      float64 `json:"core_end"`
	OverlapStart float64 `json:"overlap_start"`
	OverlapEnd   float64 `json:"overlap_end"`
	Duration     float64 `json:"duration"`
}

// Contains reports whether an absolute timestamp falls inside the core window.
func (c Chunk) Contains(seconds float64) bool {
	return seconds >= c.CoreStart && seconds < c.CoreEnd
}

// Label renders the chunk's overlap window as "HH:MM:SS-HH:MM:SS".
func (c Chunk) Label() string {
	return FormatClock(c.OverlapStart) + "-" + FormatClock(c.OverlapEnd)
}

// Validate checks the window ordering of a single chunk.
func (c Chunk) Validate() error {
	if c.CoreStart < 0 || c.OverlapStart < 0 {
		return fmt.Errorf("chunk %d: negative start", c.Index)
	}
	if c.CoreEnd <= c.CoreStart {
		return fmt.Errorf("chunk %d: core_end must be greater than core_start", c.Index)
	}
	if c.OverlapStart > c.CoreStart || c.OverlapEnd < c.CoreEnd {
		return fmt.Errorf("chunk %d: overlap window must contain core window", c.Index)
	}
	return nil
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatDuration renders a span in seconds as a short human string ("1h 2m 3s", "4m 5s", "6s").
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
