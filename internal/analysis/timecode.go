package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// ParseTimecode converts "SS", "MM:SS" or "HH:MM:SS" (seconds may carry a
// fraction) to seconds.
func ParseTimecode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timecode")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}

	var total float64
	for i, part := range parts {
		part = strings.TrimSpace(part)
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		// Only the last field may be fractional or exceed 59 when it stands alone.
		if i < len(parts)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

var rangeSeparators = []string{" to ", "–", "—", "-"}

// ParseTimeRange parses "start-end" (also "start to end" or en/em dashes).
// A lone timecode yields a zero-length range.
func ParseTimeRange(s string) (domain.TimeRange, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return domain.TimeRange{}, false
	}

	startStr, endStr := raw, ""
	for _, sep := range rangeSeparators {
		if idx := strings.Index(raw, sep); idx > 0 {
			startStr, endStr = raw[:idx], raw[idx+len(sep):]
			break
		}
	}

	start, err := ParseTimecode(startStr)
	if err != nil {
		return domain.TimeRange{}, false
	}
	end := start
	if endStr != "" {
		if e, err := ParseTimecode(endStr); err == nil {
			end = e
		}
	}
	if end < start {
		end = start
	}

	return domain.TimeRange{
		Raw:             raw,
		StartSeconds:    start,
		EndSeconds:      end,
		DurationSeconds: end - start,
	}, true
}

// ParseTimeRanges parses every range it can and skips the rest.
func ParseTimeRanges(ranges []string) []domain.TimeRange {
	out := make([]domain.TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if tr, ok := ParseTimeRange(r); ok {
			out = append(out, tr)
		}
	}
	return out
}
