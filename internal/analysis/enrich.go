package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// Wire formats returned by the capability. They are decoded leniently and
// converted into enriched domain values; nothing here is mutated afterwards.

type stringList []string

// UnmarshalJSON accepts either a list of strings or a single string.
func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = nil
		} else {
			*l = []string{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// flexNumber holds a number the model may have sent as a number, a numeric
// string ("45", "45%") or an object with an "overall" field.
type flexNumber struct {
	value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	n.value = parseFlexNumber(data)
	return nil
}

func parseFlexNumber(data []byte) *float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if json.Unmarshal(data, &s) != nil {
			return nil
		}
		return parseNumericString(s)
	case '{':
		var obj map[string]json.RawMessage
		if json.Unmarshal(data, &obj) != nil {
			return nil
		}
		for _, key := range []string{"overall", "score", "value"} {
			if raw, ok := obj[key]; ok {
				return parseFlexNumber(raw)
			}
		}
		return nil
	default:
		var f float64
		if json.Unmarshal(data, &f) != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
}

func parseNumericString(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// flexTimecode holds a position sent either as seconds or as a timecode
// string ParseTimecode understands.
type flexTimecode struct {
	seconds float64
	ok      bool
}

func (t *flexTimecode) UnmarshalJSON(data []byte) error {
	*t = flexTimecode{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if json.Unmarshal(data, &s) != nil {
			return nil
		}
		if secs, err := ParseTimecode(s); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
			t.seconds, t.ok = secs, true
		}
		return nil
	}
	if v := parseFlexNumber(data); v != nil && *v >= 0 {
		t.seconds, t.ok = *v, true
	}
	return nil
}

// secondsOr returns the parsed position or def when none was sent.
func (t flexTimecode) secondsOr(def float64) float64 {
	if !t.ok {
		return def
	}
	return t.seconds
}

// flexInt holds a count sent as a number or a numeric string.
type flexInt struct {
	value *int
}

func (n *flexInt) UnmarshalJSON(data []byte) error {
	n.value = nil
	if v := parseFlexNumber(data); v != nil && *v >= 0 && *v <= math.MaxInt32 {
		i := int(math.Round(*v))
		n.value = &i
	}
	return nil
}

// flexBool holds a flag sent as a boolean, a string ("yes", "false") or a
// number.
type flexBool struct {
	value *bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	b.value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var v bool
	switch data[0] {
	case 't', 'f':
		if json.Unmarshal(data, &v) != nil {
			return nil
		}
	case '"':
		var s string
		if json.Unmarshal(data, &s) != nil {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			v = true
		case "false", "no", "n", "0":
			v = false
		default:
			return nil
		}
	default:
		f := parseFlexNumber(data)
		if f == nil {
			return nil
		}
		v = *f != 0
	}
	b.value = &v
	return nil
}

type rawSummary struct {
	Summary   string     `json:"summary"`
	KeyPoints stringList `json:"key_points"`
	Tone      string     `json:"tone"`
	Audience  string     `json:"target_audience"`
}

type rawChapter struct {
	Title           string       `json:"title"`
	StartTime       flexTimecode `json:"start_time"`
	EndTime         flexTimecode `json:"end_time"`
	Summary         string       `json:"summary"`
	DetailedSummary string       `json:"detailed_summary"`
	KeyPoints       stringList   `json:"key_points"`
}

type rawChapters struct {
	Chapters []rawChapter `json:"chapters"`
}

type rawEquipment struct {
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	TimeRanges  stringList `json:"time_ranges"`
	Confidence  string     `json:"confidence"`
}

type rawTopic struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TimeRanges  stringList `json:"time_ranges"`
	Importance  string     `json:"importance"`
}

type rawSpeaker struct {
	SpeakerID          string     `json:"speaker_id"`
	Role               string     `json:"role"`
	Description        string     `json:"description"`
	TimeRanges         stringList `json:"time_ranges"`
	SpeakingPercentage flexNumber `json:"speaking_percentage"`
}

type rawPeople struct {
	MaxCount         flexInt  `json:"max_count"`
	MultipleSpeakers flexBool `json:"multiple_speakers"`
}

type rawElements struct {
	Equipment []rawEquipment `json:"equipment"`
	Topics    []rawTopic     `json:"topics"`
	People    *rawPeople     `json:"people"`
	Speakers  []rawSpeaker   `json:"speakers"`
}

type rawClassification struct {
	PrimaryCategory string     `json:"primary_category"`
	Subcategories   stringList `json:"subcategories"`
	ContentType     string     `json:"content_type"`
	Tags            stringList `json:"tags"`
	Confidence      flexNumber `json:"confidence"`
	Rationale       string     `json:"rationale"`
}

type rawCombined struct {
	Summary        *rawSummary        `json:"summary"`
	Chapters       []rawChapter       `json:"chapters"`
	Elements       *rawElements       `json:"elements"`
	Classification *rawClassification `json:"classification"`
}

// Level values for confidence and importance.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// LevelRank orders low < medium < high. Unknown values rank as medium.
func LevelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelLow:
		return 0
	case LevelHigh:
		return 2
	default:
		return 1
	}
}

func normalizeLevel(level string) string {
	l := strings.ToLower(strings.TrimSpace(level))
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return l
	}
	return LevelMedium
}

func enrichSummary(raw rawSummary) *domain.Summary {
	return &domain.Summary{
		Text:      strings.TrimSpace(raw.Summary),
		KeyPoints: append([]string(nil), raw.KeyPoints...),
		Tone:      raw.Tone,
		Audience:  raw.Audience,
	}
}

// enrichChapters parses chapter timecodes into seconds, clamps end >= start
// and derives the duration. Indexes are 1-based in answer order.
func enrichChapters(raw []rawChapter) []domain.Chapter {
	out := make([]domain.Chapter, 0, len(raw))
	for i, rc := range raw {
		start := rc.StartTime.secondsOr(0)
		end := rc.EndTime.secondsOr(start)
		if end < start {
			end = start
		}

		out = append(out, domain.Chapter{
			Index:           i + 1,
			Title:           strings.TrimSpace(rc.Title),
			StartTime:       domain.FormatClock(start),
			EndTime:         domain.FormatClock(end),
			StartSeconds:    start,
			EndSeconds:      end,
			DurationSeconds: end - start,
			Duration:        domain.FormatDuration(end - start),
			Summary:         rc.Summary,
			DetailedSummary: rc.DetailedSummary,
			KeyPoints:       append([]string(nil), rc.KeyPoints...),
		})
	}
	return out
}

func enrichElements(raw rawElements) *domain.Elements {
	el := &domain.Elements{
		Equipment: make([]domain.EquipmentItem, 0, len(raw.Equipment)),
		Topics:    make([]domain.Topic, 0, len(raw.Topics)),
		Speakers:  make([]domain.Speaker, 0, len(raw.Speakers)),
	}

	for _, e := range raw.Equipment {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		ranges := append([]string(nil), e.TimeRanges...)
		el.Equipment = append(el.Equipment, domain.EquipmentItem{
			Name:             name,
			Category:         e.Category,
			Description:      e.Description,
			TimeRanges:       ranges,
			Confidence:       normalizeLevel(e.Confidence),
			ParsedTimeRanges: ParseTimeRanges(ranges),
		})
	}

	for _, tp := range raw.Topics {
		name := strings.TrimSpace(tp.Name)
		if name == "" {
			continue
		}
		ranges := append([]string(nil), tp.TimeRanges...)
		el.Topics = append(el.Topics, domain.Topic{
			Name:             name,
			Description:      tp.Description,
			TimeRanges:       ranges,
			Importance:       normalizeLevel(tp.Importance),
			ParsedTimeRanges: ParseTimeRanges(ranges),
		})
	}

	for i, s := range raw.Speakers {
		id := strings.TrimSpace(s.SpeakerID)
		if id == "" {
			id = "Speaker_" + strconv.Itoa(i+1)
		}
		ranges := append([]string(nil), s.TimeRanges...)
		el.Speakers = append(el.Speakers, domain.Speaker{
			ID:                 id,
			Role:               s.Role,
			Description:        s.Description,
			TimeRanges:         ranges,
			SpeakingPercentage: s.SpeakingPercentage.value,
			ParsedTimeRanges:   ParseTimeRanges(ranges),
		})
	}

	el.People = domain.People{
		MaxCount:         len(el.Speakers),
		MultipleSpeakers: len(el.Speakers) > 1,
	}
	if raw.People != nil {
		if v := raw.People.MaxCount.value; v != nil {
			el.People.MaxCount = *v
		}
		if v := raw.People.MultipleSpeakers.value; v != nil {
			el.People.MultipleSpeakers = *v
		}
	}
	return el
}

func enrichClassification(raw rawClassification) *domain.Classification {
	c := &domain.Classification{
		PrimaryCategory: strings.TrimSpace(raw.PrimaryCategory),
		Subcategories:   []string(raw.Subcategories),
		ContentType:     raw.ContentType,
		Tags:            []string(raw.Tags),
		Rationale:       raw.Rationale,
	}
	if v := raw.Confidence.value; v != nil {
		conf := *v
		// Percent scale.
		if conf > 1 && conf <= 100 {
			conf /= 100
		}
		c.Confidence = math.Max(0, math.Min(1, conf))
	}
	return c
}
