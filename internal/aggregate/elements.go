package aggregate

import (
	"fmt"
	"sort"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/analysis"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// MergeElements merges equipment and topics by exact name, namespaces
// speakers by chunk when there is more than one, and rolls up people counts. It returns nil when no chunk
// reported elements.
//
// Raw time range strings are concatenated as reported. Parsed ranges are
// shifted onto the whole video's timeline.
func MergeElements(results []domain.ChunkResult) *domain.Elements {
	var (
		merged      *domain.Elements
		equipIndex  = make(map[string]int)
		topicIndex  = make(map[string]int)
		multipleAny bool
	)

	namespace := len(results) > 1
	for _, r := range sortedByIndex(results) {
		el := r.Elements
		if el == nil {
			continue
		}
		if merged == nil {
			merged = &domain.Elements{
				Equipment: []domain.EquipmentItem{},
				Topics:    []domain.Topic{},
				Speakers:  []domain.Speaker{},
			}
		}
		offset := r.Chunk.OverlapStart

		for _, e := range el.Equipment {
			parsed := shiftRanges(e.ParsedTimeRanges, offset)
			if i, ok := equipIndex[e.Name]; ok {
				merged.Equipment[i].TimeRanges = append(merged.Equipment[i].TimeRanges, e.TimeRanges...)
				merged.Equipment[i].ParsedTimeRanges = append(merged.Equipment[i].ParsedTimeRanges, parsed...)
				continue
			}
			item := e
			item.TimeRanges = append([]string(nil), e.TimeRanges...)
			item.ParsedTimeRanges = parsed
			equipIndex[e.Name] = len(merged.Equipment)
			merged.Equipment = append(merged.Equipment, item)
		}

		for _, tp := range el.Topics {
			parsed := shiftRanges(tp.ParsedTimeRanges, offset)
			if i, ok := topicIndex[tp.Name]; ok {
				existing := &merged.Topics[i]
				existing.TimeRanges = append(existing.TimeRanges, tp.TimeRanges...)
				existing.ParsedTimeRanges = append(existing.ParsedTimeRanges, parsed...)
				if analysis.LevelRank(tp.Importance) > analysis.LevelRank(existing.Importance) {
					existing.Importance = tp.Importance
				}
				continue
			}
			topic := tp
			topic.TimeRanges = append([]string(nil), tp.TimeRanges...)
			topic.ParsedTimeRanges = parsed
			topicIndex[tp.Name] = len(merged.Topics)
			merged.Topics = append(merged.Topics, topic)
		}

		for _, s := range el.Speakers {
			sp := s
			if namespace {
				sp.ID = SpeakerID(r.ChunkIndex, s.ID)
			}
			sp.ChunkIndex = r.ChunkIndex
			sp.TimeRanges = append([]string(nil), s.TimeRanges...)
			sp.ParsedTimeRanges = shiftRanges(s.ParsedTimeRanges, offset)
			if s.SpeakingPercentage != nil {
				pct := *s.SpeakingPercentage
				sp.SpeakingPercentage = &pct
			}
			merged.Speakers = append(merged.Speakers, sp)
		}

		if el.People.MaxCount > merged.People.MaxCount {
			merged.People.MaxCount = el.People.MaxCount
		}
		multipleAny = multipleAny || el.People.MultipleSpeakers
	}

	if merged == nil {
		return nil
	}
	merged.People.MultipleSpeakers = multipleAny || len(merged.Speakers) > 1

	sort.SliceStable(merged.Equipment, func(i, j int) bool {
		return len(merged.Equipment[i].TimeRanges) > len(merged.Equipment[j].TimeRanges)
	})
	sort.SliceStable(merged.Topics, func(i, j int) bool {
		return analysis.LevelRank(merged.Topics[i].Importance) > analysis.LevelRank(merged.Topics[j].Importance)
	})
	return merged
}

// SpeakerID namespaces a chunk-local speaker id.
func SpeakerID(chunkIndex int, id string) string {
	return fmt.Sprintf("chunk%d_%s", chunkIndex, id)
}

func shiftRanges(ranges []domain.TimeRange, offset float64) []domain.TimeRange {
	out := make([]domain.TimeRange, len(ranges))
	for i, r := range ranges {
		out[i] = r.Shift(offset)
	}
	return out
}
