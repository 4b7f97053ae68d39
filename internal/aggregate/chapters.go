package aggregate

import (
	"math"
	"sort"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// MergeChapters rebases chapter times onto the whole video and keeps each
// chapter only in the chunk whose core window holds its start. Chapters whose
// start rounds to an already accepted second are dropped. The result is
// sorted by start and indexed from 1.
//
// The last chunk's core window is treated as open-ended so chapters past a
// mismeasured duration are not lost.
func MergeChapters(results []domain.ChunkResult) []domain.Chapter {
	ordered := sortedByIndex(results)
	lastIndex := -1
	if len(ordered) > 0 {
		lastIndex = ordered[len(ordered)-1].ChunkIndex
	}

	seen := make(map[int64]bool)
	var merged []domain.Chapter

	for _, r := range ordered {
		offset := r.Chunk.OverlapStart
		for _, ch := range r.Chapters {
			start := offset + ch.StartSeconds
			if !ownsStart(r.Chunk, start, r.ChunkIndex == lastIndex) {
				continue
			}
			key := int64(math.Round(start))
			if seen[key] {
				continue
			}
			seen[key] = true

			end := offset + ch.EndSeconds
			if end < start {
				end = start
			}

			out := ch
			out.KeyPoints = append([]string(nil), ch.KeyPoints...)
			out.StartSeconds = start
			out.EndSeconds = end
			out.DurationSeconds = end - start
			out.StartTime = domain.FormatClock(start)
			out.EndTime = domain.FormatClock(end)
			out.Duration = domain.FormatDuration(end - start)
			out.ChunkIndex = r.ChunkIndex
			merged = append(merged, out)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartSeconds < merged[j].StartSeconds
	})
	for i := range merged {
		merged[i].Index = i + 1
	}
	return merged
}

func ownsStart(c domain.Chunk, start float64, last bool) bool {
	if last {
		return start >= c.CoreStart
	}
	return c.Contains(start)
}
