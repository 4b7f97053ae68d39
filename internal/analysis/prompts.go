package analysis

import (
	"fmt"
	"strings"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
)

// Section is one chunk summary handed to the synthesis call.
type Section struct {
	Label   string
	Summary string
}

const summarySchema = `{
  "summary": "2-3 paragraph narrative summary",
  "key_points": ["..."],
  "tone": "e.g. instructional, conversational",
  "target_audience": "who the video is for"
}`

const chaptersSchema = `{
  "chapters": [
    {
      "title": "short chapter title",
      "start_time": "MM:SS or HH:MM:SS",
      "end_time": "MM:SS or HH:MM:SS",
      "summary": "one sentence",
      "detailed_summary": "a short paragraph",
      "key_points": ["..."]
    }
  ]
}`

const elementsSchema = `{
  "equipment": [
    {"name": "...", "category": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "confidence": "low|medium|high"}
  ],
  "topics": [
    {"name": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "importance": "low|medium|high"}
  ],
  "people": {"max_count": 0, "multiple_speakers": false},
  "speakers": [
    {"speaker_id": "Speaker_1", "role": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "speaking_percentage": 0}
  ]
}`

const classificationSchema = `{
  "primary_category": "...",
  "subcategories": ["..."],
  "content_type": "e.g. tutorial, interview, review",
  "tags": ["..."],
  "confidence": 0.0,
  "rationale": "why this category"
}`

const combinedSchema = `{
  "summary": {"summary": "...", "key_points": ["..."], "tone": "...", "target_audience": "..."},
  "chapters": [
    {"title": "...", "start_time": "MM:SS", "end_time": "MM:SS", "summary": "...", "detailed_summary": "...", "key_points": ["..."]}
  ],
  "elements": {
    "equipment": [{"name": "...", "category": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "confidence": "low|medium|high"}],
    "topics": [{"name": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "importance": "low|medium|high"}],
    "people": {"max_count": 0, "multiple_speakers": false},
    "speakers": [{"speaker_id": "Speaker_1", "role": "...", "description": "...", "time_ranges": ["MM:SS-MM:SS"], "speaking_percentage": 0}]
  },
  "classification": {"primary_category": "...", "subcategories": ["..."], "content_type": "...", "tags": ["..."], "confidence": 0.0, "rationale": "..."}
}`

// BuildPrompt returns the instruction for one analysis type. chunk and total
// describe where the analyzed clip sits in the whole video.
func BuildPrompt(t domain.AnalysisType, chunk domain.Chunk, total int) string {
	var sb strings.Builder

	switch t {
	case domain.AnalysisSummary:
		sb.WriteString("Watch this video and summarize it.\n")
		sb.WriteString("Describe what happens, what is demonstrated or discussed, and the main takeaways.\n")
	case domain.AnalysisChapters:
		sb.WriteString("Watch this video and divide it into chapters at natural topic changes.\n")
		sb.WriteString("Chapters must be in order, must not overlap, and together should cover the whole clip.\n")
	case domain.AnalysisElements:
		sb.WriteString("Watch this video and list the equipment shown or used, the topics discussed, and the people who speak.\n")
		sb.WriteString("Use the exact same name each time an item reappears. Identify speakers as Speaker_1, Speaker_2 and so on.\n")
	case domain.AnalysisClassification:
		sb.WriteString("Watch this video and classify its content.\n")
		sb.WriteString("Report confidence as a number between 0 and 1.\n")
	case domain.AnalysisCombined:
		sb.WriteString("Watch this video and produce a summary, a chapter list, the detected elements, and a content classification in one answer.\n")
		sb.WriteString("Use the exact same name each time an item reappears. Report classification confidence as a number between 0 and 1.\n")
	}

	writeClipContext(&sb, chunk, total)

	sb.WriteString("\nAll timestamps must be relative to the start of this clip, formatted MM:SS or HH:MM:SS.\n")
	sb.WriteString("Respond with ONLY a JSON object in this format, no markdown, no explanation:\n")
	sb.WriteString(schemaFor(t))
	return sb.String()
}

func writeClipContext(sb *strings.Builder, chunk domain.Chunk, total int) {
	if total <= 1 {
		return
	}
	sb.WriteString(fmt.Sprintf("\nThis clip is part %d of %d of a longer video and covers %s of it.\n",
		chunk.Index+1, total, chunk.Label()))
	sb.WriteString("Only describe what is in this clip. It may start or end mid-topic.\n")
}

func schemaFor(t domain.AnalysisType) string {
	switch t {
	case domain.AnalysisSummary:
		return summarySchema
	case domain.AnalysisChapters:
		return chaptersSchema
	case domain.AnalysisElements:
		return elementsSchema
	case domain.AnalysisClassification:
		return classificationSchema
	default:
		return combinedSchema
	}
}

// BuildSynthesisPrompt asks for one narrative built from per-chunk summaries.
func BuildSynthesisPrompt(sections []Section) string {
	var sb strings.Builder
	sb.WriteString("The following are summaries of consecutive parts of one long video, in order.\n")
	sb.WriteString("Write a single 2-3 paragraph summary of the whole video.\n")
	sb.WriteString("Integrate the themes and the overall progression. Do not summarize each part in turn and do not mention parts or time ranges.\n\n")

	for i, s := range sections {
		sb.WriteString(fmt.Sprintf("Part %d (%s):\n%s\n\n", i+1, s.Label, strings.TrimSpace(s.Summary)))
	}

	sb.WriteString("Return ONLY the summary text.")
	return sb.String()
}
