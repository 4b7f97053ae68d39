package domain

import (
	"errors"
	"strconv"
)

// Pipeline error categories.
var (
	// ErrProbeDegraded marks a probe failure that was replaced by the fallback duration.
	ErrProbeDegraded = errors.New("probe degraded to fallback duration")

	// ErrPlanning is returned when chunk boundaries cannot be planned.
	ErrPlanning = errors.New("chunk planning failed")

	// ErrUnknownTier is returned for a capability tier missing from the tier table.
	ErrUnknownTier = errors.New("unknown capability tier")

	// ErrSegmentExtraction is returned when a chunk artifact cannot be staged.
	ErrSegmentExtraction = errors.New("segment extraction failed")

	// ErrAnalysisInvocation is returned when the analysis capability call fails.
	ErrAnalysisInvocation = errors.New("analysis invocation failed")

	// ErrResponseParse is returned when a capability response is not usable structured data.
	ErrResponseParse = errors.New("response parse failed")

	// ErrAggregation is returned when merging chunk results fails.
	ErrAggregation = errors.New("aggregation failed")

	// ErrUnknownAnalysisType is returned for an unrecognized analysis type.
	ErrUnknownAnalysisType = errors.New("unknown analysis type")
)

// Job errors.
var (
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")

	// ErrInvalidSource is returned when a job has no source reference.
	ErrInvalidSource = errors.New("source reference is required")
)

// ChunkError wraps an error with chunk context.
type ChunkError struct {
	ChunkIndex int
	Op         string
	Err        error
}

func (e *ChunkError) Error() string {
	return e.Op + " [chunk " + strconv.Itoa(e.ChunkIndex) + "]: " + e.Err.Error()
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// NewChunkError creates a new ChunkError.
func NewChunkError(chunkIndex int, op string, err error) *ChunkError {
	return &ChunkError{
		ChunkIndex: chunkIndex,
		Op:         op,
		Err:        err,
	}
}
