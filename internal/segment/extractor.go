// Package segment stages chunk artifacts: it cuts a chunk's overlap window
// out of a stored video and uploads it as a standalone object.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/storage"
	"github.com/AAKevin8450/aquaticartists-video-sub000/pkg/ffmpeg"
)

// Cutter copies a time range of a local video into a new file.
type Cutter interface {
	ExtractSegment(ctx context.Context, src string, start, duration float64, outputPath string) error
}

// Config configures an Extractor.
type Config struct {
	// StagingDir holds cut segments before upload.
	StagingDir string
	// MinFreeBytes is the free space required in StagingDir before cutting.
	MinFreeBytes int64
}

// Extractor implements chunk staging over an object store and a Cutter.
type Extractor struct {
	store      storage.ObjectStore
	cutter     Cutter
	cfg        Config
	freeSpace  func(string) int64
	cutTimeout func(float64) time.Duration
	logger     *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(store storage.ObjectStore, cutter Cutter, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	return &Extractor{
		store:      store,
		cutter:     cutter,
		cfg:        cfg,
		freeSpace:  storage.FreeSpace,
		cutTimeout: ffmpeg.Timeout,
		logger:     logger.With("component", "segment_extractor"),
	}
}

// ChunkKey derives the object key of a chunk artifact staged by run runID:
// "{dir}/chunks/{runID}/{base}_chunk_{index:03d}{ext}". Without a run ID the
// artifact sits next to its source.
func ChunkKey(sourceKey, runID string, index int) string {
	dir, file := path.Split(filepath.ToSlash(sourceKey))
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if runID != "" {
		dir += "chunks/" + runID + "/"
	}
	return fmt.Sprintf("%s%s_chunk_%03d%s", dir, base, index, ext)
}

func validRunID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Extract cuts chunk's overlap window from the source object, uploads it under
// runID and returns the artifact's key. The streams are copied, never
// re-encoded. An existing object at the artifact key is never overwritten.
func (e *Extractor) Extract(ctx context.Context, runID, sourceKey string, chunk domain.Chunk) (string, error) {
	if chunk.Duration <= 0 {
		return "", segmentError(chunk, fmt.Errorf("empty window"))
	}
	if !validRunID(runID) {
		return "", segmentError(chunk, fmt.Errorf("invalid run id %q", runID))
	}

	key := ChunkKey(sourceKey, runID, chunk.Index)
	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return "", segmentError(chunk, fmt.Errorf("check artifact: %w", err))
	}
	if exists {
		return "", segmentError(chunk, fmt.Errorf("%w: %s", storage.ErrObjectExists, key))
	}

	src, err := e.store.Download(ctx, sourceKey)
	if err != nil {
		return "", segmentError(chunk, fmt.Errorf("stage source: %w", err))
	}

	if err := os.MkdirAll(e.cfg.StagingDir, 0755); err != nil {
		return "", segmentError(chunk, fmt.Errorf("create staging dir: %w", err))
	}
	if e.cfg.MinFreeBytes > 0 {
		if free := e.freeSpace(e.cfg.StagingDir); free < e.cfg.MinFreeBytes {
			return "", segmentError(chunk, fmt.Errorf("insufficient disk space in staging dir: %d bytes free, %d required", free, e.cfg.MinFreeBytes))
		}
	}

	workDir, err := os.MkdirTemp(e.cfg.StagingDir, "segment-*")
	if err != nil {
		return "", segmentError(chunk, fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	out := filepath.Join(workDir, path.Base(key))

	e.logger.Debug("cutting segment",
		"source", sourceKey,
		"run_id", runID,
		"chunk_index", chunk.Index,
		"start", chunk.OverlapStart,
		"duration", chunk.Duration,
	)

	timeout := e.cutTimeout(chunk.Duration)
	cutCtx, cancel := context.WithTimeout(ctx, timeout)
	err = e.cutter.ExtractSegment(cutCtx, src, chunk.OverlapStart, chunk.Duration, out)
	cutErr := cutCtx.Err()
	cancel()
	if err != nil {
		if errors.Is(cutErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", segmentError(chunk, fmt.Errorf("cut timed out after %s: %w", timeout, err))
		}
		return "", segmentError(chunk, err)
	}

	if err := e.store.Upload(ctx, out, key, contentType(key)); err != nil {
		return "", segmentError(chunk, fmt.Errorf("upload artifact: %w", err))
	}

	e.logger.Info("chunk artifact staged", "chunk_index", chunk.Index, "key", key)
	return key, nil
}

// Delete removes a staged artifact. Failures are logged and reported as false.
func (e *Extractor) Delete(ctx context.Context, key string) bool {
	removed, err := e.store.Delete(ctx, key)
	if err != nil {
		e.logger.Warn("failed to delete chunk artifact", "key", key, "error", err)
		return false
	}
	if !removed {
		e.logger.Debug("chunk artifact already gone", "key", key)
	}
	return true
}

func segmentError(chunk domain.Chunk, err error) error {
	return domain.NewChunkError(chunk.Index, "extract", fmt.Errorf("%w: %w", domain.ErrSegmentExtraction, err))
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "video/mp4"
}
