package segment

import (
	"context"
	"fmt"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/storage"
	"github.com/AAKevin8450/aquaticartists-video-sub000/pkg/ffmpeg"
)

// VideoInspector reads metadata from a local video file.
type VideoInspector interface {
	GetVideoInfo(ctx context.Context, videoPath string) (*ffmpeg.VideoInfo, error)
}

// Prober measures stored videos.
type Prober struct {
	store     storage.ObjectStore
	inspector VideoInspector
}

// NewProber creates a Prober.
func NewProber(store storage.ObjectStore, inspector VideoInspector) *Prober {
	return &Prober{store: store, inspector: inspector}
}

// Probe returns the duration, dimensions, frame rate and codec of the object at key.
func (p *Prober) Probe(ctx context.Context, key string) (*domain.MediaInfo, error) {
	local, err := p.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stage video for probe: %w", err)
	}
	info, err := p.inspector.GetVideoInfo(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}
	return &domain.MediaInfo{
		DurationSeconds: info.Duration,
		Width:           info.Width,
		Height:          info.Height,
		FPS:             info.FrameRate,
		Codec:           info.VideoCodec,
	}, nil
}
