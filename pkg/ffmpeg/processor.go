// Package ffmpeg wraps the ffprobe and ffmpeg binaries used to measure stored
// videos and cut them into standalone segments.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxStderrBytes = 4096

// Processor runs ffprobe and ffmpeg.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor resolves the given binaries (names or paths) via PATH.
func NewProcessor(ffmpegPath, ffprobePath string) (*Processor, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	resolvedFFmpeg, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	resolvedFFprobe, err := exec.LookPath(ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	return &Processor{
		ffmpegPath:  resolvedFFmpeg,
		ffprobePath: resolvedFFprobe,
	}, nil
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration   float64 // seconds
	Width      int
	Height     int
	HasAudio   bool
	AudioCodec string
	VideoCodec string
	Bitrate    int64
	FrameRate  float64
	FileSize   int64
}

// ToolError is a failed ffmpeg/ffprobe invocation.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string // last few KB only
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// GetVideoInfo probes a local video file.
func (p *Processor) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	output, err := cmd.Output()
	if err != nil {
		return nil, newToolError("ffprobe", err, stderr.String())
	}

	info, err := ParseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FileSize = stat.Size()

	if info.Duration <= 0 {
		return nil, fmt.Errorf("ffprobe: no duration reported for %s", filepath.Base(videoPath))
	}
	return info, nil
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// ParseProbeOutput decodes ffprobe's JSON output. The container duration is
// preferred; the first video stream's duration is used when it is missing.
func ParseProbeOutput(data []byte) (*VideoInfo, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = dur
	}
	if br, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = parseFrameRate(s.AvgFrameRate)
			if info.Duration <= 0 {
				if dur, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					info.Duration = dur
				}
			}
		}
	}
	return info, nil
}

func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// ExtractSegment copies [start, start+duration) of src into outputPath
// without re-encoding. The output must exist and be non-empty.
func (p *Processor) ExtractSegment(ctx context.Context, src string, start, duration float64, outputPath string) error {
	if duration <= 0 {
		return fmt.Errorf("extract segment: invalid duration %v", duration)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, SegmentArgs(src, start, duration, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		return newToolError("ffmpeg", err, stderr.String())
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if stat.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty file: %s", filepath.Base(outputPath))
	}
	return nil
}

// SegmentArgs builds the ffmpeg arguments for a stream-copy cut.
func SegmentArgs(src string, start, duration float64, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func newToolError(tool string, err error, stderr string) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ToolError{Tool: tool, ExitCode: code, Stderr: stderr, Err: err}
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

// Timeout returns a generous deadline for cutting a segment of the given length.
func Timeout(duration float64) time.Duration {
	d := time.Duration(duration/10) * time.Second
	if d < 2*time.Minute {
		d = 2 * time.Minute
	}
	return d
}
