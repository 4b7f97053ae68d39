// Package gemini adapts Google Gemini into the multimodal analysis
// capability: one optional media file plus one instruction in, bounded text
// and usage figures out.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/config"
)

// ErrEmptyResponse is returned when the model produced no usable candidate.
var ErrEmptyResponse = errors.New("gemini returned no content")

// ErrFileProcessing is returned when an uploaded file never becomes usable.
var ErrFileProcessing = errors.New("gemini file processing failed")

// Request is one capability call. MediaPath is optional; without it the call
// is text-only.
type Request struct {
	Model           string
	MediaPath       string
	MIMEType        string
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
	// JSON asks the model to answer with a JSON document.
	JSON bool
}

// Response is the model's answer and its usage.
type Response struct {
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	StopReason   string
}

// Client calls Gemini through the generative-ai-go SDK.
type Client struct {
	client  *genai.Client
	uploads *uploads
	logger  *slog.Logger
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	pollInterval := cfg.UploadPollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollTimeout := cfg.UploadTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Minute
	}

	logger = logger.With("component", "gemini")
	return &Client{
		client:  gc,
		uploads: newUploads(gc, pollInterval, pollTimeout, logger),
		logger:  logger,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Pin makes Invoke calls attaching mediaPath share a single upload until
// release is called, which deletes the remote file.
func (c *Client) Pin(mediaPath string) (release func()) {
	return c.uploads.pin(mediaPath)
}

// Invoke runs one generation. An attached media file is uploaded and awaited
// until active. Unless its path is pinned, it is deleted again before Invoke
// returns.
func (c *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	var parts []genai.Part
	if req.MediaPath != "" {
		file, done, err := c.uploads.acquire(ctx, req.MediaPath, req.MIMEType)
		if err != nil {
			return nil, err
		}
		defer done()
		parts = append(parts, genai.FileData{URI: file.URI, MIMEType: file.MIMEType})
	}
	parts = append(parts, genai.Text(req.Prompt))

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out, err := parseResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = req.Model

	c.logger.Debug("gemini call complete",
		"model", req.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"stop_reason", out.StopReason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func parseResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	cand := resp.Candidates[0]

	out := &Response{
		Text:       candidateText(cand),
		StopReason: stopReason(cand.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	if out.TotalTokens == 0 {
		out.TotalTokens = out.InputTokens + out.OutputTokens
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w (stop reason %s)", ErrEmptyResponse, out.StopReason)
	}
	return out, nil
}

func candidateText(cand *genai.Candidate) string {
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func stopReason(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	case genai.FinishReasonSafety:
		return "safety"
	case genai.FinishReasonRecitation:
		return "recitation"
	case genai.FinishReasonOther:
		return "other"
	default:
		return "unspecified"
	}
}

// MIMETypeFor guesses a video MIME type from a file extension.
func MIMETypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "video/mp4"
}
