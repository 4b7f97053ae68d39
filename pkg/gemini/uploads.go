package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// fileService is the part of the Files API used for media attachments.
type fileService interface {
	UploadFileFromPath(ctx context.Context, path string, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// uploads hands out active remote files for local media paths. A pinned path
// is uploaded at most once and its file lives until the last pin is
// released; an unpinned path is uploaded per call and deleted afterwards.
type uploads struct {
	files        fileService
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	pinned map[string]*pinnedFile
}

type pinnedFile struct {
	refs int

	// mu serializes the first upload among concurrent callers.
	mu   sync.Mutex
	file *genai.File
}

func newUploads(files fileService, pollInterval, pollTimeout time.Duration, logger *slog.Logger) *uploads {
	return &uploads{
		files:        files,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
		pinned:       make(map[string]*pinnedFile),
	}
}

// pin shares the upload of path among acquire calls until release runs.
// Pins nest; the remote file is deleted when the outermost one is released.
func (u *uploads) pin(path string) (release func()) {
	u.mu.Lock()
	p, ok := u.pinned[path]
	if !ok {
		p = &pinnedFile{}
		u.pinned[path] = p
	}
	p.refs++
	u.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { u.unpin(path, p) })
	}
}

func (u *uploads) unpin(path string, p *pinnedFile) {
	u.mu.Lock()
	p.refs--
	last := p.refs == 0
	if last {
		delete(u.pinned, path)
	}
	u.mu.Unlock()
	if !last {
		return
	}

	p.mu.Lock()
	file := p.file
	p.file = nil
	p.mu.Unlock()
	if file != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		u.delete(ctx, file.Name)
	}
}

// acquire returns an active remote file for path and a func to call once the
// file is no longer needed by this call.
func (u *uploads) acquire(ctx context.Context, path, mimeType string) (*genai.File, func(), error) {
	u.mu.Lock()
	p := u.pinned[path]
	u.mu.Unlock()

	if p == nil {
		file, err := u.upload(ctx, path, mimeType)
		if err != nil {
			return nil, nil, err
		}
		return file, func() { u.delete(context.WithoutCancel(ctx), file.Name) }, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		file, err := u.upload(ctx, path, mimeType)
		if err != nil {
			return nil, nil, err
		}
		p.file = file
	} else {
		u.logger.Debug("reusing uploaded file", "name", p.file.Name, "path", path)
	}
	return p.file, func() {}, nil
}

func (u *uploads) upload(ctx context.Context, path, mimeType string) (*genai.File, error) {
	if mimeType == "" {
		mimeType = MIMETypeFor(path)
	}
	file, err := u.files.UploadFileFromPath(ctx, path, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini upload: %w", err)
	}

	u.logger.Debug("file uploaded", "name", file.Name, "state", file.State)

	active, err := u.waitForActive(ctx, file)
	if err != nil {
		u.delete(context.WithoutCancel(ctx), file.Name)
		return nil, err
	}
	return active, nil
}

// waitForActive polls the uploaded file until the service has finished
// processing it.
func (u *uploads) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	ctx, cancel := context.WithTimeout(ctx, u.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, fmt.Errorf("%w: %s", ErrFileProcessing, file.Name)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for %s: %w", ErrFileProcessing, file.Name, ctx.Err())
		case <-ticker.C:
		}

		next, err := u.files.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("gemini get file: %w", err)
		}
		file = next
	}
}

func (u *uploads) delete(ctx context.Context, name string) {
	if err := u.files.DeleteFile(ctx, name); err != nil {
		u.logger.Warn("failed to delete uploaded file", "name", name, "error", err)
	}
}
