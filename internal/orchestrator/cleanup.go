package orchestrator

import (
	"context"
	"log/slog"
	"sync"
)

// ArtifactDeleter removes a staged chunk artifact. It reports false when the
// artifact could not be removed.
type ArtifactDeleter interface {
	Delete(ctx context.Context, key string) bool
}

// registry tracks staged chunk artifacts so they can be released on any exit.
type registry struct {
	mu      sync.Mutex
	keys    []string
	staged  map[string]bool
	deleter ArtifactDeleter
	logger  *slog.Logger
}

func newRegistry(deleter ArtifactDeleter, logger *slog.Logger) *registry {
	return &registry{
		staged:  make(map[string]bool),
		deleter: deleter,
		logger:  logger,
	}
}

// stage records key for release. Recording the same key twice is a no-op.
func (r *registry) stage(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == "" || r.staged[key] {
		return
	}
	r.staged[key] = true
	r.keys = append(r.keys, key)
}

// release deletes every staged artifact once, independently of each other and
// of ctx cancellation. It returns the number of failed deletions.
func (r *registry) release(ctx context.Context) int {
	r.mu.Lock()
	keys := r.keys
	r.keys = nil
	r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	failed := 0
	for _, key := range keys {
		if !r.deleter.Delete(ctx, key) {
			failed++
			r.logger.Warn("chunk artifact left behind", "key", key)
		}
	}
	return failed
}
