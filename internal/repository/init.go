package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/object"
)

// initPollInterval is how often Initialize checks the store flags.
const initPollInterval = 100 * time.Millisecond

// Initialized reports whether every store reports itself initialized.
func (r *Repository) Initialized() bool {
	for _, s := range r.static {
		if !s.Initialized() {
			return false
		}
	}
	for _, d := range r.dynamic {
		if !d.Initialized() {
			return false
		}
	}
	return true
}

// InitializedKind reports whether the store responsible for kind is
// initialized. Unmanaged kinds report false.
func (r *Repository) InitializedKind(kind *object.Kind) bool {
	s := r.store(kind)
	return s != nil && s.Initialized()
}

// SetInitialized marks the store responsible for kind as initialized.
// Discovery calls it after its first complete pass over the kind.
func (r *Repository) SetInitialized(kind *object.Kind) {
	if s := r.store(kind); s != nil {
		s.SetInitialized()
	}
}

// Initialize blocks until every store is initialized, then logs the
// consolidated report of missing optional dependencies, if any.
func (r *Repository) Initialize(ctx context.Context) error {
	ticker := time.NewTicker(initPollInterval)
	defer ticker.Stop()

	for !r.Initialized() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("initialize repository %s: %w", r.root, ctx.Err())
		case <-ticker.C:
		}
	}

	if report := r.MissingDependencyReport(); report != "" {
		r.logger.Warn(report, "root", r.root, "classes", len(r.MissingDependencies()))
	}
	r.logger.Info("repository initialized", "root", r.root)
	return nil
}

// MissingDependencies returns the recorded dependency failures, ordered by
// class.
func (r *Repository) MissingDependencies() []compute.MissingDependency {
	return r.facts.Snapshot()
}

// MissingDependencyReport renders the missing dependencies as one
// human-readable message, or "" when there are none.
func (r *Repository) MissingDependencyReport() string {
	return r.facts.Report()
}

// Facts returns the repository's dependency failure records.
func (r *Repository) Facts() *compute.Facts { return r.facts }
