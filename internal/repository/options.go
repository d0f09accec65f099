package repository

import (
	"log/slog"
	"time"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/entity"
)

// Option configures a Repository.
type Option func(*options)

type options struct {
	parent      *Repository
	mirror      entity.Mirror
	gate        entity.Gate
	pool        *compute.Pool
	gateTimeout time.Duration
	logger      *slog.Logger
	layout      Layout
}

// WithParent makes every store of the new repository delegate lookups to
// the corresponding store of parent.
func WithParent(parent *Repository) Option {
	return func(o *options) { o.parent = parent }
}

// WithMirror sets the persistence mirror. Child repositories inherit their
// parent's mirror by default; otherwise the stub mirror is used.
func WithMirror(m entity.Mirror) Option {
	return func(o *options) { o.mirror = m }
}

// WithGate sets the plugin dependency gate directly. It takes precedence
// over WithCompute.
func WithGate(g entity.Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithCompute validates plugin classes against the compute service behind
// pool. timeout bounds each validation; zero selects the gate default.
func WithCompute(pool *compute.Pool, timeout time.Duration) Option {
	return func(o *options) {
		o.pool = pool
		o.gateTimeout = timeout
	}
}

// WithLogger sets the logger. The default is the Env's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLayout replaces the directory structure.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}
