package compute

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/clusteval/internal/object"
)

// DefaultGateTimeout bounds one class check, connection included.
const DefaultGateTimeout = 10 * time.Second

// Gate checks the prerequisites of plugin classes against the compute
// service and records what is missing.
type Gate struct {
	pool    *Pool
	facts   *Facts
	timeout time.Duration
	logger  *slog.Logger
}

// NewGate creates a gate over pool that records into facts.
func NewGate(pool *Pool, facts *Facts, timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultGateTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{pool: pool, facts: facts, timeout: timeout, logger: logger}
}

// Facts returns the facts the gate records into.
func (g *Gate) Facts() *Facts { return g.facts }

// Ensure loads every library class requires. Each unavailable library is
// recorded as a fact and the first failure is returned as a
// *DependencyError. If the service cannot be reached the service name is
// recorded as the missing library. Success clears the class's facts.
//
// A timeout is a dependency failure like any other.
func (g *Gate) Ensure(ctx context.Context, class *object.Class) error {
	if len(class.Requires) == 0 {
		g.facts.Clear(class.Name)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	conn, err := g.pool.Conn(ctx)
	if err != nil {
		g.record(class.Name, g.pool.ServiceName())
		return &DependencyError{Class: class.Name, Library: g.pool.ServiceName(), Err: err}
	}

	var first error
	for _, lib := range class.Requires {
		err := conn.LoadLibrary(ctx, lib, class.Name)
		if err == nil {
			continue
		}
		g.record(class.Name, lib)
		if first == nil {
			first = &DependencyError{Class: class.Name, Library: lib, Err: err}
		}
		if timedOut(err) {
			// The reply may still arrive and desynchronise the stream.
			g.pool.Release(WorkerFrom(ctx))
			break
		}
	}
	if first != nil {
		return first
	}

	if g.facts.Clear(class.Name) {
		g.logger.Info("class dependencies now satisfied", "class", class.Name)
	}
	return nil
}

func (g *Gate) record(class, library string) {
	if g.facts.Add(class, library) {
		g.logger.Warn("missing optional library", "class", class, "library", library)
	}
}

func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
