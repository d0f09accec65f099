package compute

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultWorker is the worker id used when the context carries none.
const DefaultWorker = "main"

// DefaultIdleTTL is how long an unused worker connection is kept open.
const DefaultIdleTTL = 10 * time.Minute

type workerKey struct{}

// WithWorker tags ctx with the id of the calling worker.
func WithWorker(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerFrom returns the worker id carried by ctx.
func WorkerFrom(ctx context.Context) string {
	if id, ok := ctx.Value(workerKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultWorker
}

// Pool keeps one connection per worker, dialed on first use.
// Connections unused for the idle TTL are evicted and closed.
type Pool struct {
	service Service
	logger  *slog.Logger

	mu    sync.Mutex
	conns *gocache.Cache
}

// NewPool creates a pool over service.
func NewPool(service Service, idleTTL time.Duration, logger *slog.Logger) *Pool {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		service: service,
		logger:  logger,
		conns:   gocache.New(idleTTL, idleTTL/2),
	}
	p.conns.OnEvicted(func(worker string, v interface{}) {
		if c, ok := v.(*workerConn); ok {
			if err := c.Close(); err != nil {
				p.logger.Debug("closing compute connection", "worker", worker, "error", err)
			}
		}
	})
	return p
}

// ServiceName returns the name of the underlying service.
func (p *Pool) ServiceName() string { return p.service.Name() }

// Conn returns the connection of the worker carried by ctx, dialing it if
// needed. Each call renews the connection's idle TTL.
//
// Dialing happens without the pool lock. When two calls of one worker dial
// at once the first connection stored wins and the other is closed.
func (p *Pool) Conn(ctx context.Context) (Conn, error) {
	worker := WorkerFrom(ctx)
	if wc := p.cached(worker); wc != nil {
		return wc, nil
	}

	c, err := p.service.Dial(ctx)
	if err != nil {
		return nil, err
	}
	wc := &workerConn{Conn: c, loaded: make(map[string]bool)}

	p.mu.Lock()
	if v, ok := p.conns.Get(worker); ok {
		p.conns.SetDefault(worker, v)
		p.mu.Unlock()
		if err := c.Close(); err != nil {
			p.logger.Debug("closing redundant compute connection", "worker", worker, "error", err)
		}
		return v.(*workerConn), nil
	}
	p.conns.SetDefault(worker, wc)
	p.mu.Unlock()

	p.logger.Debug("compute connection opened", "worker", worker, "service", p.service.Name())
	return wc, nil
}

func (p *Pool) cached(worker string) *workerConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.conns.Get(worker)
	if !ok {
		return nil
	}
	p.conns.SetDefault(worker, v)
	return v.(*workerConn)
}

// Release closes and forgets the connection of one worker.
func (p *Pool) Release(worker string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns.Delete(worker)
}

// Workers returns how many workers hold a connection.
func (p *Pool) Workers() int {
	return p.conns.ItemCount()
}

// Close closes every connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for worker := range p.conns.Items() {
		p.conns.Delete(worker)
	}
}

// workerConn remembers which libraries were already loaded on the
// connection so repeated checks do not hit the service.
type workerConn struct {
	Conn
	mu     sync.Mutex
	loaded map[string]bool
}

func (c *workerConn) LoadLibrary(ctx context.Context, name, requester string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded[name] {
		return nil
	}
	if err := c.Conn.LoadLibrary(ctx, name, requester); err != nil {
		return err
	}
	c.loaded[name] = true
	return nil
}
