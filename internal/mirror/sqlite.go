package mirror

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/clusteval/internal/object"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on objects(repository, kind)
const currentSchemaVersion = 1

// ErrClosed is returned when writing to a closed mirror.
var ErrClosed = errors.New("mirror: closed")

// SQLite mirrors registration state into a SQLite database.
type SQLite struct {
	db     *sql.DB
	queue  *opQueue
	tracer trace.Tracer
	logger *slog.Logger
	failed atomic.Int64

	mu      sync.Mutex
	applied int64
	stopped bool
	waiters []waiter

	done chan struct{}
	once sync.Once
}

type waiter struct {
	seq int64
	ch  chan struct{}
}

// Option configures a SQLite mirror.
type Option func(*SQLite)

// WithTracer sets the tracer used for write spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *SQLite) { m.tracer = t }
}

// WithLogger sets the logger used to report write failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *SQLite) { m.logger = l }
}

// Open creates or opens a SQLite mirror at the given path and starts its
// writer goroutine.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Reopening an existing file resumes the journal seq after its last entry.
func Open(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var last sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM transitions").Scan(&last); err != nil {
		db.Close()
		return nil, fmt.Errorf("read journal position: %w", err)
	}

	m := &SQLite{
		db:     db,
		queue:  newOpQueue(last.Int64),
		tracer: otel.Tracer("github.com/roach88/clusteval/internal/mirror"),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	m.applied = last.Int64
	for _, opt := range opts {
		opt(m)
	}

	go m.run()
	return m, nil
}

// DB returns the underlying sql.DB for direct queries.
func (m *SQLite) DB() *sql.DB {
	return m.db
}

// Failed returns the number of writes that could not be applied.
func (m *SQLite) Failed() int64 {
	return m.failed.Load()
}

// Register records obj as registered. update marks the replacement of an
// object already shadowed at the same path.
func (m *SQLite) Register(_ context.Context, obj object.Object, update bool) error {
	kind := opRegister
	if update {
		kind = opUpdate
	}
	return m.enqueue(objectOp(kind, obj))
}

// Unregister records the removal of obj.
func (m *SQLite) Unregister(_ context.Context, obj object.Object) error {
	return m.enqueue(objectOp(opUnregister, obj))
}

// RegisterClass records class as registered in repository.
func (m *SQLite) RegisterClass(_ context.Context, repository string, class *object.Class) error {
	return m.enqueue(classOp(opRegisterClass, repository, class))
}

// UnregisterClass records the removal of class from repository.
func (m *SQLite) UnregisterClass(_ context.Context, repository string, class *object.Class) error {
	return m.enqueue(classOp(opUnregisterClass, repository, class))
}

func (m *SQLite) enqueue(o op) error {
	if _, ok := m.queue.Enqueue(o); !ok {
		return ErrClosed
	}
	return nil
}

// Flush blocks until every write enqueued before the call has been applied
// or ctx is done.
func (m *SQLite) Flush(ctx context.Context) error {
	target := m.queue.Last()

	m.mu.Lock()
	if m.applied >= target || m.stopped {
		m.mu.Unlock()
		return nil
	}
	w := waiter{seq: target, ch: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush mirror: %w", ctx.Err())
	}
}

// advance marks seq as applied and releases the waiters it satisfies.
func (m *SQLite) advance(seq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applied = seq
	kept := m.waiters[:0]
	for _, w := range m.waiters {
		if w.seq <= seq {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	m.waiters = kept
}

func (m *SQLite) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	for _, w := range m.waiters {
		close(w.ch)
	}
	m.waiters = nil
}

// Close stops accepting writes, drains the queue and closes the database.
func (m *SQLite) Close() error {
	var err error
	m.once.Do(func() {
		m.queue.Close()
		<-m.done
		err = m.db.Close()
	})
	return err
}

func (m *SQLite) run() {
	defer close(m.done)
	defer m.stop()
	for {
		o, ok := m.queue.Dequeue()
		if !ok {
			return
		}
		if err := m.apply(o); err != nil {
			m.failed.Add(1)
			m.logger.Error("mirror write failed",
				"op", string(o.kind),
				"repository", o.repository,
				"subject", o.subject,
				"seq", o.seq,
				"error", err)
		}
		m.advance(o.seq)
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(repository, kind)`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
