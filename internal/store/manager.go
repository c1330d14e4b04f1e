package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/NSSimpleApps/TestToDoList/internal/migrate"
	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/telemetry"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// errClosed is the init error of a manager closed before its store loaded.
var errClosed = errors.New("store manager closed")

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		if g != nil {
			m.ids = g
		}
	}
}

// WithNow replaces the wall clock used for CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics records task outcomes of the manager's queue.
func WithMetrics(metrics *telemetry.TaskMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager serializes all access to one store file.
//
// Thread-safety model:
//   - all methods are safe from any goroutine
//   - operations run one at a time, in call order, on the manager's queue
//   - completions run on the queue goroutine, or on the goroutine that
//     cancelled the task; they must not block on another operation of the
//     same manager
type Manager struct {
	path    string
	config  schema.Configuration
	model   schema.Model
	logger  *slog.Logger
	ids     IDGenerator
	now     func() time.Time
	metrics *telemetry.TaskMetrics
	queue   *task.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	db      *sql.DB
	lock    *flock.Flock
	initErr error
	closed  bool
}

// Open creates a manager for the store at path and immediately submits the
// task that loads it. Open never fails; load errors surface through Ready
// and through every operation.
func Open(path string, cfg schema.Configuration, opts ...Option) *Manager {
	m := &Manager{
		path:   path,
		config: cfg,
		model:  cfg.CurrentModel(),
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("store", cfg.StorageName())
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.queue = task.NewQueue("store", task.WithLogger(m.logger), task.WithMetrics(m.metrics))

	m.queue.Submit(m.initTask())
	return m
}

// Path returns the store file path.
func (m *Manager) Path() string {
	return m.path
}

// initTask loads the store off the queue goroutine and keeps the queue's
// slot until loading is done.
func (m *Manager) initTask() *task.Task[struct{}] {
	return task.New("store.init", func(t *task.Task[struct{}]) (task.Outcome[struct{}], error) {
		go func() {
			err := m.load()
			if err != nil {
				m.logger.Error("store load failed", "path", m.path, "error", err)
				t.Fail(err)
				return
			}
			m.logger.Info("store loaded", "path", m.path, "version", m.model.Version)
			t.Succeed(struct{}{})
		}()
		return task.Suspended[struct{}](), nil
	}, nil)
}

func (m *Manager) load() error {
	db, lock, err := m.openStore()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil && m.closed {
		db.Close()
		_ = lock.Unlock()
		err = todoerr.StoreIO("load store", errClosed)
	}
	if err != nil {
		m.initErr = err
		return err
	}
	m.db = db
	m.lock = lock
	return nil
}

func (m *Manager) openStore() (*sql.DB, *flock.Flock, error) {
	ctx := m.ctx

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, nil, todoerr.StoreIO("create store directory", err)
	}

	lock := flock.New(m.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, todoerr.StoreIO("acquire store lock", err)
	}
	if !ok {
		return nil, nil, todoerr.StoreIO("acquire store lock",
			fmt.Errorf("store %s is in use by another process", m.path))
	}

	release := func(err error) (*sql.DB, *flock.Flock, error) {
		_ = lock.Unlock()
		return nil, nil, err
	}

	migrator := &migrate.Migrator{Config: m.config, Logger: m.logger}
	report, err := migrator.Run(ctx, m.path)
	if err != nil {
		return release(err)
	}

	db, err := openDB(ctx, m.path)
	if err != nil {
		return release(todoerr.StoreIO("open store", err))
	}

	if report.Plan.Action == migrate.ActionCreate || report.Recreated {
		if err := createSchema(ctx, db, m.model); err != nil {
			db.Close()
			return release(todoerr.StoreIO("create schema", err))
		}
		m.logger.Info("store created", "version", m.model.Version, "recreated", report.Recreated)
	}
	return db, lock, nil
}

// handle returns the open database, or the init error.
func (m *Manager) handle() (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.initErr != nil:
		return nil, m.initErr
	case m.db == nil:
		return nil, todoerr.StoreIO("access store", errors.New("store is not loaded"))
	default:
		return m.db, nil
	}
}

// Ready blocks until the store finished loading or ctx ends, and returns
// the load error, if any.
func (m *Manager) Ready(ctx context.Context) error {
	t := task.New("store.ready", func(*task.Task[struct{}]) (task.Outcome[struct{}], error) {
		if _, err := m.handle(); err != nil {
			return task.Outcome[struct{}]{}, err
		}
		return task.Immediate(struct{}{}), nil
	}, nil)
	m.queue.Submit(t)
	_, err := task.Wait(ctx, t)
	return err
}

// CancelPending cancels the executing operation and every queued one.
func (m *Manager) CancelPending() {
	m.queue.CancelAll()
}

// Close cancels outstanding operations, closes the database and releases
// the store lock. It must not be called from a completion of this manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.queue.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			errs = append(errs, err)
		}
		m.db = nil
	}
	if m.lock != nil {
		if err := m.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
		m.lock = nil
	}
	if m.initErr == nil {
		m.initErr = todoerr.StoreIO("access store", errClosed)
	}
	return errors.Join(errs...)
}
