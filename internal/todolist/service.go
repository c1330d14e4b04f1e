package todolist

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/NSSimpleApps/TestToDoList/internal/debounce"
	"github.com/NSSimpleApps/TestToDoList/internal/filter"
	"github.com/NSSimpleApps/TestToDoList/internal/prefs"
	"github.com/NSSimpleApps/TestToDoList/internal/remote"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/telemetry"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// Store is the part of store.Manager the service uses.
type Store interface {
	Query(pred filter.Predicate, order filter.Order, completion func(*task.Result[[]store.Record])) *task.Task[[]store.Record]
	Save(records []store.Record, completion func(*task.Result[[]store.Record])) *task.Task[[]store.Record]
	Delete(pred filter.Predicate, completion func(*task.Result[int])) *task.Task[int]
	Update(pred filter.Predicate, mutate func(*store.Record), completion func(*task.Result[store.Record])) *task.Task[store.Record]
	Create(configure func(*store.Record), completion func(*task.Result[store.Record])) *task.Task[store.Record]
}

// Fetcher downloads the remote list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]remote.Item, error)
}

// Flags persists the cache-freshness flag.
type Flags interface {
	Bool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSeeder replaces DefaultSeeder.
func WithSeeder(seeder Seeder) Option {
	return func(s *Service) {
		if seeder != nil {
			s.seeder = seeder
		}
	}
}

// WithNow replaces the wall clock used to seed fetched items.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSearchDelay sets the debounce delay of Search.
func WithSearchDelay(d time.Duration) Option {
	return func(s *Service) {
		s.searchDelay = d
	}
}

// WithClock replaces the timer source of the search debouncer.
func WithClock(c debounce.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithMetrics records task outcomes of the service queue.
func WithMetrics(metrics *telemetry.TaskMetrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// Service is the to-do list interactor.
type Service struct {
	store       Store
	remote      Fetcher
	flags       Flags
	seeder      Seeder
	logger      *slog.Logger
	now         func() time.Time
	metrics     *telemetry.TaskMetrics
	clock       debounce.Clock
	searchDelay time.Duration

	queue    *task.Queue
	debounce *debounce.Debouncer
	ctx      context.Context
	cancel   context.CancelFunc

	searchMu   sync.Mutex
	lastSearch *task.Task[[]store.Record]
}

// New creates a service. It does not own st, rm or flags; Close leaves them
// open.
func New(st Store, rm Fetcher, flags Flags, opts ...Option) *Service {
	s := &Service{
		store:  st,
		remote: rm,
		flags:  flags,
		seeder: DefaultSeeder(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.queue = task.NewQueue("todolist", task.WithLogger(s.logger), task.WithMetrics(s.metrics))

	debounceOpts := []debounce.Option{debounce.WithLogger(s.logger)}
	if s.clock != nil {
		debounceOpts = append(debounceOpts, debounce.WithClock(s.clock))
	}
	s.debounce = debounce.New(debounceOpts...)
	return s
}

// GetItems returns the list. With ignoreCache, or when the list was never
// saved, it fetches the remote list, replaces the store contents with it and
// filters it in memory; otherwise it queries the store newest first. A blank
// search term returns everything.
func (s *Service) GetItems(ignoreCache bool, search string, completion func(*task.Result[[]store.Record])) *task.Task[[]store.Record] {
	return submit(s, "todolist.get_items", completion, func(ctx context.Context) ([]store.Record, error) {
		if !ignoreCache {
			saved, err := s.flags.Bool(ctx, prefs.KeyToDoListSaved)
			if err != nil {
				s.logger.Warn("cache flag unreadable, refetching", "error", err)
			}
			if saved {
				return await(ctx, s.store.Query(filter.Search(search), filter.OrderCreatedAtDesc, nil))
			}
		}
		return s.refresh(ctx, search)
	})
}

func (s *Service) refresh(ctx context.Context, search string) ([]store.Record, error) {
	items, err := s.remote.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	seeded := s.seeder.Seed(items, s.now())
	saved, err := await(ctx, s.store.Save(seeded, nil))
	if err != nil {
		if todoerr.IsCancelled(err) {
			return nil, err
		}
		// The fetched list is still shown; the next load fetches again.
		s.logger.Error("save fetched list failed", "count", len(seeded), "error", err)
		saved = seeded
	} else if err := s.flags.SetBool(ctx, prefs.KeyToDoListSaved, true); err != nil {
		s.logger.Warn("cache flag not persisted", "error", err)
	}

	pred := filter.Search(search)
	out := make([]store.Record, 0, len(saved))
	for _, r := range saved {
		if filter.Match(pred, r) {
			out = append(out, r)
		}
	}
	s.logger.Info("list refreshed", "fetched", len(items), "matched", len(out))
	return out, nil
}

// Search runs GetItems from the cache once term has been stable for the
// search delay. A newer search cancels the pending or running older one.
func (s *Service) Search(term string, completion func(*task.Result[[]store.Record])) {
	term = strings.TrimSpace(term)
	s.debounce.Schedule(s.searchDelay, func() {
		s.searchMu.Lock()
		defer s.searchMu.Unlock()
		if s.lastSearch != nil {
			s.lastSearch.Cancel()
		}
		s.lastSearch = s.GetItems(false, term, completion)
	})
}

// Delete removes the record with id. Deleting a missing record succeeds.
func (s *Service) Delete(id string, completion func(*task.Result[int])) *task.Task[int] {
	return submit(s, "todolist.delete", completion, func(ctx context.Context) (int, error) {
		return await(ctx, s.store.Delete(filter.ByID(id), nil))
	})
}

// Update replaces title, description and completion of the record with id.
// A missing record fails with a not-found error.
func (s *Service) Update(id, title string, description *string, completed bool, completion func(*task.Result[store.Record])) *task.Task[store.Record] {
	return submit(s, "todolist.update", completion, func(ctx context.Context) (store.Record, error) {
		return await(ctx, s.store.Update(filter.ByID(id), func(r *store.Record) {
			r.Title = title
			r.Description = description
			r.Completed = completed
		}, nil))
	})
}

// Create adds a record created now.
func (s *Service) Create(title string, description *string, completed bool, completion func(*task.Result[store.Record])) *task.Task[store.Record] {
	return submit(s, "todolist.create", completion, func(ctx context.Context) (store.Record, error) {
		return await(ctx, s.store.Create(func(r *store.Record) {
			r.Title = title
			r.Description = description
			r.Completed = completed
		}, nil))
	})
}

// Close cancels pending searches and operations.
func (s *Service) Close() {
	s.debounce.Close()
	s.cancel()
	s.queue.Close()
}

// submit runs fn off the queue goroutine while the task holds the queue's
// slot. The context passed to fn ends when the task is cancelled.
func submit[T any](s *Service, name string, completion func(*task.Result[T]), fn func(ctx context.Context) (T, error)) *task.Task[T] {
	t := task.New(name, func(t *task.Task[T]) (task.Outcome[T], error) {
		ctx, cancel := context.WithCancel(s.ctx)
		go func() {
			<-t.Done()
			cancel()
		}()
		go func() {
			v, err := fn(ctx)
			switch {
			case err == nil:
				t.Succeed(v)
			case todoerr.IsCancelled(err) || ctx.Err() != nil:
				t.Cancel()
			default:
				t.Fail(err)
			}
		}()
		return task.Suspended[T](), nil
	}, completion)

	s.queue.Submit(t)
	return t
}

// await waits for a store task and cancels it when ctx ends first.
func await[T any](ctx context.Context, t *task.Task[T]) (T, error) {
	v, err := task.Wait(ctx, t)
	if ctx.Err() != nil {
		t.Cancel()
		return v, todoerr.Wrap(todoerr.KindCancelled, todoerr.CodeCancelled, "operation cancelled", ctx.Err())
	}
	return v, err
}
