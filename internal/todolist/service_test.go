package todolist

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NSSimpleApps/TestToDoList/internal/filter"
	"github.com/NSSimpleApps/TestToDoList/internal/prefs"
	"github.com/NSSimpleApps/TestToDoList/internal/remote"
	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/testutil"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

var now = time.Date(2025, 5, 27, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu    sync.Mutex
	items []remote.Item
	err   error
	calls int
	block chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]remote.Item, error) {
	f.mu.Lock()
	f.calls++
	items, err, block := f.items, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, todoerr.Wrap(todoerr.KindCancelled, todoerr.CodeCancelled, "Request explicitly cancelled.", ctx.Err())
		}
	}
	return items, err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	svc     *Service
	store   *store.Manager
	fetcher *fakeFetcher
	flags   *prefs.File
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg, err := schema.ToDo()
	require.NoError(t, err)

	path := testutil.StorePath(t)
	st := store.Open(path, cfg)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Ready(context.Background()))

	fetcher := &fakeFetcher{items: []remote.Item{
		{Title: "Buy milk"},
		{Title: "Café with Ana", Completed: true},
		{Title: "Read a book"},
	}}
	flags := prefs.Open(filepath.Join(filepath.Dir(path), "prefs.yaml"))

	svc := New(st, fetcher, flags, append([]Option{WithNow(func() time.Time { return now })}, opts...)...)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, store: st, fetcher: fetcher, flags: flags}
}

func wait[T any](t *testing.T, tk *task.Task[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx, tk)
}

func titles(records []store.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Title)
	}
	return out
}

func TestGetItems_FirstLoadFetchesAndSaves(t *testing.T) {
	f := newFixture(t)

	got, err := wait(t, f.svc.GetItems(false, "", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Buy milk", "Café with Ana", "Read a book"}, titles(got))
	assert.Equal(t, now, got[0].CreatedAt)
	assert.Equal(t, now.Add(-24*time.Hour), got[2].CreatedAt)
	for _, r := range got {
		assert.NotEmpty(t, r.ID)
		assert.Nil(t, r.Description)
	}

	saved, err := f.flags.Bool(context.Background(), prefs.KeyToDoListSaved)
	require.NoError(t, err)
	assert.True(t, saved)

	stored, err := wait(t, f.store.Query(nil, filter.OrderUnspecified, nil))
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestGetItems_CachedLoadReadsStore(t *testing.T) {
	f := newFixture(t)

	_, err := wait(t, f.svc.GetItems(false, "", nil))
	require.NoError(t, err)
	_, err = wait(t, f.svc.Create("Newest", nil, false, nil))
	require.NoError(t, err)

	got, err := wait(t, f.svc.GetItems(false, "", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.Calls(), "cache hit does not fetch")
	require.Len(t, got, 4)
	assert.Equal(t, "Buy milk", got[1].Title, "ordered newest first")
}

func TestGetItems_SearchIsCaseAndDiacriticInsensitive(t *testing.T) {
	f := newFixture(t)

	fetched, err := wait(t, f.svc.GetItems(true, "CAFE", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Café with Ana"}, titles(fetched))

	cached, err := wait(t, f.svc.GetItems(false, "cafe", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Café with Ana"}, titles(cached))
}

func TestGetItems_IgnoreCacheReplacesStore(t *testing.T) {
	f := newFixture(t)

	_, err := wait(t, f.svc.GetItems(false, "", nil))
	require.NoError(t, err)
	_, err = wait(t, f.svc.Create("Local only", nil, false, nil))
	require.NoError(t, err)

	f.fetcher.mu.Lock()
	f.fetcher.items = []remote.Item{{Title: "Fresh"}}
	f.fetcher.mu.Unlock()

	got, err := wait(t, f.svc.GetItems(true, "", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresh"}, titles(got))

	stored, err := wait(t, f.store.Query(nil, filter.OrderUnspecified, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresh"}, titles(stored))
}

func TestGetItems_FetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = todoerr.New(todoerr.KindTransport, 503, "Invalid status code.")

	results := make(chan *task.Result[[]store.Record], 1)
	f.svc.GetItems(false, "", func(res *task.Result[[]store.Record]) { results <- res })

	got := <-results
	require.NotNil(t, got)
	assert.True(t, todoerr.Is(got.Err, todoerr.KindTransport))

	saved, err := f.flags.Bool(context.Background(), prefs.KeyToDoListSaved)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestGetItems_CancelledFetchCompletesWithNil(t *testing.T) {
	f := newFixture(t)
	f.fetcher.block = make(chan struct{})

	results := make(chan *task.Result[[]store.Record], 1)
	tk := f.svc.GetItems(true, "", func(res *task.Result[[]store.Record]) { results <- res })

	require.Eventually(t, func() bool { return f.fetcher.Calls() == 1 }, time.Second, time.Millisecond)
	tk.Cancel()

	assert.Nil(t, <-results)
	assert.True(t, tk.IsCancelled())
}

func TestGetItems_RemoteCancellationIsSuppressed(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = todoerr.Cancelled("Request explicitly cancelled.")

	results := make(chan *task.Result[[]store.Record], 1)
	tk := f.svc.GetItems(true, "", func(res *task.Result[[]store.Record]) { results <- res })
	<-tk.Done()

	assert.Nil(t, <-results)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)

	created, err := wait(t, f.svc.Create("Draft", nil, false, nil))
	require.NoError(t, err)

	desc := "details"
	updated, err := wait(t, f.svc.Update(created.ID, "Final", &desc, true, nil))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, &desc, updated.Description)
	assert.True(t, updated.Completed)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = wait(t, f.svc.Update("missing", "x", nil, false, nil))
	require.Error(t, err)
	assert.True(t, todoerr.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	created, err := wait(t, f.svc.Create("Gone soon", nil, false, nil))
	require.NoError(t, err)

	n, err := wait(t, f.svc.Delete(created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = wait(t, f.svc.Delete(created.ID, nil))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreate_RejectsBlankTitle(t *testing.T) {
	f := newFixture(t)

	_, err := wait(t, f.svc.Create("  ", nil, false, nil))
	require.Error(t, err)
	assert.True(t, todoerr.Is(err, todoerr.KindInvalid))
}

func TestSearch_Debounces(t *testing.T) {
	clock := testutil.NewFakeClock(now)
	f := newFixture(t, WithClock(clock), WithSearchDelay(300*time.Millisecond))

	_, err := wait(t, f.svc.GetItems(false, "", nil))
	require.NoError(t, err)

	results := make(chan *task.Result[[]store.Record], 4)
	collect := func(res *task.Result[[]store.Record]) { results <- res }

	f.svc.Search("bu", collect)
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	clock.Advance(100 * time.Millisecond)

	f.svc.Search("book", collect)
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	clock.Advance(300 * time.Millisecond)

	var res *task.Result[[]store.Record]
	select {
	case res = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("search never completed")
	}
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Read a book"}, titles(res.Value))
	assert.Empty(t, results, "the superseded search never runs")
}

func TestSpreadSeeder(t *testing.T) {
	items := []remote.Item{{Title: "a"}, {Title: "b", Completed: true}, {Title: "c"}, {Title: "d"}, {Title: "e"}}

	records := DefaultSeeder().Seed(items, now)
	require.Len(t, records, 5)
	assert.Equal(t, now, records[0].CreatedAt)
	assert.Equal(t, now.Add(-6*time.Hour), records[1].CreatedAt)
	assert.Equal(t, now.Add(-24*time.Hour), records[4].CreatedAt)
	assert.True(t, records[1].Completed)
	for _, r := range records {
		assert.Empty(t, r.ID)
	}

	single := DefaultSeeder().Seed(items[:1], now)
	assert.Equal(t, now, single[0].CreatedAt)
	assert.Empty(t, DefaultSeeder().Seed(nil, now))
}

func TestDescriptionCoinFlip(t *testing.T) {
	seeder := SpreadSeeder{Window: time.Hour, Description: DescriptionCoinFlip(rand.New(rand.NewPCG(1, 2)))}

	items := make([]remote.Item, 64)
	for i := range items {
		items[i] = remote.Item{Title: "t"}
	}

	var with, without int
	for _, r := range seeder.Seed(items, now) {
		if r.Description == nil {
			without++
			continue
		}
		with++
		assert.Equal(t, r.Title, *r.Description)
	}
	assert.Positive(t, with)
	assert.Positive(t, without)
}

func TestService_CloseCancelsQueued(t *testing.T) {
	f := newFixture(t)
	f.fetcher.block = make(chan struct{})

	first := f.svc.GetItems(true, "", nil)
	second := f.svc.Create("queued", nil, false, nil)
	f.svc.Close()

	<-first.Done()
	<-second.Done()
	assert.True(t, first.IsCancelled())
	assert.True(t, second.IsCancelled())
	assert.NoError(t, first.Err(), "a cancelled task carries no error")
}
