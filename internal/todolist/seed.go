package todolist

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/NSSimpleApps/TestToDoList/internal/remote"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
)

// Seeder turns fetched items into records ready to be saved.
type Seeder interface {
	Seed(items []remote.Item, now time.Time) []store.Record
}

// DescriptionPolicy picks the description of a seeded record.
type DescriptionPolicy func(item remote.Item) *string

// DescriptionNone leaves every description empty.
func DescriptionNone(remote.Item) *string { return nil }

// DescriptionCoinFlip copies the title into the description for roughly half
// of the items, as the bundled sample data does.
func DescriptionCoinFlip(r *rand.Rand) DescriptionPolicy {
	var mu sync.Mutex
	return func(item remote.Item) *string {
		mu.Lock()
		heads := r.IntN(2) == 0
		mu.Unlock()
		if !heads {
			return nil
		}
		d := item.Title
		return &d
	}
}

// SpreadSeeder spreads creation times evenly over the Window before now, the
// first item being the newest. Ids are left empty for the store to assign.
type SpreadSeeder struct {
	Window      time.Duration
	Description DescriptionPolicy
}

// DefaultSeeder spreads items over the past day without descriptions.
func DefaultSeeder() SpreadSeeder {
	return SpreadSeeder{Window: 24 * time.Hour, Description: DescriptionNone}
}

// Seed implements Seeder.
func (s SpreadSeeder) Seed(items []remote.Item, now time.Time) []store.Record {
	describe := s.Description
	if describe == nil {
		describe = DescriptionNone
	}

	times := spread(len(items), now, s.Window)
	records := make([]store.Record, 0, len(items))
	for i, item := range items {
		records = append(records, store.Record{
			Title:       item.Title,
			Description: describe(item),
			Completed:   item.Completed,
			CreatedAt:   times[i],
		})
	}
	return records
}

// spread returns count timestamps from now back to now-window separated by
// count-1 equal intervals.
func spread(count int, now time.Time, window time.Duration) []time.Time {
	switch count {
	case 0:
		return nil
	case 1:
		return []time.Time{now}
	}
	step := window / time.Duration(count-1)
	out := make([]time.Time, count)
	for i := range out {
		out[i] = now.Add(-time.Duration(i) * step)
	}
	return out
}
