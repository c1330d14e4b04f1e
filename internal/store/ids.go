package store

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator assigns the id of a record that arrives without one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default. Its ids sort by creation time, which keeps
// the id tie-break of equal created_at values close to insertion order.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of ids so stored records can be
// compared field by field. It is safe to share between goroutines.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator returns a generator yielding ids in the given order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. Running out panics: a store that created
// more records than the caller listed has a bug worth surfacing.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("store: fixed id list exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
