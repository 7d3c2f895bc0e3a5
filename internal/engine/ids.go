package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator names each ping lifecycle so its log lines can be joined.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues UUIDv7 strings. They sort by activation time.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of ids in order. It panics once
// the list runs out, which catches a test that opened more pings than it
// planned for.
type FixedGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next == len(g.ids) {
		panic(fmt.Sprintf("FixedGenerator: only %d ids configured", len(g.ids)))
	}
	id := g.ids[g.next]
	g.next++
	return id
}
