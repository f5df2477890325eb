package api

import (
	"context"
	"sync"

	"github.com/ukydev/route-simulator/internal/telemetry"
)

// Board keeps the most recent frame for the status endpoint. It is a
// telemetry.Publisher so the simulation pushes into it like any other sink.
type Board struct {
	mu     sync.RWMutex
	latest telemetry.Frame
	seen   bool
}

func (b *Board) Publish(_ context.Context, f telemetry.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = f
	b.seen = true
	return nil
}

// Latest returns the last published frame, if any.
func (b *Board) Latest() (telemetry.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.seen
}
