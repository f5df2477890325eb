package store

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Store used for dry runs.
type Memory struct {
	mu        sync.RWMutex
	groups    map[string]map[string]string
	published []Message
	commits   int
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{groups: make(map[string]map[string]string)}
}

// Put writes a field directly, outside any batch.
func (m *Memory) Put(group, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(group, field, value)
}

func (m *Memory) put(group, field, value string) {
	g, ok := m.groups[group]
	if !ok {
		g = make(map[string]string)
		m.groups[group] = g
	}
	g[field] = value
}

func (m *Memory) Get(_ context.Context, group, field, def string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v := m.groups[group][field]; v != "" {
		return v
	}
	return def
}

// Published returns every notification committed so far.
func (m *Memory) Published() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.published...)
}

// Commits returns the number of committed batches.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

func (m *Memory) Begin(context.Context) Batch {
	return &memoryBatch{store: m}
}

type op struct {
	notify              bool
	group, field, value string
}

type memoryBatch struct {
	store *Memory
	ops   []op
	done  bool
}

func (b *memoryBatch) Set(group, field, value string) {
	b.ops = append(b.ops, op{group: group, field: field, value: value})
}

func (b *memoryBatch) Notify(group, field string) {
	b.ops = append(b.ops, op{notify: true, group: group, field: field})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit() error {
	if b.done {
		return errors.New("batch already finished")
	}
	b.done = true

	m := b.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range b.ops {
		if o.notify {
			m.published = append(m.published, Message{Channel: o.group, Payload: o.field})
			continue
		}
		m.put(o.group, o.field, o.value)
	}
	m.commits++
	return nil
}

func (b *memoryBatch) Discard() {
	b.done = true
	b.ops = nil
}
