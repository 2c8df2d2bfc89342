package memory

import (
	"context"
	"sync"
	"time"

	"beatrice-server-go/internal/domain/orchestrator"
)

type item struct {
	value     any
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// InMemory 进程内记忆，带 TTL 与后台过期清理
type InMemory struct {
	orchestrator.Descriptor
	mu       sync.RWMutex
	items    map[string]item
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewInMemory starts a GC loop at extra "gc_interval" (default 5m); call Close to stop it.
func NewInMemory(cfg orchestrator.ProviderConfig) *InMemory {
	interval, err := time.ParseDuration(cfg.String("gc_interval", "5m"))
	if err != nil || interval <= 0 {
		interval = 5 * time.Minute
	}
	m := &InMemory{
		Descriptor: orchestrator.NewDescriptor("in-memory", true, memoryOps),
		items:      make(map[string]item),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go m.gcLoop(interval)
	return m
}

func (m *InMemory) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanupExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *InMemory) Note(_ context.Context, in orchestrator.MemoryNoteIn) (*orchestrator.MemoryNoteOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	it := item{value: in.Value}
	if in.TTLSec > 0 {
		it.expiresAt = m.now().Add(time.Duration(in.TTLSec) * time.Second)
	}
	m.mu.Lock()
	m.items[orchestrator.StoreKey(in.Scope, in.Key)] = it
	m.mu.Unlock()
	return &orchestrator.MemoryNoteOut{OK: true}, nil
}

func (m *InMemory) Read(_ context.Context, in orchestrator.MemoryReadIn) (*orchestrator.MemoryReadOut, error) {
	if err := checkKey(in.Scope, in.Key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	it, ok := m.items[orchestrator.StoreKey(in.Scope, in.Key)]
	m.mu.RUnlock()
	if !ok || it.expired(m.now()) {
		return &orchestrator.MemoryReadOut{Found: false}, nil
	}
	return &orchestrator.MemoryReadOut{Value: it.value, Found: true}, nil
}

// CleanupExpired drops expired entries and returns how many were removed.
func (m *InMemory) CleanupExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, it := range m.items {
		if it.expired(now) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the GC loop.
func (m *InMemory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}
