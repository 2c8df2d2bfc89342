package orchestrator

import (
	"maps"
	"slices"
	"sort"
	"sync"
)

// Registry maps provider names to providers. Writers swap whole maps so a
// reader always sees a complete generation.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry 创建注册表并预先注册给定的提供者
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Add(p)
	}
	return r
}

// Add inserts or replaces p by name and returns r for chaining. nil is ignored.
func (r *Registry) Add(p Provider) *Registry {
	if p == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := maps.Clone(r.providers)
	if next == nil {
		next = make(map[string]Provider, 1)
	}
	next[p.Name()] = p
	r.providers = next
	return r
}

// Get looks up a provider by name; ok is false when absent.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns every provider, or only those declaring one of kinds, sorted by name.
func (r *Registry) List(kinds ...Kind) []Provider {
	r.mu.RLock()
	snapshot := r.providers
	r.mu.RUnlock()

	out := make([]Provider, 0, len(snapshot))
	for _, p := range snapshot {
		if len(kinds) == 0 || slices.ContainsFunc(kinds, func(k Kind) bool { return HasKind(p, k) }) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Collect(maps.Keys(r.providers))
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = make(map[string]Provider)
}

// Replace installs exactly the given providers in one step. Later duplicates win.
func (r *Registry) Replace(providers ...Provider) {
	next := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p != nil {
			next[p.Name()] = p
		}
	}
	r.mu.Lock()
	r.providers = next
	r.mu.Unlock()
}

// Stats counts providers per declared kind.
func (r *Registry) Stats() map[Kind]int {
	r.mu.RLock()
	snapshot := r.providers
	r.mu.RUnlock()

	stats := make(map[Kind]int, len(AllKinds))
	for _, p := range snapshot {
		for _, k := range p.Kinds() {
			stats[k]++
		}
	}
	return stats
}

// snapshot returns the current generation. The map must not be mutated.
func (r *Registry) snapshot() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers
}
