package correlate

import (
	"slices"
	"sync"
)

// Tracker remembers, per sprite, the last non-empty list of correlated live
// ids. It lives for one session and is never persisted.
type Tracker struct {
	mu      sync.Mutex
	changed map[string][]string
}

// NewSession returns an empty tracker.
func NewSession() *Tracker {
	return &Tracker{changed: make(map[string][]string)}
}

// Get returns a copy of the cached ids for sprite.
func (t *Tracker) Get(sprite string) ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, ok := t.changed[sprite]
	return slices.Clone(ids), ok
}

// Put overwrites the cached ids for sprite. Empty lists are ignored.
func (t *Tracker) Put(sprite string, ids []string) {
	if len(ids) == 0 {
		return
	}
	t.mu.Lock()
	t.changed[sprite] = slices.Clone(ids)
	t.mu.Unlock()
}

// Resolve applies the cache policy to a fresh correlation: a non-empty list
// replaces the cache entry and is returned as is, an empty one falls back to
// the cached list. Nil means nothing changed and nothing is cached.
func (t *Tracker) Resolve(sprite string, ids []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(ids) > 0 {
		t.changed[sprite] = slices.Clone(ids)
		return ids
	}
	cached := t.changed[sprite]
	if len(cached) == 0 {
		return nil
	}
	return slices.Clone(cached)
}

// Forget drops the entry for sprite.
func (t *Tracker) Forget(sprite string) {
	t.mu.Lock()
	delete(t.changed, sprite)
	t.mu.Unlock()
}

// Sprites lists the sprites with cached ids, sorted.
func (t *Tracker) Sprites() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.changed))
	for k := range t.changed {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
