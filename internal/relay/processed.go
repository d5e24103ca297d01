package relay

import "sync"

// processedSet remembers recently handled relay message IDs with a bounded
// FIFO eviction, giving at-least-once delivery effective once semantics.
type processedSet struct {
	mu    sync.Mutex
	max   int
	order []string
	seen  map[string]bool
}

func newProcessedSet(max int) *processedSet {
	if max <= 0 {
		max = 5000
	}
	return &processedSet{
		max:  max,
		seen: make(map[string]bool, max),
	}
}

// Seen reports whether id was already marked.
func (p *processedSet) Seen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[id]
}

// Mark records id, evicting the oldest entry when full.
func (p *processedSet) Mark(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[id] {
		return
	}
	if len(p.order) >= p.max {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.seen, oldest)
	}
	p.order = append(p.order, id)
	p.seen[id] = true
}
