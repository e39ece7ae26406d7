package workflow

import (
	"sort"
	"sync"
	"time"
)

// runTracker records the conversations with an analysis in flight, for the
// workflow status endpoint.
type runTracker struct {
	mu     sync.Mutex
	active map[string]time.Time
}

func newRunTracker() *runTracker {
	return &runTracker{active: make(map[string]time.Time)}
}

// begin marks a conversation active and returns the matching done func.
func (r *runTracker) begin(conversationID string) func() {
	r.mu.Lock()
	r.active[conversationID] = time.Now().UTC()
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.active, conversationID)
		r.mu.Unlock()
	}
}

func (r *runTracker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *runTracker) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
