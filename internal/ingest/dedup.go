package ingest

import "sync"

// registry reserves in-flight dedup keys so two workers in the same run
// cannot both process one email. Reservations are released on failure,
// which keeps a retried batch eligible, and after commit, which keeps
// the registry bounded; committed keys are covered by the store.
type registry struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newRegistry() *registry {
	return &registry{keys: make(map[string]struct{})}
}

func (r *registry) reserve(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.keys[key]; taken {
		return false
	}
	r.keys[key] = struct{}{}
	return true
}

func (r *registry) release(key string) {
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
}
