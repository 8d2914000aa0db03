package server

import "sync"

// clientRegistry maps a connected client's static public key to its
// connection state. Guarded by a single sync.RWMutex per §5: the owning
// connection goroutine performs the one insert and the one remove;
// dispatch from other connections only ever reads.
type clientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*connState
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{clients: make(map[string]*connState)}
}

func (r *clientRegistry) register(pk []byte, cs *connState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[string(pk)] = cs
}

func (r *clientRegistry) unregister(pk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, string(pk))
}

func (r *clientRegistry) lookup(pk []byte) (*connState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.clients[string(pk)]
	return cs, ok
}

func (r *clientRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
