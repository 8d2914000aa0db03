package client

import (
	"sync"

	"github.com/mpc-relay/relay/noise"
)

// peerRegistry maps a peer's public key to its Noise session state. At
// most one entry exists per peer; a Handshake entry is replaced in place
// by the same logical session transitioning to Transport. Never hold the
// lock across a handshake step or I/O — callers snapshot or copy what
// they need and release it first (§5, §9).
type peerRegistry struct {
	mu       sync.RWMutex
	sessions map[string]noise.State
	queues   map[string]chan sendRequest
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{
		sessions: make(map[string]noise.State),
		queues:   make(map[string]chan sendRequest),
	}
}

func (r *peerRegistry) get(pk []byte) (noise.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[string(pk)]
	return s, ok
}

func (r *peerRegistry) set(pk []byte, s noise.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[string(pk)] = s
}

func (r *peerRegistry) delete(pk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, string(pk))
	if q, ok := r.queues[string(pk)]; ok {
		close(q)
		delete(r.queues, string(pk))
	}
}

// queueFor returns the bounded pending-send queue for pk, creating it if
// necessary. sendQueueSize bounds how many plaintexts accumulate while a
// peer handshake is still in progress.
const sendQueueSize = 16

func (r *peerRegistry) queueFor(pk []byte) chan sendRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[string(pk)]
	if !ok {
		q = make(chan sendRequest, sendQueueSize)
		r.queues[string(pk)] = q
	}
	return q
}

// drainQueue removes and returns all pending sends queued for pk.
func (r *peerRegistry) drainQueue(pk []byte) []sendRequest {
	r.mu.Lock()
	q, ok := r.queues[string(pk)]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	var pending []sendRequest
	for {
		select {
		case p := <-q:
			pending = append(pending, p)
		default:
			return pending
		}
	}
}
