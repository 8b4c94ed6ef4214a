package cancel

import (
	"sync"
	"sync/atomic"
)

// Metrics counts registry traffic.
type Metrics struct {
	Registered atomic.Uint64
	Cancelled  atomic.Uint64
	Completed  atomic.Uint64
}

// Registry tracks in-flight signals by key (a document URI or request id),
// so a dispatcher can cancel work it did not start.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*Signal
	metrics Metrics
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Signal)}
}

// Register stores sig under key. A signal already registered under the
// same key is cancelled: only the newest request for a key stays live.
func (r *Registry) Register(key string, sig *Signal) {
	r.mu.Lock()
	prev := r.active[key]
	r.active[key] = sig
	r.mu.Unlock()
	r.metrics.Registered.Add(1)
	if prev != nil && prev != sig {
		prev.Cancel()
		r.metrics.Cancelled.Add(1)
	}
}

// Cancel cancels the signal under key and reports whether one was found.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	sig := r.active[key]
	r.mu.Unlock()
	if sig == nil {
		return false
	}
	sig.Cancel()
	r.metrics.Cancelled.Add(1)
	return true
}

// Done removes sig if it is still the one registered under key.
func (r *Registry) Done(key string, sig *Signal) {
	r.mu.Lock()
	if r.active[key] == sig {
		delete(r.active, key)
	}
	r.mu.Unlock()
	r.metrics.Completed.Add(1)
}

func (r *Registry) Get(key string) *Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[key]
}

// Active is the number of registered signals.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Registry) Metrics() *Metrics { return &r.metrics }
