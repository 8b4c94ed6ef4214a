package trace

import (
	"strconv"
	"sync"
	"time"
)

// Probe reports extra state for a heartbeat, e.g. open documents and
// cycles in flight.
type Probe func() map[string]string

// Heartbeat emits a liveness event every interval. Span ends stopping
// while heartbeats go on point at a stuck cycle.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	probe    Probe
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat returns nil when tracing is off or interval is not
// positive. probe may be nil.
func StartHeartbeat(tracer Tracer, interval time.Duration, probe Probe) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		probe:    probe,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			ev := &Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeStore,
				Name:   "heartbeat",
				Detail: "#" + strconv.FormatUint(n, 10),
			}
			if h.probe != nil {
				ev.Extra = h.probe()
			}
			h.tracer.Emit(ev)
		case <-h.stopCh:
			return
		}
	}
}

// Stop is safe on nil and when repeated.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
