package pipeline

import (
	"sync"

	"mediaIndex/core"
)

// Hub fans progress events out to per-job subscribers. Delivery is best
// effort: a slow subscriber drops events instead of stalling the pipeline.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan core.ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan core.ProgressEvent]struct{})}
}

// Subscribe returns a buffered event channel for one job and a cancel
// function that must be called when the subscriber is done.
func (h *Hub) Subscribe(jobID string) (<-chan core.ProgressEvent, func()) {
	ch := make(chan core.ProgressEvent, 16)
	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan core.ProgressEvent]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[jobID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, jobID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(evt core.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[evt.JobID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
