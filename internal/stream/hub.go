package stream

import (
	"sync"
	"vmigrate/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	// EventLog carries one log line; Seq is its per-job sequence number.
	EventLog EventType = "log"
	// EventProgress carries the job's progress percentage.
	EventProgress EventType = "progress"
	// EventDone carries the terminal status text and is the last event a
	// subscriber receives before its channel closes.
	EventDone EventType = "done"
)

type Event struct {
	Type     EventType
	Seq      int
	Message  string
	Progress int
}

// Hub fans events out from each job's executor to any number of attached
// observers. The executor is the sole producer per job; publishing never
// blocks on a consumer. A subscriber whose buffer fills is dropped (its
// channel closes early) rather than stalling the job; dropped observers can
// reattach and replay full history.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[uuid.UUID]chan Event
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}

	return &Hub{
		subs:   make(map[uint]map[uuid.UUID]chan Event),
		buffer: buffer,
	}
}

// Subscribe attaches an observer to a job. The returned channel closes after
// the job's done event, or early if the observer falls behind.
func (h *Hub) Subscribe(jobID uint) (uuid.UUID, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	ch := make(chan Event, h.buffer)

	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[uuid.UUID]chan Event)
	}
	h.subs[jobID][id] = ch

	return id, ch
}

// Unsubscribe detaches an observer. Safe to call after the hub already
// closed the channel.
func (h *Hub) Unsubscribe(jobID uint, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[jobID][id]; ok {
		delete(h.subs[jobID], id)
		close(ch)
	}
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish delivers an event to every subscriber of the job, dropping any
// subscriber that cannot keep up.
func (h *Hub) Publish(jobID uint, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[jobID] {
		select {
		case ch <- ev:
		default:
			delete(h.subs[jobID], id)
			close(ch)
			logger.Log.Warn("dropped slow stream subscriber",
				zap.Uint("job", jobID),
				zap.String("subscriber", id.String()))
		}
	}
}

// Close ends the stream for a job after its done event: all remaining
// subscriber channels are closed by the hub, never by the observer.
func (h *Hub) Close(jobID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[jobID] {
		close(ch)
	}
	delete(h.subs, jobID)
}
