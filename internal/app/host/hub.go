package host

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// listener represents a registered event listener.
type listener struct {
	id string
	fn func()
}

// Hub is an in-process EventSource. Transports that receive host events
// (the RPC server, the CLI) call Emit.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string][]listener
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string][]listener),
	}
}

// Listen registers fn for event and returns the function that removes it.
func (h *Hub) Listen(event string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	h.listeners[event] = append(h.listeners[event], listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { h.unlisten(event, id) })
	}
}

func (h *Hub) unlisten(event, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ls := h.listeners[event]
	for i, l := range ls {
		if l.id == id {
			h.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(h.listeners[event]) == 0 {
		delete(h.listeners, event)
	}
}

// Emit runs the listeners of event in registration order and returns how
// many ran. Listeners run on the caller's goroutine.
func (h *Hub) Emit(event string) int {
	h.mu.RLock()
	// Copy listeners to avoid holding lock during callbacks
	ls := make([]listener, len(h.listeners[event]))
	copy(ls, h.listeners[event])
	h.mu.RUnlock()

	if len(ls) == 0 {
		zlog.Debug().Msgf("host: event without listeners: event=%s", event)
		return 0
	}

	for _, l := range ls {
		l.fn()
	}
	return len(ls)
}

// Close removes all listeners.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = make(map[string][]listener)
}
