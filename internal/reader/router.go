package reader

import (
	"sync"

	"github.com/juju/loggo"

	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/protocol"
)

var routerLogger = loggo.GetLogger("reader.router")

// Context is built fresh for every dispatched packet. Handlers read the
// mode/state it was captured with and emit outward events through it;
// they never mutate reader state directly.
type Context struct {
	Mode  Mode
	State State
	Emit  func(Event)
	Meta  map[string]string
}

// Handler reacts to notification packets for one event code.
type Handler interface {
	// CanHandle gates the handler against the packet and current
	// context. Returning false (or panicking) skips Handle.
	CanHandle(pkt *protocol.Packet, ctx *Context) bool
	Handle(pkt *protocol.Packet, ctx *Context) error
}

// CleanupHandler is implemented by handlers that hold resources to
// release on Unregister/Clear.
type CleanupHandler interface {
	Cleanup()
}

// Router dispatches inbound notification packets to the handlers
// registered for their event code. Multiple handlers may share a code and
// run in registration order; one misbehaving handler never blocks its
// siblings — hardware notifications are frequent and a single malformed
// payload must not take down the dispatch loop.
type Router struct {
	mu       sync.RWMutex
	handlers map[uint16][]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[uint16][]Handler)}
}

// Register appends h to the handler list for code.
func (r *Router) Register(code uint16, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[code] = append(r.handlers[code], h)
}

// Unregister removes all handlers for code, running their cleanups.
func (r *Router) Unregister(code uint16) {
	r.mu.Lock()
	hs := r.handlers[code]
	delete(r.handlers, code)
	r.mu.Unlock()
	for _, h := range hs {
		cleanup(h)
	}
}

// Clear removes every handler, running cleanups.
func (r *Router) Clear() {
	r.mu.Lock()
	old := r.handlers
	r.handlers = make(map[uint16][]Handler)
	r.mu.Unlock()
	for _, hs := range old {
		for _, h := range hs {
			cleanup(h)
		}
	}
}

// Dispatch routes one packet to each applicable handler in registration
// order. Handler errors and panics are logged and counted, never
// propagated.
func (r *Router) Dispatch(pkt *protocol.Packet, ctx *Context) {
	r.mu.RLock()
	hs := r.handlers[pkt.Code]
	r.mu.RUnlock()
	if len(hs) == 0 {
		routerLogger.Debugf("no handler for %s", pkt.Def.Name)
		return
	}
	for _, h := range hs {
		if !safeCanHandle(h, pkt, ctx) {
			continue
		}
		safeHandle(h, pkt, ctx)
	}
}

func safeCanHandle(h Handler, pkt *protocol.Packet, ctx *Context) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			routerLogger.Errorf("handler panic in CanHandle(%s): %v", pkt.Def.Name, rec)
			monitor.HandlerErrors.Inc(1)
			ok = false
		}
	}()
	return h.CanHandle(pkt, ctx)
}

func safeHandle(h Handler, pkt *protocol.Packet, ctx *Context) {
	defer func() {
		if rec := recover(); rec != nil {
			routerLogger.Errorf("handler panic in Handle(%s): %v", pkt.Def.Name, rec)
			monitor.HandlerErrors.Inc(1)
		}
	}()
	if err := h.Handle(pkt, ctx); err != nil {
		routerLogger.Errorf("handler error on %s: %v", pkt.Def.Name, err)
		monitor.HandlerErrors.Inc(1)
	}
}

func cleanup(h Handler) {
	if c, ok := h.(CleanupHandler); ok {
		c.Cleanup()
	}
}
