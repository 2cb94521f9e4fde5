// Package hub fans reader events out to websocket UI clients and,
// optionally, onto NATS subjects.
package hub

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
	"github.com/nats-io/nats.go"

	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/reader"
)

var logger = loggo.GetLogger("hub")

// Command is a request from a UI client.
type Command struct {
	Action string `json:"action"` // SETMODE, STARTSCAN, STOPSCAN, BATTERY, VIBRATE
	Mode   string `json:"mode,omitempty"`
}

// client is one connected UI.
type client struct {
	ws   *websocket.Conn
	send chan reader.Event
}

func (c *client) writer() {
	for ev := range c.send {
		if err := c.ws.WriteJSON(ev); err != nil {
			break
		}
	}
	c.ws.Close()
}

func (c *client) reader(commands chan<- Command) {
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			logger.Warningf("bad command from UI: %v", err)
			continue
		}
		logger.Infof("<- UI %+v", cmd)
		commands <- cmd
	}
}

// Hub broadcasts every reader event to all connected UI clients. Slow
// clients are dropped rather than allowed to stall the stream.
type Hub struct {
	clients map[*client]bool
	reg     chan *client
	unreg   chan *client

	broadcast chan reader.Event

	// Commands carries UI requests out to whoever drives the session.
	Commands chan Command

	// done gates Broadcast during teardown: a broadcast racing Shutdown
	// is dropped, never sent once Run has stopped draining.
	done     chan struct{}
	quitOnce sync.Once

	nc *nats.Conn
}

// New creates a hub. natsURL may be empty; when set, events are also
// published to "reader.<type>" subjects (fire-and-forget).
func New(natsURL string) (*Hub, error) {
	h := &Hub{
		clients:   make(map[*client]bool),
		reg:       make(chan *client),
		unreg:     make(chan *client),
		broadcast: make(chan reader.Event, 16),
		Commands:  make(chan Command, 16),
		done:      make(chan struct{}),
	}
	if natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name("readerd"))
		if err != nil {
			return nil, err
		}
		h.nc = nc
		logger.Infof("publishing events to NATS at %v", natsURL)
	}
	return h, nil
}

// Run pumps registrations and queued events to the clients. Meant to be
// run in its own goroutine; returns after Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.reg:
			h.clients[c] = true
			monitor.ClientsConnected.Inc(1)
			logger.Infof("UI connected (%d total)", len(h.clients))
		case c := <-h.unreg:
			h.drop(c)
		case <-h.done:
			h.shutdown()
			return
		case ev := <-h.broadcast:
			h.publish(ev)
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					logger.Warningf("UI too slow, dropping")
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	monitor.ClientsConnected.Dec(1)
	logger.Infof("UI disconnected (%d total)", len(h.clients))
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		h.drop(c)
	}
	if h.nc != nil {
		h.nc.Drain()
	}
	close(h.Commands)
}

// Shutdown closes every client and stops Run. Idempotent; broadcasts
// arriving afterwards are dropped.
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.done) })
}

// Broadcast queues one event for every connected client (and NATS). After
// Shutdown the event is discarded.
func (h *Hub) Broadcast(ev reader.Event) {
	select {
	case <-h.done:
	case h.broadcast <- ev:
	}
}

func (h *Hub) publish(ev reader.Event) {
	if h.nc == nil {
		return
	}
	subject := "reader." + strings.ToLower(ev.Type)
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := h.nc.Publish(subject, b); err != nil {
		logger.Warningf("NATS publish %v: %v", subject, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a client websocket.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "not a websocket handshake", http.StatusBadRequest)
		return
	}
	c := &client{ws: ws, send: make(chan reader.Event, 32)}
	h.reg <- c
	defer func() {
		h.unreg <- c
	}()
	go c.writer()
	c.reader(h.Commands)
}
