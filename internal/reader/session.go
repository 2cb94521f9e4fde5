// Package reader drives one handheld RFID/barcode sled over an opaque
// byte-stream transport: it reassembles and parses the wire protocol,
// correlates command responses, routes autonomous notifications and owns
// the reader's mode/state machine.
package reader

import (
	"io"
	"sync"
	"time"

	"github.com/juju/loggo"

	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/protocol"
)

var (
	sessionLogger = loggo.GetLogger("reader")
	seqLogger     = loggo.GetLogger("reader.seq")
)

// Options tunes a session. The zero value is usable.
type Options struct {
	// MTU is the largest chunk the transport carries per write. Frames
	// larger than this are fragmented. Defaults to 20 (BLE-sized).
	MTU int
	// DupWindow overrides the barcode duplicate-suppression window.
	DupWindow time.Duration
	// CommandTimeout overrides every event's own response timeout when
	// set. Mainly for test rigs and slow debug links.
	CommandTimeout time.Duration
	// EventBuffer is the outward event channel capacity.
	EventBuffer int
}

// DefaultMTU matches the ~20-byte transmission unit of the wireless link.
const DefaultMTU = 20

// pendingWait is one outstanding command's slot in the correlation table.
type pendingWait struct {
	code uint16
	ch   chan *protocol.Packet
}

// Session is one connection to a reader. It owns the read loop goroutine;
// every inbound frame is fully processed (response correlation or
// notification dispatch, all handlers) before the next one, so handler
// state and the mode/state pair see strictly ordered traffic.
type Session struct {
	tr         io.ReadWriteCloser
	mtu        int
	cmdTimeout time.Duration
	asm        *protocol.Assembler
	router     *Router
	status     *status

	events chan Event
	// eventsMu orders emits against the channel close in teardown. An
	// emit that loses that race is dropped, never sent on a closed
	// channel: state writers (beginBusy notably) emit outside seqMu.
	eventsMu     sync.Mutex
	eventsClosed bool

	// writeMu keeps a frame's fragments contiguous on the wire.
	writeMu sync.Mutex

	// seqMu serializes command sequences: at most one in flight.
	seqMu sync.Mutex

	// pendingMu guards the outstanding-command list. Correlation is by
	// event code; replies match the oldest waiting entry for their code.
	pendingMu sync.Mutex
	pending   []*pendingWait

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wraps an already-connected transport in a session. Built-in
// handlers for barcode, inventory, trigger, battery and error
// notifications are registered; Router() accepts more. Call Start to
// begin processing.
func New(tr io.ReadWriteCloser, opts Options) *Session {
	if opts.MTU <= 0 {
		opts.MTU = DefaultMTU
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	s := &Session{
		tr:         tr,
		mtu:        opts.MTU,
		cmdTimeout: opts.CommandTimeout,
		asm:        protocol.NewAssembler(),
		router:     NewRouter(),
		events:     make(chan Event, opts.EventBuffer),
		done:       make(chan struct{}),
	}
	s.status = newStatus(s.emit)

	s.router.Register(protocol.EvBarcodeData, newBarcodeDataHandler(opts.DupWindow))
	s.router.Register(protocol.EvBarcodeGoodRead, &goodReadHandler{})
	s.router.Register(protocol.EvInventoryTag, newTagHandler())
	s.router.Register(protocol.EvTriggerPressed, &triggerHandler{})
	s.router.Register(protocol.EvTriggerReleased, &triggerHandler{})
	s.router.Register(protocol.EvBattery, batteryHandler{})
	s.router.Register(protocol.EvError, errorHandler{})
	return s
}

// Start marks the transport connected and launches the read loop.
func (s *Session) Start() {
	s.status.setState(StateConnected)
	s.wg.Add(1)
	go s.readLoop()
}

// Close tears the session down: the transport is closed, every
// outstanding command wait fails immediately with ErrDisconnected, and
// the state machine drops to DISCONNECTED. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.tr.Close()
		s.wg.Wait()
		s.failPending()
		s.router.Clear()
		// Taking seqMu here means no sequence is mid-step when the
		// final state events go out.
		s.seqMu.Lock()
		s.status.setState(StateDisconnected)
		s.status.setMode(ModeIdle)
		s.seqMu.Unlock()
		s.eventsMu.Lock()
		s.eventsClosed = true
		close(s.events)
		s.eventsMu.Unlock()
	})
}

// Events is the outward domain-event stream. The channel is closed by
// Close; when the buffer fills the oldest event is dropped rather than
// blocking the read loop.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Router exposes the notification router for extra handler registration.
func (s *Session) Router() *Router {
	return s.router
}

// Status returns the current mode/state pair.
func (s *Session) Status() (Mode, State) {
	return s.status.snapshot()
}

// SetMode reconfigures the reader for a new mode. Rejected with ErrBusy
// while a previous change is still running; never interleaved. On
// sequence failure the machine is left as the last successful step set it
// (typically BUSY) and the caller picks recovery: retry, or force
// ModeIdle.
func (s *Session) SetMode(target Mode) error {
	steps, err := configSequence(target)
	if err != nil {
		return err
	}
	if err := s.status.beginBusy(); err != nil {
		return err
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if err := s.runSequence(steps); err != nil {
		sessionLogger.Errorf("mode change to %v failed: %v", target, err)
		return err
	}
	s.status.setMode(target)
	return nil
}

// StartScan begins scanning in the current mode.
func (s *Session) StartScan() error {
	mode, state := s.status.snapshot()
	switch state {
	case StateDisconnected:
		return ErrDisconnected
	case StateBusy:
		return ErrBusy
	}
	steps, err := startSequence(mode)
	if err != nil {
		return err
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.runSequence(steps)
}

// StopScan halts an in-progress scan; the explicit stop and the barcode
// auto-stop request both come through here.
func (s *Session) StopScan() error {
	mode, state := s.status.snapshot()
	if state == StateDisconnected {
		return ErrDisconnected
	}
	steps, err := stopSequence(mode)
	if err != nil {
		return err
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.runSequence(steps)
}

// QueryBattery requests a battery reading; the decoded reply is emitted
// as a BATTERY event directly. Autonomous reports, which arrive with no
// command pending, go through the battery handler instead.
func (s *Session) QueryBattery() error {
	def, _ := protocol.Lookup(protocol.EvBattery)
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	wait := s.addPending(def.Code)
	defer s.removePending(wait)
	if err := s.send(def, nil); err != nil {
		return err
	}
	timer := time.NewTimer(s.timeoutFor(def))
	defer timer.Stop()
	select {
	case resp := <-wait.ch:
		if b, ok := resp.Decoded.(protocol.BatteryReading); ok {
			s.emit(Event{Type: EvtBatteryReport, Millivolts: b.Millivolts})
		}
		return nil
	case <-timer.C:
		return ErrStepTimeout
	case <-s.done:
		return ErrDisconnected
	}
}

// SetReporting toggles autonomous battery and trigger reporting.
func (s *Session) SetReporting(battery, trigger bool) error {
	if _, state := s.status.snapshot(); state == StateDisconnected {
		return ErrDisconnected
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if err := s.runSequence(reportSequence(battery, trigger)); err != nil {
		return err
	}
	s.emit(Event{Type: EvtSettingsUpdated})
	return nil
}

// Execute sends one raw command and awaits its correlated response, for
// wire events the higher-level operations do not cover.
func (s *Session) Execute(code uint16, payload []byte) error {
	if _, state := s.status.snapshot(); state == StateDisconnected {
		return ErrDisconnected
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.runSequence([]Step{{Event: code, Payload: payload}})
}

// Vibrate pulses the handle motor, when the barcode module is powered.
func (s *Session) Vibrate(d time.Duration) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.runSequence([]Step{
		{Event: protocol.EvVibratorOn, Delay: d},
		{Event: protocol.EvVibratorOff},
	})
}

// timeoutFor picks the response deadline for one command.
func (s *Session) timeoutFor(def *protocol.EventDef) time.Duration {
	if s.cmdTimeout > 0 {
		return s.cmdTimeout
	}
	return def.Timeout
}

// send builds, fragments and writes one command frame.
func (s *Session) send(def *protocol.EventDef, payload []byte) error {
	frame, err := protocol.Build(def, payload, protocol.Downlink)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, chunk := range protocol.Fragment(frame, s.mtu) {
		if _, err := s.tr.Write(chunk); err != nil {
			return err
		}
	}
	sessionLogger.Tracef("-> %s % X", def.Name, frame)
	return nil
}

// readLoop drains the transport, reassembles frames and dispatches them
// in strict arrival order. A transport error ends the session.
func (s *Session) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 256)
	for {
		n, err := s.tr.Read(buf)
		if n > 0 {
			pkts, ferr := s.asm.Feed(buf[:n])
			if ferr != nil {
				monitor.ParseErrors.Inc(1)
			}
			for _, pkt := range pkts {
				s.handlePacket(pkt)
			}
		}
		if err != nil {
			sessionLogger.Infof("transport closed: %v", err)
			// Close blocks on wg; run teardown elsewhere.
			go s.Close()
			return
		}
	}
}

// handlePacket hands a frame to the oldest outstanding command wait on
// its code, or falls through to notification dispatch. Dual-purpose codes
// (battery, error) are responses only while a command is actually
// pending.
func (s *Session) handlePacket(pkt *protocol.Packet) {
	monitor.FramesParsed.Inc(1)
	if pkt.Unknown {
		monitor.UnknownEvents.Inc(1)
		sessionLogger.Infof("unknown event 0x%04X (%d payload bytes), skipping", pkt.Code, len(pkt.Payload))
		s.emit(Event{Type: EvtUnknownEvent, Code: pkt.Code})
		return
	}
	sessionLogger.Tracef("<- %s % X", pkt.Def.Name, pkt.Payload)

	if pkt.IsResponse() {
		if wait := s.takePending(pkt.Code); wait != nil {
			wait.ch <- pkt
			return
		}
	}
	if !pkt.Def.IsNotification {
		sessionLogger.Debugf("unexpected %s with no pending command", pkt.Def.Name)
		return
	}

	mode, state := s.status.snapshot()
	ctx := &Context{Mode: mode, State: state, Emit: s.emit, Meta: map[string]string{}}
	s.router.Dispatch(pkt, ctx)
}

func (s *Session) addPending(code uint16) *pendingWait {
	w := &pendingWait{code: code, ch: make(chan *protocol.Packet, 1)}
	s.pendingMu.Lock()
	s.pending = append(s.pending, w)
	s.pendingMu.Unlock()
	return w
}

// takePending pops the oldest wait registered for code.
func (s *Session) takePending(code uint16) *pendingWait {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for i, w := range s.pending {
		if w.code == code {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return w
		}
	}
	return nil
}

func (s *Session) removePending(w *pendingWait) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for i, p := range s.pending {
		if p == w {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// failPending drops every outstanding wait. Waiters see s.done closed and
// resolve with ErrDisconnected; this just empties the table.
func (s *Session) failPending() {
	s.pendingMu.Lock()
	s.pending = nil
	s.pendingMu.Unlock()
}

// emit publishes an outward event without ever blocking the read loop:
// when the buffer is full the oldest event is discarded first. After
// Close has run the event is dropped instead.
func (s *Session) emit(ev Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- ev:
	default:
	}
}
