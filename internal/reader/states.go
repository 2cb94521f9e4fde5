package reader

import (
	"errors"
	"sync"
)

// Mode is the function the reader is configured for.
type Mode int

const (
	ModeIdle Mode = iota
	ModeInventory
	ModeLocate
	ModeBarcode
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeInventory:
		return "INVENTORY"
	case ModeLocate:
		return "LOCATE"
	case ModeBarcode:
		return "BARCODE"
	}
	return "MODE?"
}

// State is the reader's lifecycle state. StateNone is not a state: it is
// the zero value of a sequence step's FinalState field, meaning "no
// transition".
type State int

const (
	StateNone State = iota
	StateDisconnected
	StateConnected
	StateReady
	StateBusy
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateReady:
		return "READY"
	case StateBusy:
		return "BUSY"
	case StateScanning:
		return "SCANNING"
	}
	return "STATE?"
}

var (
	// ErrBusy rejects a mode change while a previous one is still
	// executing its configuration sequence.
	ErrBusy = errors.New("reader: busy with a mode change")
	// ErrDisconnected fails any operation after the transport is gone.
	ErrDisconnected = errors.New("reader: transport disconnected")
)

// status is the single shared mutable resource of a session: the
// mode/state pair. It is written by the command sequencer (and the
// connect/disconnect edges) and read by notification dispatch. Each
// session owns exactly one, so concurrent device sessions never collide.
type status struct {
	mu    sync.RWMutex
	mode  Mode
	state State
	emit  func(Event)
}

func newStatus(emit func(Event)) *status {
	return &status{mode: ModeIdle, state: StateDisconnected, emit: emit}
}

// snapshot returns the current mode/state pair.
func (s *status) snapshot() (Mode, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.state
}

// setState transitions to st and announces it. StateNone is a no-op.
func (s *status) setState(st State) {
	if st == StateNone {
		return
	}
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	mode := s.mode
	s.mu.Unlock()
	s.emit(Event{Type: EvtStateChanged, Mode: mode.String(), State: st.String()})
}

func (s *status) setMode(m Mode) {
	s.mu.Lock()
	if s.mode == m {
		s.mu.Unlock()
		return
	}
	s.mode = m
	st := s.state
	s.mu.Unlock()
	s.emit(Event{Type: EvtStateChanged, Mode: m.String(), State: st.String()})
}

// beginBusy claims the machine for a mode-change sequence. Only one
// sequence may hold it; overlapping requests are rejected, never
// interleaved.
func (s *status) beginBusy() error {
	s.mu.Lock()
	switch s.state {
	case StateBusy:
		s.mu.Unlock()
		return ErrBusy
	case StateDisconnected:
		s.mu.Unlock()
		return ErrDisconnected
	}
	s.state = StateBusy
	mode := s.mode
	s.mu.Unlock()
	s.emit(Event{Type: EvtStateChanged, Mode: mode.String(), State: StateBusy.String()})
	return nil
}
