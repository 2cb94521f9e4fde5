package reader

import (
	"errors"
	"fmt"
	"time"

	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/protocol"
)

// Step is one entry of a command sequence.
type Step struct {
	Event   uint16
	Payload []byte

	// RetryOnError re-issues the command at most once on timeout or a
	// failed success-byte check before the sequence aborts.
	RetryOnError bool

	// Delay is an extra wait after the step succeeds, on top of the
	// event's own settling delay.
	Delay time.Duration

	// FinalState, when not StateNone, is applied only after the step
	// succeeds.
	FinalState State
}

// ErrStepTimeout marks a step whose correlated response never arrived.
var ErrStepTimeout = errors.New("reader: command response timeout")

// ErrStepFailed marks a response that arrived but failed its success-byte
// check.
var ErrStepFailed = errors.New("reader: command rejected by device")

// SequenceError reports the step a sequence died on.
type SequenceError struct {
	Step  int
	Event uint16
	Err   error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("reader: sequence step %d (event 0x%04X): %v", e.Step, e.Event, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }

// runSequence executes steps strictly in order. A failed step aborts the
// whole sequence, leaving the state machine wherever the last successful
// step put it; the caller decides recovery.
func (s *Session) runSequence(steps []Step) error {
	monitor.SequencesRun.Inc(1)
	for i, step := range steps {
		if err := s.runStep(step); err != nil {
			monitor.SequencesFailed.Inc(1)
			return &SequenceError{Step: i, Event: step.Event, Err: err}
		}
		if step.Delay > 0 {
			time.Sleep(step.Delay)
		}
		s.status.setState(step.FinalState)
	}
	return nil
}

// runStep sends one command and awaits its correlated response, retrying
// once when the step opts in. Disconnects are never retried: the wait is
// hard-cancelled, not timed out.
func (s *Session) runStep(step Step) error {
	def, ok := protocol.Lookup(step.Event)
	if !ok {
		return fmt.Errorf("reader: no definition for event 0x%04X", step.Event)
	}
	if !def.IsCommand {
		return fmt.Errorf("reader: event %s is not a command", def.Name)
	}

	attempts := 1
	if step.RetryOnError {
		attempts = 2
	}
	var err error
	for try := 0; try < attempts; try++ {
		err = s.exchange(def, step.Payload)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDisconnected) {
			return err
		}
		seqLogger.Warningf("step %s attempt %d: %v", def.Name, try+1, err)
	}
	if err != nil {
		return err
	}

	// Settling delay: the hardware needs wall-clock time to actuate
	// before the next command is safe. Runs to completion once the step
	// has succeeded; there is no cancelling a physical constraint.
	if def.SettlingDelay > 0 {
		time.Sleep(def.SettlingDelay)
	}
	return nil
}

// exchange writes one command frame and blocks until the matching uplink
// response, the event's timeout, or disconnect. Notifications keep
// flowing through the router while we wait; only the response code is
// captured here.
func (s *Session) exchange(def *protocol.EventDef, payload []byte) error {
	wait := s.addPending(def.Code)
	defer s.removePending(wait)

	if err := s.send(def, payload); err != nil {
		return err
	}

	timer := time.NewTimer(s.timeoutFor(def))
	defer timer.Stop()

	select {
	case resp := <-wait.ch:
		if !resp.SuccessOK() {
			return fmt.Errorf("%w: %s byte 0 not 0x%02X", ErrStepFailed, def.Name, def.SuccessByte)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrStepTimeout, def.Name, def.Timeout)
	case <-s.done:
		return ErrDisconnected
	}
}
