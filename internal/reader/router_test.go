package reader

import (
	"errors"
	"testing"
	"time"

	"github.com/trakrf/platform-sub014/internal/protocol"
)

type recordingHandler struct {
	name    string
	accept  bool
	err     error
	panics  bool
	calls   *[]string
	cleaned bool
}

func (h *recordingHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	return h.accept
}

func (h *recordingHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	*h.calls = append(*h.calls, h.name)
	if h.panics {
		panic("handler blew up")
	}
	return h.err
}

func (h *recordingHandler) Cleanup() { h.cleaned = true }

func testPacket(t *testing.T, code uint16, payload []byte) *protocol.Packet {
	t.Helper()
	def, ok := protocol.Lookup(code)
	if !ok {
		t.Fatalf("no definition for 0x%04X", code)
	}
	frame, err := protocol.Build(def, payload, protocol.Uplink)
	if err != nil {
		t.Fatal(err)
	}
	pkt, err := protocol.Parse(frame)
	if err != nil {
		t.Fatal(err)
	}
	return pkt
}

func TestDispatchRegistrationOrder(t *testing.T) {
	r := NewRouter()
	var calls []string
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "first", accept: true, calls: &calls})
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "second", accept: true, calls: &calls})
	r.Register(protocol.EvTriggerPressed, &recordingHandler{name: "other", accept: true, calls: &calls})

	r.Dispatch(testPacket(t, protocol.EvBarcodeGoodRead, nil), &Context{})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls => %v; want [first second]", calls)
	}
}

func TestDispatchSkipsRejectingHandler(t *testing.T) {
	r := NewRouter()
	var calls []string
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "no", accept: false, calls: &calls})
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "yes", accept: true, calls: &calls})

	r.Dispatch(testPacket(t, protocol.EvBarcodeGoodRead, nil), &Context{})

	if len(calls) != 1 || calls[0] != "yes" {
		t.Errorf("calls => %v; want [yes]", calls)
	}
}

func TestDispatchIsolatesPanicAndError(t *testing.T) {
	r := NewRouter()
	var calls []string
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "panics", accept: true, panics: true, calls: &calls})
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "errors", accept: true, err: errors.New("nope"), calls: &calls})
	r.Register(protocol.EvBarcodeGoodRead, &recordingHandler{name: "healthy", accept: true, calls: &calls})

	r.Dispatch(testPacket(t, protocol.EvBarcodeGoodRead, nil), &Context{})

	if len(calls) != 3 || calls[2] != "healthy" {
		t.Errorf("calls => %v; want all three, healthy last", calls)
	}
}

func TestDispatchNoHandlers(t *testing.T) {
	r := NewRouter()
	r.Dispatch(testPacket(t, protocol.EvBarcodeGoodRead, nil), &Context{})
}

func TestUnregisterRunsCleanup(t *testing.T) {
	r := NewRouter()
	var calls []string
	h := &recordingHandler{name: "h", accept: true, calls: &calls}
	r.Register(protocol.EvBarcodeGoodRead, h)

	r.Unregister(protocol.EvBarcodeGoodRead)
	if !h.cleaned {
		t.Error("Unregister did not run Cleanup")
	}

	r.Dispatch(testPacket(t, protocol.EvBarcodeGoodRead, nil), &Context{})
	if len(calls) != 0 {
		t.Errorf("dispatch after Unregister still called %v", calls)
	}
}

func TestClearRunsAllCleanups(t *testing.T) {
	r := NewRouter()
	var calls []string
	a := &recordingHandler{name: "a", accept: true, calls: &calls}
	b := &recordingHandler{name: "b", accept: true, calls: &calls}
	r.Register(protocol.EvBarcodeGoodRead, a)
	r.Register(protocol.EvTriggerPressed, b)

	r.Clear()
	if !a.cleaned || !b.cleaned {
		t.Errorf("Clear cleanups => a=%v b=%v; want both", a.cleaned, b.cleaned)
	}
}

func TestBarcodeHandlerDuplicateWindow(t *testing.T) {
	h := newBarcodeDataHandler(DefaultDupWindow)
	clock := time.Unix(0, 0)
	h.now = func() time.Time { return clock }

	var events []Event
	ctx := &Context{Mode: ModeBarcode, State: StateScanning,
		Emit: func(ev Event) { events = append(events, ev) }}
	pkt := testPacket(t, protocol.EvBarcodeData, []byte("j]C000123\r"))

	h.Handle(pkt, ctx)
	clock = clock.Add(100 * time.Millisecond)
	h.Handle(pkt, ctx) // inside the window: suppressed
	clock = clock.Add(DefaultDupWindow) // rolling window counts from the re-read
	h.Handle(pkt, ctx)

	reads := 0
	for _, ev := range events {
		if ev.Type == EvtBarcodeRead {
			reads++
		}
	}
	if reads != 2 {
		t.Errorf("barcode reads => %d; want 2", reads)
	}
}
