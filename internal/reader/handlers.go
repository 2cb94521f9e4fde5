package reader

import (
	"encoding/hex"
	"time"

	"github.com/juju/loggo"

	"github.com/trakrf/platform-sub014/internal/barcode"
	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/protocol"
)

var handlerLogger = loggo.GetLogger("reader.handlers")

// DefaultDupWindow is how long an identical barcode read is considered a
// re-read of the same label rather than a new scan.
const DefaultDupWindow = 500 * time.Millisecond

// barcodeDataHandler decodes barcode notifications, suppresses duplicate
// reads, and asks for an auto-stop after the first good read of a scan.
// The suppression state is per-handler, bounded to one value, and expires
// through the rolling timestamp alone.
type barcodeDataHandler struct {
	window time.Duration
	now    func() time.Time

	lastValue string
	lastAt    time.Time
}

func newBarcodeDataHandler(window time.Duration) *barcodeDataHandler {
	if window <= 0 {
		window = DefaultDupWindow
	}
	return &barcodeDataHandler{window: window, now: time.Now}
}

func (h *barcodeDataHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	return ctx.Mode == ModeBarcode && len(pkt.Payload) > 0
}

func (h *barcodeDataHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	res := barcode.Decode(pkt.Payload)
	now := h.now()
	if res.Data == h.lastValue && now.Sub(h.lastAt) < h.window {
		h.lastAt = now
		handlerLogger.Debugf("duplicate barcode %q suppressed", res.Data)
		return nil
	}
	h.lastValue = res.Data
	h.lastAt = now

	monitor.BarcodesRead.Inc(1)
	ctx.Emit(Event{Type: EvtBarcodeRead, Symbology: res.Symbology, Data: res.Data})

	// One successful read halts the scan, but only when a scan is
	// actually running. Stopping is a product decision made by the
	// caller; we only request it.
	if ctx.State == StateScanning {
		ctx.Emit(Event{Type: EvtAutoStop})
	}
	return nil
}

func (h *barcodeDataHandler) Cleanup() {
	h.lastValue = ""
	h.lastAt = time.Time{}
}

// goodReadHandler counts hardware good-read confirmations. It fires on
// any packet while in barcode mode regardless of payload shape, with a
// counter independent of the data handler.
type goodReadHandler struct {
	count int64
}

func (h *goodReadHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	return ctx.Mode == ModeBarcode
}

func (h *goodReadHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	h.count++
	ctx.Emit(Event{Type: EvtGoodRead, Seen: int(h.count)})
	return nil
}

// tagHandler reports RFID inventory tags with a per-EPC sighting count.
type tagHandler struct {
	seen map[string]int
}

func newTagHandler() *tagHandler {
	return &tagHandler{seen: make(map[string]int)}
}

func (h *tagHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	if ctx.Mode != ModeInventory && ctx.Mode != ModeLocate {
		return false
	}
	_, ok := pkt.Decoded.(protocol.TagReport)
	return ok
}

func (h *tagHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	tag := pkt.Decoded.(protocol.TagReport)
	epc := hex.EncodeToString(tag.EPC)
	h.seen[epc]++
	monitor.TagsSeen.Inc(1)
	ctx.Emit(Event{Type: EvtTagRead, EPC: epc, RSSI: int(tag.RSSI), Seen: h.seen[epc]})
	return nil
}

func (h *tagHandler) Cleanup() {
	h.seen = make(map[string]int)
}

// triggerHandler maps the press/release notification pair onto one
// outward event.
type triggerHandler struct {
	pressed bool
}

func (h *triggerHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	return ctx.State != StateDisconnected
}

func (h *triggerHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	h.pressed = pkt.Code == protocol.EvTriggerPressed
	ctx.Emit(Event{Type: EvtTriggerChanged, Pressed: h.pressed})
	return nil
}

// batteryHandler forwards autonomous battery reports.
type batteryHandler struct{}

func (batteryHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	_, ok := pkt.Decoded.(protocol.BatteryReading)
	return ok
}

func (batteryHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	b := pkt.Decoded.(protocol.BatteryReading)
	ctx.Emit(Event{Type: EvtBatteryReport, Millivolts: b.Millivolts})
	return nil
}

// errorHandler surfaces autonomous device faults.
type errorHandler struct{}

func (errorHandler) CanHandle(pkt *protocol.Packet, ctx *Context) bool {
	return true
}

func (errorHandler) Handle(pkt *protocol.Packet, ctx *Context) error {
	code := byte(0)
	if e, ok := pkt.Decoded.(protocol.DeviceError); ok {
		code = e.Code
	}
	handlerLogger.Warningf("device error 0x%02X", code)
	ctx.Emit(Event{Type: EvtDeviceError, Code: uint16(code)})
	return nil
}
