package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Wire event codes. The 0x8xxx range belongs to the RFID module, 0x9xxx to
// the barcode module and 0xAxxx to the sled itself (battery, trigger, error).
const (
	EvRFIDPowerOn      uint16 = 0x8000
	EvRFIDPowerOff     uint16 = 0x8001
	EvRFIDFirmware     uint16 = 0x8002
	EvInventoryTag     uint16 = 0x8100
	EvBarcodePowerOn   uint16 = 0x9000
	EvBarcodePowerOff  uint16 = 0x9001
	EvBarcodeTrigger   uint16 = 0x9002
	EvBarcodeESC       uint16 = 0x9003
	EvVibratorOn       uint16 = 0x9004
	EvVibratorOff      uint16 = 0x9005
	EvBarcodeData      uint16 = 0x9100
	EvBarcodeGoodRead  uint16 = 0x9101
	EvBattery          uint16 = 0xA000
	EvTriggerQuery     uint16 = 0xA001
	EvBatteryReportOn  uint16 = 0xA002
	EvBatteryReportOff uint16 = 0xA003
	EvTriggerReportOn  uint16 = 0xA008
	EvTriggerReportOff uint16 = 0xA009
	EvError            uint16 = 0xA101
	EvTriggerPressed   uint16 = 0xA102
	EvTriggerReleased  uint16 = 0xA103
)

// ESC sub-commands for the barcode module, sent as the payload of
// EvBarcodeESC. Trigger and stop are swapped relative to the scan engine
// vendor's documentation; this sled's firmware has them inverted.
var (
	ESCTriggerScan    = []byte{0x1B, 0x30}
	ESCStopScan       = []byte{0x1B, 0x31}
	ESCContinuousRead = []byte{0x1B, 0x33}
)

// VarLen marks a payload or response whose length is only known at runtime.
const VarLen = -1

// EventDef describes one wire event: who may send it, how big its payload
// is, and how a response to it is judged. Definitions are built once at
// startup and never mutated.
type EventDef struct {
	Code           uint16
	Name           string
	IsCommand      bool
	IsNotification bool

	// PayloadLen is the fixed outbound payload size, or VarLen.
	PayloadLen int
	// ResponseLen is the expected response payload size, or VarLen.
	ResponseLen int

	// HasSuccess declares that byte 0 of the response payload must equal
	// SuccessByte for the command to count as succeeded.
	HasSuccess  bool
	SuccessByte byte

	Timeout       time.Duration
	SettlingDelay time.Duration

	// Decode turns a raw payload into a typed value. Nil for payload-less
	// events.
	Decode func([]byte) (any, error)
}

func wantLen(p []byte, n int) error {
	if len(p) < n {
		return fmt.Errorf("payload %d bytes, want at least %d", len(p), n)
	}
	return nil
}

// BatteryReading is the decoded payload of an EvBattery frame.
type BatteryReading struct {
	Millivolts uint16
}

func decodeBattery(p []byte) (any, error) {
	if err := wantLen(p, 2); err != nil {
		return nil, err
	}
	return BatteryReading{Millivolts: binary.BigEndian.Uint16(p[0:2])}, nil
}

// TagReport is the decoded payload of an EvInventoryTag frame. The payload
// carries RSSI, a PC word and the EPC itself.
type TagReport struct {
	RSSI int8
	PC   uint16
	EPC  []byte
}

func decodeTag(p []byte) (any, error) {
	if err := wantLen(p, 3); err != nil {
		return nil, err
	}
	epc := make([]byte, len(p)-3)
	copy(epc, p[3:])
	return TagReport{
		RSSI: int8(p[0]),
		PC:   binary.BigEndian.Uint16(p[1:3]),
		EPC:  epc,
	}, nil
}

// DeviceError is the decoded payload of an EvError frame.
type DeviceError struct {
	Code byte
}

func decodeError(p []byte) (any, error) {
	if err := wantLen(p, 1); err != nil {
		return nil, err
	}
	return DeviceError{Code: p[0]}, nil
}

func decodeTriggerState(p []byte) (any, error) {
	if err := wantLen(p, 1); err != nil {
		return nil, err
	}
	return p[0] == 0x01, nil
}

const (
	defTimeout = 3 * time.Second
	// Module power rails need time to come up before the next command.
	powerSettling = 500 * time.Millisecond
	escSettling   = 50 * time.Millisecond
)

// registry is the static event table, keyed by wire code. Populated in
// init(); read-only afterwards.
var registry = map[uint16]*EventDef{}

func register(d EventDef) {
	if _, dup := registry[d.Code]; dup {
		panic(fmt.Sprintf("protocol: duplicate event code 0x%04X", d.Code))
	}
	def := d
	registry[d.Code] = &def
}

func init() {
	// Commands with a simple ack (success byte 0x00).
	register(EventDef{Code: EvRFIDPowerOn, Name: "RFID_POWER_ON", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout, SettlingDelay: powerSettling})
	register(EventDef{Code: EvRFIDPowerOff, Name: "RFID_POWER_OFF", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout})
	register(EventDef{Code: EvBarcodePowerOn, Name: "BARCODE_POWER_ON", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout, SettlingDelay: powerSettling})
	register(EventDef{Code: EvBarcodePowerOff, Name: "BARCODE_POWER_OFF", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout})

	// The consolidated RFID firmware command. All register writes and
	// inventory control go through this one code; the payload, not the
	// event code, selects the operation.
	register(EventDef{Code: EvRFIDFirmware, Name: "RFID_FIRMWARE", IsCommand: true,
		PayloadLen: VarLen, ResponseLen: VarLen, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout})

	register(EventDef{Code: EvBarcodeTrigger, Name: "BARCODE_TRIGGER", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout, SettlingDelay: escSettling})
	register(EventDef{Code: EvBarcodeESC, Name: "BARCODE_ESC", IsCommand: true,
		PayloadLen: VarLen, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout, SettlingDelay: escSettling})
	register(EventDef{Code: EvVibratorOn, Name: "VIBRATOR_ON", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout})
	register(EventDef{Code: EvVibratorOff, Name: "VIBRATOR_OFF", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00,
		Timeout: defTimeout})

	// Battery voltage doubles as a notification once auto-reporting is on.
	register(EventDef{Code: EvBattery, Name: "BATTERY", IsCommand: true, IsNotification: true,
		PayloadLen: 0, ResponseLen: 2, Timeout: defTimeout, Decode: decodeBattery})
	register(EventDef{Code: EvTriggerQuery, Name: "TRIGGER_QUERY", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, Timeout: defTimeout, Decode: decodeTriggerState})

	register(EventDef{Code: EvBatteryReportOn, Name: "BATTERY_REPORT_ON", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00, Timeout: defTimeout})
	register(EventDef{Code: EvBatteryReportOff, Name: "BATTERY_REPORT_OFF", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00, Timeout: defTimeout})
	register(EventDef{Code: EvTriggerReportOn, Name: "TRIGGER_REPORT_ON", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00, Timeout: defTimeout})
	register(EventDef{Code: EvTriggerReportOff, Name: "TRIGGER_REPORT_OFF", IsCommand: true,
		PayloadLen: 0, ResponseLen: 1, HasSuccess: true, SuccessByte: 0x00, Timeout: defTimeout})

	// Error is dual-purpose as well: it answers malformed commands and
	// also arrives on its own when the sled hits a fault.
	register(EventDef{Code: EvError, Name: "ERROR", IsCommand: true, IsNotification: true,
		PayloadLen: VarLen, ResponseLen: 1, Timeout: defTimeout, Decode: decodeError})

	// Pure notifications.
	register(EventDef{Code: EvInventoryTag, Name: "INVENTORY_TAG", IsNotification: true,
		PayloadLen: VarLen, ResponseLen: VarLen, Decode: decodeTag})
	register(EventDef{Code: EvBarcodeData, Name: "BARCODE_DATA", IsNotification: true,
		PayloadLen: VarLen, ResponseLen: VarLen})
	register(EventDef{Code: EvBarcodeGoodRead, Name: "BARCODE_GOOD_READ", IsNotification: true,
		PayloadLen: 0, ResponseLen: 0})
	register(EventDef{Code: EvTriggerPressed, Name: "TRIGGER_PRESSED", IsNotification: true,
		PayloadLen: 0, ResponseLen: 0})
	register(EventDef{Code: EvTriggerReleased, Name: "TRIGGER_RELEASED", IsNotification: true,
		PayloadLen: 0, ResponseLen: 0})
}

// Lookup returns the definition for a wire code.
func Lookup(code uint16) (*EventDef, bool) {
	d, ok := registry[code]
	return d, ok
}

// Events returns all registered definitions. Intended for tests and
// diagnostics output; the returned slice is a copy.
func Events() []*EventDef {
	out := make([]*EventDef, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	return out
}
