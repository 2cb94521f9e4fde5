package reader

// Event types published on a session's outward stream. The application
// layer (websocket hub, NATS bridge) consumes these; nothing ever calls
// back into the core through them.
const (
	EvtStateChanged    = "STATE_CHANGED"
	EvtBarcodeRead     = "BARCODE_READ"
	EvtGoodRead        = "GOOD_READ"
	EvtAutoStop        = "AUTO_STOP_REQUESTED"
	EvtTagRead         = "TAG_READ"
	EvtTriggerChanged  = "TRIGGER_CHANGED"
	EvtBatteryReport   = "BATTERY"
	EvtDeviceError     = "DEVICE_ERROR"
	EvtSettingsUpdated = "SETTINGS_UPDATED"
	EvtUnknownEvent    = "UNKNOWN_EVENT"
)

// Event is one outward domain event. The zero value of every optional
// field marshals away, so each type only carries its own fields on the
// wire.
type Event struct {
	Type  string `json:"type"`
	Mode  string `json:"mode,omitempty"`
	State string `json:"state,omitempty"`

	// Barcode reads.
	Symbology string `json:"symbology,omitempty"`
	Data      string `json:"data,omitempty"`

	// Inventory tag reads.
	EPC  string `json:"epc,omitempty"`
	RSSI int    `json:"rssi,omitempty"`
	Seen int    `json:"seen,omitempty"`

	// Trigger and battery.
	Pressed    bool   `json:"pressed,omitempty"`
	Millivolts uint16 `json:"millivolts,omitempty"`

	// Device errors and unknown wire codes.
	Code  uint16 `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}
