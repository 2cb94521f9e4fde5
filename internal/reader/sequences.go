package reader

import (
	"fmt"

	"github.com/trakrf/platform-sub014/internal/protocol"
)

// Sub-operations of the consolidated RFID firmware command (event
// 0x8002). The first payload byte selects the operation; the rest is
// operation-specific.
const (
	fwOpStartInventory byte = 0x31
	fwOpStopInventory  byte = 0x30
	fwOpSetRegion      byte = 0x22
	fwOpSetPower       byte = 0x2F
	fwOpLocate         byte = 0x33
)

func fwPayload(op byte, args ...byte) []byte {
	return append([]byte{op}, args...)
}

// Region and power defaults sent during inventory/locate configuration.
const (
	regionETSI      byte = 0x02
	defaultPowerDBm byte = 0x1E // 30 dBm
)

// configSequence is the mode-change script for target. Each script powers
// the right module, configures it, and lands the machine in READY (or
// CONNECTED for idle). Power transitions carry a retry: the rails
// occasionally miss the first command right after waking.
func configSequence(target Mode) ([]Step, error) {
	switch target {
	case ModeIdle:
		return []Step{
			{Event: protocol.EvRFIDPowerOff, RetryOnError: true},
			{Event: protocol.EvBarcodePowerOff, RetryOnError: true},
			{Event: protocol.EvBatteryReportOff, FinalState: StateConnected},
		}, nil
	case ModeInventory:
		return []Step{
			{Event: protocol.EvBarcodePowerOff, RetryOnError: true},
			{Event: protocol.EvRFIDPowerOn, RetryOnError: true},
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpSetRegion, regionETSI)},
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpSetPower, defaultPowerDBm)},
			{Event: protocol.EvBatteryReportOn, FinalState: StateReady},
		}, nil
	case ModeLocate:
		return []Step{
			{Event: protocol.EvBarcodePowerOff, RetryOnError: true},
			{Event: protocol.EvRFIDPowerOn, RetryOnError: true},
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpSetRegion, regionETSI)},
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpSetPower, defaultPowerDBm)},
			{Event: protocol.EvTriggerReportOn, FinalState: StateReady},
		}, nil
	case ModeBarcode:
		return []Step{
			{Event: protocol.EvRFIDPowerOff, RetryOnError: true},
			{Event: protocol.EvBarcodePowerOn, RetryOnError: true},
			{Event: protocol.EvTriggerReportOn, FinalState: StateReady},
		}, nil
	}
	return nil, fmt.Errorf("reader: no configuration sequence for mode %v", target)
}

// startSequence begins scanning in the current mode.
func startSequence(mode Mode) ([]Step, error) {
	switch mode {
	case ModeInventory:
		return []Step{
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpStartInventory),
				RetryOnError: true, FinalState: StateScanning},
		}, nil
	case ModeLocate:
		return []Step{
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpLocate),
				RetryOnError: true, FinalState: StateScanning},
		}, nil
	case ModeBarcode:
		return []Step{
			{Event: protocol.EvBarcodeESC, Payload: protocol.ESCTriggerScan,
				RetryOnError: true, FinalState: StateScanning},
		}, nil
	}
	return nil, fmt.Errorf("reader: mode %v cannot scan", mode)
}

// stopSequence halts an in-progress scan. The explicit stop request and
// the barcode handler's auto-stop both run this same script.
func stopSequence(mode Mode) ([]Step, error) {
	switch mode {
	case ModeInventory, ModeLocate:
		return []Step{
			{Event: protocol.EvRFIDFirmware, Payload: fwPayload(fwOpStopInventory),
				RetryOnError: true, FinalState: StateConnected},
		}, nil
	case ModeBarcode:
		return []Step{
			{Event: protocol.EvBarcodeESC, Payload: protocol.ESCStopScan,
				RetryOnError: true, FinalState: StateConnected},
		}, nil
	}
	return nil, fmt.Errorf("reader: mode %v cannot scan", mode)
}

// reportSequence toggles autonomous battery/trigger reporting.
func reportSequence(battery, trigger bool) []Step {
	steps := make([]Step, 0, 2)
	if battery {
		steps = append(steps, Step{Event: protocol.EvBatteryReportOn})
	} else {
		steps = append(steps, Step{Event: protocol.EvBatteryReportOff})
	}
	if trigger {
		steps = append(steps, Step{Event: protocol.EvTriggerReportOn})
	} else {
		steps = append(steps, Step{Event: protocol.EvTriggerReportOff})
	}
	return steps
}
