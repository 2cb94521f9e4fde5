package monitor

import (
	"encoding/json"
	"testing"
)

func TestSnapshotTracksCounters(t *testing.T) {
	before := Snapshot()
	FramesParsed.Inc(3)
	BarcodesRead.Inc(1)
	after := Snapshot()

	if after.FramesParsed-before.FramesParsed != 3 {
		t.Errorf("FramesParsed delta => %d; want 3", after.FramesParsed-before.FramesParsed)
	}
	if after.BarcodesRead-before.BarcodesRead != 1 {
		t.Errorf("BarcodesRead delta => %d; want 1", after.BarcodesRead-before.BarcodesRead)
	}
	if after.PID <= 0 || after.UpTime == "" {
		t.Errorf("process fields => PID %d UpTime %q", after.PID, after.UpTime)
	}
}

func TestSnapshotMarshals(t *testing.T) {
	b, err := json.Marshal(Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"UpTime", "FramesParsed", "ClientsConnected"} {
		if _, ok := m[key]; !ok {
			t.Errorf("snapshot JSON missing %q", key)
		}
	}
}
