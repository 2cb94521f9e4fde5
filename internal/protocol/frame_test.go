package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	var tests = []struct {
		code    uint16
		payload []byte
		dir     Direction
	}{
		{EvRFIDPowerOn, nil, Downlink},
		{EvRFIDPowerOff, nil, Downlink},
		{EvRFIDFirmware, []byte{0x22, 0x02}, Downlink},
		{EvBarcodeESC, []byte{0x1B, 0x30}, Downlink},
		{EvBattery, []byte{0x0F, 0xA0}, Uplink},
		{EvBarcodeData, []byte("j]C000123\r"), Uplink},
		{EvInventoryTag, []byte{0xC5, 0x30, 0x00, 0xE2, 0x00, 0x12}, Uplink},
	}

	for _, tt := range tests {
		def, ok := Lookup(tt.code)
		if !ok {
			t.Fatalf("Lookup(0x%04X) => not found", tt.code)
		}
		frame, err := Build(def, tt.payload, tt.dir)
		if err != nil {
			t.Fatalf("Build(%s) => %v", def.Name, err)
		}
		pkt, err := Parse(frame)
		if err != nil {
			t.Fatalf("Parse(Build(%s)) => %v", def.Name, err)
		}
		if pkt.Code != tt.code {
			t.Errorf("Parse(Build(%s)).Code => 0x%04X; want 0x%04X", def.Name, pkt.Code, tt.code)
		}
		if pkt.Direction != tt.dir {
			t.Errorf("Parse(Build(%s)).Direction => %v; want %v", def.Name, pkt.Direction, tt.dir)
		}
		want := tt.payload
		if want == nil {
			want = []byte{}
		}
		if !bytes.Equal(pkt.Payload, want) {
			t.Errorf("Parse(Build(%s)).Payload => % X; want % X", def.Name, pkt.Payload, want)
		}
		if pkt.Unknown {
			t.Errorf("Parse(Build(%s)).Unknown => true", def.Name)
		}
	}
}

func TestParseOpaqueFieldsRoundTrip(t *testing.T) {
	// Captured vendor fixture: the checksum and link bytes are opaque
	// and must survive a parse verbatim.
	frame := []byte{
		0xA7, 0xB3, 0x09, 0x5C, 0x13, 0x6A, 0x00, 0x07, 0x00, 0xA0, 0x0F, 0xA0,
	}
	pkt, err := Parse(frame)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Check != [2]byte{0x5C, 0x13} {
		t.Errorf("pkt.Check => % X; want 5C 13", pkt.Check)
	}
	if pkt.Link != [2]byte{0x00, 0x07} {
		t.Errorf("pkt.Link => % X; want 00 07", pkt.Link)
	}
	if pkt.Code != EvBattery {
		t.Errorf("pkt.Code => 0x%04X; want 0x%04X", pkt.Code, EvBattery)
	}
	if !reflect.DeepEqual(pkt.Decoded, BatteryReading{Millivolts: 4000}) {
		t.Errorf("pkt.Decoded => %+v; want 4000 mV", pkt.Decoded)
	}
}

func TestParseErrors(t *testing.T) {
	var tests = []struct {
		in  []byte
		err error
	}{
		{[]byte{0xA7, 0xB3, 0x07}, ErrFrameTooShort},
		{nil, ErrFrameTooShort},
		{[]byte{0x00, 0x01, 0x07, 0, 0, 0xC2, 0, 0, 0x00, 0x80}, ErrBadPreamble},
		{[]byte{0xA7, 0xB3, 0x07, 0, 0, 0x55, 0, 0, 0x00, 0x80}, ErrBadDirection},
	}

	for _, tt := range tests {
		_, err := Parse(tt.in)
		if !errors.Is(err, tt.err) {
			t.Errorf("Parse(% X) => %v; want %v", tt.in, err, tt.err)
		}
	}
}

func TestParseUnknownEventCode(t *testing.T) {
	frame := []byte{0xA7, 0xB3, 0x08, 0, 0, 0x6A, 0, 0, 0xFF, 0xFF, 0x42}
	pkt, err := Parse(frame)
	if err != nil {
		t.Fatalf("Parse(unknown code) => %v; want packet with unknown marker", err)
	}
	if !pkt.Unknown {
		t.Error("pkt.Unknown => false; want true")
	}
	if pkt.Code != 0xFFFF {
		t.Errorf("pkt.Code => 0x%04X; want 0xFFFF", pkt.Code)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x42}) {
		t.Errorf("pkt.Payload => % X; want 42", pkt.Payload)
	}
}

func TestFragmentReassemble(t *testing.T) {
	def, _ := Lookup(EvBarcodeData)
	payload := []byte("j]C0A LONG BARCODE PAYLOAD THAT SPANS SEVERAL LINK UNITS")
	frame, err := Build(def, payload, Uplink)
	if err != nil {
		t.Fatal(err)
	}

	for mtu := 1; mtu <= len(frame)+3; mtu++ {
		var joined []byte
		for _, chunk := range Fragment(frame, mtu) {
			if len(chunk) > mtu {
				t.Fatalf("mtu %d: chunk of %d bytes", mtu, len(chunk))
			}
			joined = append(joined, chunk...)
		}
		if !bytes.Equal(joined, frame) {
			t.Fatalf("mtu %d: reassemble(fragment(frame)) != frame", mtu)
		}
	}
}

func TestSuccessOK(t *testing.T) {
	def, _ := Lookup(EvRFIDPowerOn)
	var tests = []struct {
		payload []byte
		want    bool
	}{
		{[]byte{0x00}, true},
		{[]byte{0x01}, false},
		{nil, false},
	}
	for _, tt := range tests {
		frame, err := Build(&EventDef{Code: def.Code, Name: def.Name, PayloadLen: VarLen, ResponseLen: VarLen}, tt.payload, Uplink)
		if err != nil {
			t.Fatal(err)
		}
		pkt, err := Parse(frame)
		if err != nil {
			t.Fatal(err)
		}
		if got := pkt.SuccessOK(); got != tt.want {
			t.Errorf("SuccessOK(% X) => %v; want %v", tt.payload, got, tt.want)
		}
	}
}

func BenchmarkParse(b *testing.B) {
	def, _ := Lookup(EvInventoryTag)
	frame, _ := Build(def, []byte{0xC5, 0x30, 0x00, 0xE2, 0x80, 0x68, 0x94}, Uplink)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(frame); err != nil {
			b.Fatal(err)
		}
	}
}
