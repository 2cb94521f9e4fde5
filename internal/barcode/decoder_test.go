package barcode

import "testing"

func TestDecode(t *testing.T) {
	var tests = []struct {
		name      string
		in        []byte
		symbology string
		data      string
	}{
		{"aim code128 numeric", []byte("j]C000123\r"), "Code 128", "123"},
		{"aim qr", []byte("q]Q1https://example.com/a\r"), "QR Code", "https://example.com/a"},
		{"aim ean", []byte("e]E04006381333931\r"), "EAN/UPC", "4006381333931"},
		{"aim data matrix", []byte("d]d110012345\r"), "Data Matrix", "10012345"},
		{"aim itf", []byte("i]I015400141288766\r"), "Interleaved 2 of 5", "15400141288766"},
		{"aim code39", []byte("a]A0ABC-123\r"), "Code 39", "ABC-123"},
		{"aim unmapped", []byte("z]X9SOMETHING\r"), "Unknown", "SOMETHING"},
		{"no prefix", []byte("PLAIN TEXT\r"), "Unknown", "PLAIN TEXT"},
		{"vendor preamble", []byte{0xFF, 0x55, 'j', ']', 'C', '0', 'A', 'B', 'C', '\r'}, "Code 128", "ABC"},
		{"alt preamble", []byte{0xAA, 0x55, 'j', ']', 'C', '0', 'X', 'Y', '\r'}, "Code 128", "XY"},
		{"control bytes stripped", []byte{0x02, 0x1C, 'j', ']', 'C', '0', 'Z', '\r'}, "Code 128", "Z"},
		{"legacy prefix", []byte("%1a$55512\r"), "Code 128", "55512"},
		{"legacy code39", []byte("%0a$WIDGET\r"), "Code 39", "WIDGET"},
		{"aim wins over legacy", []byte("j]C0%3a$DATA\r"), "Code 128", "DATA"},
		{"fixed suffix", append([]byte("j]C0END-HERE"), 0x03, 0x04, 'J', 'U', 'N', 'K'), "Code 128", "END-HERE"},
		{"cr terminator", []byte("j]C0FIRST\rSECOND"), "Code 128", "FIRST"},
		{"whitespace trimmed", []byte("j]C0  padded  \r"), "Code 128", "padded"},
		{"all zeros keeps one", []byte("j]C0000000\r"), "Code 128", "0"},
		{"zeros before alpha kept", []byte("j]C000A1\r"), "Code 128", "00A1"},
		{"single zero", []byte("j]C00\r"), "Code 128", "0"},
	}

	for _, tt := range tests {
		r := Decode(tt.in)
		if r.Symbology != tt.symbology {
			t.Errorf("%s: Decode(%q).Symbology => %q; want %q", tt.name, tt.in, r.Symbology, tt.symbology)
		}
		if r.Data != tt.data {
			t.Errorf("%s: Decode(%q).Data => %q; want %q", tt.name, tt.in, r.Data, tt.data)
		}
		if string(r.Raw) != string(tt.in) {
			t.Errorf("%s: Decode did not keep raw input", tt.name)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	r := Decode(nil)
	if r.Symbology != "UNKNOWN" || r.Data != "" {
		t.Errorf("Decode(nil) => {%q %q}; want {UNKNOWN \"\"}", r.Symbology, r.Data)
	}
	r = Decode([]byte{})
	if r.Symbology != "UNKNOWN" || r.Data != "" {
		t.Errorf("Decode(empty) => {%q %q}; want {UNKNOWN \"\"}", r.Symbology, r.Data)
	}
}
