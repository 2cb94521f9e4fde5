// Package barcode de-frames the vendor wrapping around scanned barcode
// text: preamble bytes, Code ID + AIM ID prefixes, legacy prefixes and
// fixed terminators.
package barcode

import (
	"bytes"
	"strings"
)

// Result is one decoded barcode.
type Result struct {
	// Symbology is a human-readable name ("Code 128", "QR Code", ...),
	// or "Unknown" when the scan engine did not identify one we map.
	Symbology string
	// Data is the de-framed barcode text.
	Data string
	// Raw is the payload exactly as it arrived.
	Raw []byte
}

// SymbologyUnknown is used when no symbology identifier could be mapped.
const SymbologyUnknown = "Unknown"

// Scan engine preambles seen in captures from different firmware builds.
var preambles = [][]byte{
	{0xFF, 0x55},
	{0xAA, 0x55},
}

// aimNames maps the AIM ID character (second character of an "]Xm" AIM
// identifier) to a symbology name.
var aimNames = map[byte]string{
	'C': "Code 128",
	'd': "Data Matrix",
	'E': "EAN/UPC",
	'I': "Interleaved 2 of 5",
	'A': "Code 39",
	'Q': "QR Code",
}

// legacyNames maps the digit of the old-firmware "%Xn$" prefix.
var legacyNames = map[byte]string{
	'0': "Code 39",
	'1': "Code 128",
	'2': "EAN/UPC",
	'3': "QR Code",
}

// suffix is the fixed terminator appended by the scan engine.
var suffix = []byte{0x03, 0x04}

// Decode de-frames a raw barcode notification payload. It is a pure
// function; empty input short-circuits to an UNKNOWN/empty result.
func Decode(raw []byte) Result {
	if len(raw) == 0 {
		return Result{Symbology: "UNKNOWN", Data: "", Raw: raw}
	}

	res := Result{Symbology: SymbologyUnknown, Raw: raw}
	b := raw

	for _, p := range preambles {
		if bytes.HasPrefix(b, p) {
			b = b[len(p):]
			break
		}
	}
	for len(b) > 0 && b[0] < 0x20 {
		b = b[1:]
	}

	// Code ID + AIM ID: single vendor letter, ']', AIM character,
	// modifier. Ex: "j]C0" for Code 128.
	if len(b) >= 4 && isLetter(b[0]) && b[1] == ']' {
		if name, ok := aimNames[b[2]]; ok {
			res.Symbology = name
		}
		b = b[4:]
	}

	// Legacy prefix from pre-AIM firmware: '%', symbology digit, count
	// digit, '$'.
	if len(b) >= 4 && b[0] == '%' && b[3] == '$' {
		if res.Symbology == SymbologyUnknown {
			if name, ok := legacyNames[b[1]]; ok {
				res.Symbology = name
			}
		}
		b = b[4:]
	}

	if i := bytes.Index(b, suffix); i >= 0 {
		b = b[:i]
	}
	if i := bytes.IndexByte(b, '\r'); i >= 0 {
		b = b[:i]
	}

	data := strings.TrimSpace(string(b))
	data = stripLeadingZeros(data)
	res.Data = data
	return res
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// stripLeadingZeros removes leading zeros from all-digit data, keeping at
// least one digit. Non-numeric data is returned untouched.
func stripLeadingZeros(s string) string {
	if len(s) < 2 || s[0] != '0' {
		return s
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s
		}
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
