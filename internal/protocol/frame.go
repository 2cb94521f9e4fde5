package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("protocol")

// Frame layout, all offsets fixed:
//
//	0-1  preamble 0xA7 0xB3
//	2    length = len(payload) + trailerLen
//	3-4  checksum/reserved (opaque, round-tripped verbatim)
//	5    direction (0xC2 downlink, 0x6A uplink)
//	6-7  link bytes (sequence/echo on uplink, zero on downlink; opaque)
//	8-9  event code, little-endian
//	10-  payload
const (
	preamble0 = 0xA7
	preamble1 = 0xB3

	// HeaderLen is the fixed number of bytes before the payload.
	HeaderLen = 10

	// trailerLen is the part of the length byte that is not payload: the
	// checksum, direction, link and event-code bytes following the length
	// field itself.
	trailerLen = 7

	// MaxPayload is the largest payload a one-byte length field can
	// declare.
	MaxPayload = 0xFF - trailerLen
)

// Direction says which way a frame travels over the link.
type Direction byte

const (
	Downlink Direction = 0xC2 // host to device
	Uplink   Direction = 0x6A // device to host
)

func (d Direction) String() string {
	switch d {
	case Downlink:
		return "downlink"
	case Uplink:
		return "uplink"
	}
	return fmt.Sprintf("direction(0x%02X)", byte(d))
}

var (
	ErrFrameTooShort   = errors.New("protocol: frame shorter than header")
	ErrBadPreamble     = errors.New("protocol: bad preamble")
	ErrBadDirection    = errors.New("protocol: bad direction byte")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds length field range")
)

// Packet is one fully reassembled, parsed frame. Immutable once returned
// by Parse; consumed and discarded per dispatch.
type Packet struct {
	// Def is the matched event definition. For codes missing from the
	// registry a synthetic definition is filled in and Unknown is set, so
	// callers can log-and-skip instead of failing on newer firmware.
	Def       *EventDef
	Code      uint16
	Direction Direction
	Unknown   bool

	// Check and Link round-trip the opaque header fields.
	Check [2]byte
	Link  [2]byte

	Payload []byte

	// Decoded is the result of Def.Decode(Payload), when the definition
	// has a decoder and it succeeded.
	Decoded any
}

// IsResponse reports whether the packet can be a response to an outstanding
// command on the same code.
func (p *Packet) IsResponse() bool {
	return p.Direction == Uplink && !p.Unknown && p.Def.IsCommand
}

// SuccessOK checks the response success byte, when the definition declares
// one. Packets without a declared success byte always pass.
func (p *Packet) SuccessOK() bool {
	if p.Unknown || !p.Def.HasSuccess {
		return true
	}
	return len(p.Payload) > 0 && p.Payload[0] == p.Def.SuccessByte
}

// Build assembles a wire frame for the given event and payload. The
// checksum and link fields are zero; the sled accepts zeroed reserved
// fields on downlink and test fixtures fill them to exercise round-trips.
func Build(def *EventDef, payload []byte, dir Direction) ([]byte, error) {
	want := def.PayloadLen
	if dir == Uplink {
		want = def.ResponseLen
	}
	if want != VarLen && len(payload) != want {
		return nil, fmt.Errorf("protocol: %s payload %d bytes, want %d",
			def.Name, len(payload), want)
	}
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	frame := make([]byte, HeaderLen+len(payload))
	frame[0] = preamble0
	frame[1] = preamble1
	frame[2] = byte(len(payload) + trailerLen)
	// frame[3:5] checksum/reserved, frame[6:8] link: left zero.
	frame[5] = byte(dir)
	binary.LittleEndian.PutUint16(frame[8:10], def.Code)
	copy(frame[HeaderLen:], payload)
	return frame, nil
}

// Parse decodes exactly one frame. The buffer must contain the whole frame
// and nothing more; callers draining a byte stream use Assembler instead.
func Parse(buf []byte) (*Packet, error) {
	if len(buf) < HeaderLen {
		return nil, ErrFrameTooShort
	}
	if buf[0] != preamble0 || buf[1] != preamble1 {
		return nil, ErrBadPreamble
	}
	declared := int(buf[2]) - trailerLen
	if declared < 0 {
		return nil, fmt.Errorf("protocol: length byte 0x%02X below trailer size", buf[2])
	}
	if len(buf) != HeaderLen+declared {
		return nil, fmt.Errorf("protocol: got %d bytes, length field declares %d",
			len(buf), HeaderLen+declared)
	}
	dir := Direction(buf[5])
	if dir != Downlink && dir != Uplink {
		return nil, ErrBadDirection
	}

	code := binary.LittleEndian.Uint16(buf[8:10])
	pkt := &Packet{
		Code:      code,
		Direction: dir,
		Payload:   append([]byte(nil), buf[HeaderLen:]...),
	}
	copy(pkt.Check[:], buf[3:5])
	copy(pkt.Link[:], buf[6:8])

	def, ok := Lookup(code)
	if !ok {
		// Never an error: firmware revisions grow new codes and the
		// router logs and skips them.
		pkt.Unknown = true
		pkt.Def = &EventDef{Code: code, Name: fmt.Sprintf("UNKNOWN_%04X", code),
			PayloadLen: VarLen, ResponseLen: VarLen}
		return pkt, nil
	}
	pkt.Def = def

	if def.Decode != nil && len(pkt.Payload) > 0 {
		v, err := def.Decode(pkt.Payload)
		if err != nil {
			logger.Warningf("decode %s payload: %v", def.Name, err)
		} else {
			pkt.Decoded = v
		}
	}
	return pkt, nil
}

// Fragment slices a built frame into MTU-sized chunks for sequential
// transport writes. mtu below 1 is treated as 1.
func Fragment(frame []byte, mtu int) [][]byte {
	if mtu < 1 {
		mtu = 1
	}
	out := make([][]byte, 0, (len(frame)+mtu-1)/mtu)
	for len(frame) > mtu {
		out = append(out, frame[:mtu])
		frame = frame[mtu:]
	}
	if len(frame) > 0 {
		out = append(out, frame)
	}
	return out
}
