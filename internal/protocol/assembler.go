package protocol

// Assembler reassembles frames from a transport that delivers arbitrary
// chunk sizes. Chunks are appended to an internal buffer and every frame
// whose declared length is fully buffered is parsed out; a partial frame
// stays buffered until the next chunk. A packet is only ever surfaced
// whole.
type Assembler struct {
	buf []byte
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{buf: make([]byte, 0, 64)}
}

// Reset drops any buffered partial frame. Call on (re)connect so stale
// bytes from a previous session cannot prefix the next frame.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
}

// Pending returns the number of buffered bytes not yet part of a completed
// frame.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Feed appends one transport chunk and returns every frame completed by
// it, in arrival order. A chunk may complete zero, one or several frames.
// Garbage before a preamble is skipped; a frame that fails to parse is
// dropped and scanning resumes at the next preamble. The returned error
// reports the first such drop (parsing continues past it).
func (a *Assembler) Feed(chunk []byte) ([]*Packet, error) {
	a.buf = append(a.buf, chunk...)

	var (
		packets  []*Packet
		firstErr error
	)
	for {
		a.sync()
		if len(a.buf) < HeaderLen {
			break
		}
		total := HeaderLen + int(a.buf[2]) - trailerLen
		if total < HeaderLen {
			// Length byte below the trailer size cannot start a
			// frame; shift one byte and rescan.
			if firstErr == nil {
				firstErr = ErrFrameTooShort
			}
			a.buf = a.buf[1:]
			continue
		}
		if len(a.buf) < total {
			break
		}
		pkt, err := Parse(a.buf[:total])
		if err != nil {
			logger.Warningf("dropping malformed frame: %v", err)
			if firstErr == nil {
				firstErr = err
			}
			a.buf = a.buf[1:]
			continue
		}
		packets = append(packets, pkt)
		a.buf = append(a.buf[:0], a.buf[total:]...)
	}
	return packets, firstErr
}

// sync discards leading bytes up to the next plausible preamble.
func (a *Assembler) sync() {
	for len(a.buf) > 0 && a.buf[0] != preamble0 {
		a.buf = a.buf[1:]
	}
	if len(a.buf) >= 2 && a.buf[1] != preamble1 {
		a.buf = a.buf[1:]
		a.sync()
	}
}
