package modbus

// Scanner recovers frame boundaries from a raw RTU byte stream.
//
// Real RTU framing relies on bus silence, which the TCP bridge does not
// preserve: reads deliver arbitrary chunks that split, merge or corrupt
// frames. Candidate frames are therefore validated at the buffer head by
// shape plus trailing CRC16, and the window advances a single byte when
// nothing validates.
type Scanner struct {
	buf []byte
}

func NewScanner() *Scanner {
	return &Scanner{buf: make([]byte, 0, MaxFrameLen)}
}

// Reset drops all buffered bytes. Called on every (re)connect so a
// partial frame never bridges two connections.
func (s *Scanner) Reset() {
	s.buf = s.buf[:0]
}

// Buffered reports how many bytes are held awaiting more input.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// Feed appends p and extracts every complete frame now available.
// discarded counts the leading bytes dropped while resynchronizing.
func (s *Scanner) Feed(p []byte) (frames []Frame, discarded int) {
	if len(p) > 0 {
		s.buf = append(s.buf, p...)
	}
	for len(s.buf) >= 4 {
		fr, n := scanFront(s.buf)
		if n > 0 {
			frames = append(frames, fr)
			s.buf = s.buf[n:]
			continue
		}
		if n < 0 && len(s.buf) <= MaxFrameLen {
			// A plausible candidate may still complete.
			break
		}
		s.buf = s.buf[1:]
		discarded++
	}
	return frames, discarded
}

// scanFront tries to decode a frame at the head of buf. It returns the
// frame and its consumed length on success, n == -1 when a plausible
// candidate needs more bytes, and n == 0 when the head cannot open a
// frame and must be discarded.
func scanFront(buf []byte) (Frame, int) {
	if !plausibleSlave(buf[0]) || !knownFunction(buf[1]) {
		return Frame{}, 0
	}
	waiting := false
	for _, n := range candidateLens(buf[1], buf[2]) {
		if n > len(buf) {
			waiting = true
			continue
		}
		if !checksumOK(buf[:n]) {
			continue
		}
		fr, err := Decode(buf[:n])
		if err != nil {
			continue
		}
		return fr, n
	}
	if waiting {
		return Frame{}, -1
	}
	return Frame{}, 0
}

// candidateLens lists the plausible frame lengths for this head,
// shortest first, mirroring how the bus itself resolves ambiguity: the
// first CRC-consistent prefix wins.
func candidateLens(function, byteCount byte) []int {
	if function == FuncWriteSingle {
		return []int{writeFrameLen}
	}
	lens := make([]int, 0, 2)
	rl, ok := responseLen(function, byteCount)
	if ok && rl < requestFrameLen {
		lens = append(lens, rl)
	}
	lens = append(lens, requestFrameLen)
	if ok && rl > requestFrameLen {
		lens = append(lens, rl)
	}
	return lens
}
