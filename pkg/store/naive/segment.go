package naive

import (
	"strconv"
)

// recordSep brackets the decimal length in a framing trailer.
const recordSep = 0x1e

// frame returns the serialized event followed by its framing trailer.
func frame(event []byte) []byte {
	length := strconv.Itoa(len(event))
	out := make([]byte, 0, len(event)+len(length)+3)
	out = append(out, event...)
	out = append(out, recordSep)
	out = append(out, length...)
	out = append(out, recordSep, '\n')
	return out
}

// nextFrame locates the framed record starting at offset start in buf.
// It returns the record's event bytes and the offset just past the
// trailer. ok is false when no complete, consistent frame begins at
// start, which is how a scan detects a half-written tail.
//
// A record separator inside event content cannot break the walk: a
// candidate trailer is accepted only if its decimal length equals the
// distance back to start.
func nextFrame(buf []byte, start int) (event []byte, next int, ok bool) {
	idx := start
	for idx < len(buf) {
		sep := indexByteFrom(buf, idx, recordSep)
		if sep < 0 {
			return nil, 0, false
		}

		digits := sep + 1
		end := digits
		for end < len(buf) && buf[end] >= '0' && buf[end] <= '9' {
			end++
		}
		if end > digits && end+1 < len(buf) && buf[end] == recordSep && buf[end+1] == '\n' {
			length, err := strconv.Atoi(string(buf[digits:end]))
			if err == nil && length == sep-start {
				return buf[start:sep], end + 2, true
			}
		}

		idx = sep + 1
	}
	return nil, 0, false
}

// validLength returns the byte length of the longest prefix of buf that
// consists of whole frames. Anything past it is a torn write.
func validLength(buf []byte) int {
	pos := 0
	for {
		_, next, ok := nextFrame(buf, pos)
		if !ok {
			return pos
		}
		pos = next
	}
}

func indexByteFrom(buf []byte, from int, c byte) int {
	for i := from; i < len(buf); i++ {
		if buf[i] == c {
			return i
		}
	}
	return -1
}
