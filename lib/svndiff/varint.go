package svndiff

import "github.com/pkg/errors"

// Integers are big-endian base-128, high bit set on every byte but the last.

func appendInt(buf []byte, v uint64) []byte {
	var tmp [10]byte
	n := len(tmp) - 1
	tmp[n] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		n--
		tmp[n] = byte(v&0x7f) | 0x80
	}
	return append(buf, tmp[n:]...)
}

// readInt decodes an integer from the front of data, returning the number of
// bytes used, or 0 when data ends before the integer does.
func readInt(data []byte) (uint64, int, error) {
	var v uint64
	for i, b := range data {
		if i == 9 {
			return 0, 0, errors.Wrap(ErrCorrupt, "integer too long")
		}
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, nil
}
