package svn

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// blockReader is a cursor over a byte slice holding a complete portion of a
// dump, such as a property block.
type blockReader struct {
	buffer []byte
}

func newBlockReader(source []byte) *blockReader {
	return &blockReader{buffer: source}
}

// Newline will attempt to consume a single newline character at the beginning
// of the buffer. Returns true if a newline was consumed, otherwise false.
func (r *blockReader) Newline() bool {
	if len(r.buffer) > 0 && r.buffer[0] == '\n' {
		r.buffer = r.buffer[1:]
		return true
	}
	return false
}

func (r *blockReader) HasPrefix(prefix string) bool {
	return bytes.HasPrefix(r.buffer, []byte(prefix))
}

// LineAfter checks if the first characters in the reader match prefix, if so, it will
// consume the entire line returning the portion after prefix, before the newline.
// If the prefix does not match, the reader is left unchanged and false is returned.
func (r *blockReader) LineAfter(prefix string) (line string, ok bool) {
	if !r.HasPrefix(prefix) {
		return "", false
	}
	newline := bytes.IndexByte(r.buffer[len(prefix):], '\n')
	if newline == -1 {
		line, r.buffer = string(r.buffer[len(prefix):]), r.buffer[len(r.buffer):]
	} else {
		line, r.buffer = string(r.buffer[len(prefix):len(prefix)+newline]), r.buffer[len(prefix)+newline+1:]
	}
	return line, true
}

// Read attempts to consume the specified number of bytes from the reader and
// returns a slice representing them.
func (r *blockReader) Read(length int) (data []byte, err error) {
	if length > len(r.buffer) {
		return nil, ErrIncompleteData
	}

	data, r.buffer = r.buffer[:length], r.buffer[length:]

	return data, nil
}

// ReadSized attempts to read a pascal-sized labelled value from the reader.
// This is where the first byte represents the type of field (K: key, V: Value,
// D: deletion), followed by an ascii representation of the length of the field,
// and a line feed, followed by length bytes of data and another line feed.
// E.g.
//
//	K 10<LF>
//	svn:ignore<LF>
func (r *blockReader) ReadSized(prefix rune) (value []byte, err error) {
	// First line should be "{prefix} <digits>\n"
	sizeStr, ok := r.LineAfter(string(prefix) + " ")
	if !ok {
		return nil, errors.Wrapf(ErrMalformedStream, "expected '%c' prefix; got: %s", prefix, r.Peek(48))
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		return nil, errors.Wrapf(ErrMalformedStream, "invalid '%c' size: %s", prefix, sizeStr)
	}
	if value, err = r.Read(size); err != nil {
		return nil, err
	}
	if !r.Newline() {
		return nil, errors.Wrapf(ErrMissingNewline, "after sized %c data: %s", prefix, string(value))
	}

	// Copy out so callers may keep the value after the block is recycled.
	return append([]byte(nil), value...), nil
}

// AtEOF returns true if there is no data left in the reader.
func (r *blockReader) AtEOF() bool {
	return len(r.buffer) == 0
}

// Peek returns a string of the next N bytes for diagnostics.
func (r *blockReader) Peek(length int) string {
	if length >= len(r.buffer) {
		return string(r.buffer)
	}
	return string(r.buffer[:length]) + "..."
}
