package svn

import (
	"io"

	"github.com/pkg/errors"
)

// Encoder batches dump output into 4kb writes. The first write error sticks:
// later writes are dropped and Err/Flush report it.
type Encoder struct {
	w       io.Writer
	buffer  []byte
	written int64
	err     error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buffer: make([]byte, 0, 4*1024)}
}

// Write queues data for output. It satisfies io.Writer so text bodies can be
// copied straight in.
func (e *Encoder) Write(data []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n := len(data)
	e.written += int64(n)

	// If there's stuff in the buffer, try to add to it unless
	// that would push us over the cap. If it pushes us over
	// the cap, write the buffer and leave data outstanding.
	if len(e.buffer)+len(data) <= cap(e.buffer) {
		e.buffer = append(e.buffer, data...)
		return n, nil
	}
	if len(e.buffer) > 0 {
		cut := cap(e.buffer) - len(e.buffer)
		e.buffer = append(e.buffer, data[:cut]...)
		if e.flushBuffer(); e.err != nil {
			return 0, e.err
		}
		data = data[cut:]
	}
	if len(data) <= cap(e.buffer) {
		e.buffer = append(e.buffer, data...)
		return n, nil
	}
	if _, err := e.w.Write(data); err != nil {
		e.err = errors.Wrap(err, "writing dump")
		return 0, e.err
	}
	return n, nil
}

func (e *Encoder) Newlines(n int) {
	switch n {
	case 0:
		return
	case 1:
		e.Write([]byte{'\n'})
	case 2:
		e.Write([]byte{'\n', '\n'})
	default:
		panic("invalid newline count")
	}
}

func (e *Encoder) flushBuffer() {
	if len(e.buffer) == 0 || e.err != nil {
		return
	}
	if _, err := e.w.Write(e.buffer); err != nil {
		e.err = errors.Wrap(err, "writing dump")
	}
	e.buffer = e.buffer[:0]
}

// Flush pushes buffered bytes to the underlying writer.
func (e *Encoder) Flush() error {
	e.flushBuffer()
	return e.err
}

// Err returns the first write error, if any.
func (e *Encoder) Err() error {
	return e.err
}

// Written counts the bytes accepted so far.
func (e *Encoder) Written() int64 {
	return e.written
}
