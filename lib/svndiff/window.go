// Package svndiff encodes and decodes svndiff text deltas, the binary delta
// format carried by dump files with "Text-delta: true".
package svndiff

import (
	"github.com/pkg/errors"
)

// Format versions. Version 1 zlib-compresses the instruction and new-data
// sections of each window.
const (
	Version0 = 0
	Version1 = 1
)

// WindowSize is the largest target span a single window covers.
const WindowSize = 100 * 1024

// MaxViewLength bounds every length a decoded window may declare.
const MaxViewLength = 64 * WindowSize

var magic = []byte{'S', 'V', 'N'}

var (
	ErrCorrupt    = errors.New("svndiff data is corrupt")
	ErrIncomplete = errors.New("svndiff data ended mid-window")
)

// Action is what an instruction copies from.
type Action byte

const (
	CopySource Action = iota
	CopyTarget
	CopyNew
)

// Op is a single delta instruction.
type Op struct {
	Action Action
	Offset int
	Length int
}

// Window transforms a view of the source into the next span of the target.
type Window struct {
	SourceOffset int64
	SourceLength int
	TargetLength int
	Ops          []Op
	NewData      []byte
}

// Apply runs the window's instructions against a source view and appends
// the resulting target span to out.
func (w *Window) Apply(source []byte, out []byte) ([]byte, error) {
	if len(source) < w.SourceLength {
		return nil, errors.Wrapf(ErrCorrupt, "source view of %d bytes, have %d", w.SourceLength, len(source))
	}
	source = source[:w.SourceLength]
	start := len(out)
	for _, op := range w.Ops {
		switch op.Action {
		case CopySource:
			if op.Offset+op.Length > len(source) {
				return nil, errors.Wrap(ErrCorrupt, "source copy out of range")
			}
			out = append(out, source[op.Offset:op.Offset+op.Length]...)
		case CopyTarget:
			if len(out)-start+op.Length > w.TargetLength {
				return nil, errors.Wrap(ErrCorrupt, "target copy overruns window")
			}
			if op.Offset >= len(out)-start {
				return nil, errors.Wrap(ErrCorrupt, "target copy out of range")
			}
			// Byte at a time: the copy may overlap what it produces.
			for i := 0; i < op.Length; i++ {
				out = append(out, out[start+op.Offset+i])
			}
		case CopyNew:
			if op.Offset+op.Length > len(w.NewData) {
				return nil, errors.Wrap(ErrCorrupt, "new data out of range")
			}
			out = append(out, w.NewData[op.Offset:op.Offset+op.Length]...)
		default:
			return nil, errors.Wrapf(ErrCorrupt, "unknown instruction %d", op.Action)
		}
	}
	if len(out)-start != w.TargetLength {
		return nil, errors.Wrapf(ErrCorrupt, "window produced %d bytes, declared %d", len(out)-start, w.TargetLength)
	}
	return out, nil
}
