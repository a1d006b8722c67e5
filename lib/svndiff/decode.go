package svndiff

import (
	"bytes"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Decoder is an io.Writer that accepts an svndiff stream in arbitrary chunks
// and writes the rebuilt text to target as each window completes.
type Decoder struct {
	source  []byte
	target  io.Writer
	version int
	pending []byte
	started bool
	out     []byte
}

// NewDecoder returns a Decoder applying deltas against source.
func NewDecoder(source []byte, target io.Writer) *Decoder {
	return &Decoder{source: source, target: target, version: -1}
}

func (d *Decoder) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)

	if !d.started {
		if len(d.pending) < 4 {
			return len(p), nil
		}
		if !bytes.Equal(d.pending[:3], magic) || d.pending[3] > Version1 {
			return 0, errors.Wrap(ErrCorrupt, "bad svndiff header")
		}
		d.version = int(d.pending[3])
		d.pending = d.pending[4:]
		d.started = true
	}

	for len(d.pending) > 0 {
		window, used, err := parseWindow(d.pending, d.version)
		if err != nil {
			return 0, err
		}
		if used == 0 {
			break
		}
		d.pending = d.pending[used:]
		if err := d.apply(window); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (d *Decoder) apply(w *Window) error {
	var view []byte
	if w.SourceLength > 0 {
		end := w.SourceOffset + int64(w.SourceLength)
		if end > int64(len(d.source)) {
			return errors.Wrapf(ErrCorrupt, "source view %d+%d beyond %d byte source", w.SourceOffset, w.SourceLength, len(d.source))
		}
		view = d.source[w.SourceOffset:end]
	}
	out, err := w.Apply(view, d.out[:0])
	if err != nil {
		return err
	}
	d.out = out
	_, err = d.target.Write(out)
	return err
}

// Close reports an error if the stream stopped part way through.
func (d *Decoder) Close() error {
	if !d.started || len(d.pending) > 0 {
		return ErrIncomplete
	}
	return nil
}

// Apply decodes a complete svndiff stream against source.
func Apply(source, delta []byte) ([]byte, error) {
	var out bytes.Buffer
	d := NewDecoder(source, &out)
	if _, err := d.Write(delta); err != nil {
		return nil, err
	}
	if err := d.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// parseWindow decodes one window from the front of data. used is 0 if data
// does not yet hold the whole window.
func parseWindow(data []byte, version int) (*Window, int, error) {
	var fields [5]uint64
	used := 0
	for i := range fields {
		v, n, err := readInt(data[used:])
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return nil, 0, nil
		}
		fields[i] = v
		used += n
	}
	for i, name := range []string{"source offset", "source length", "target length", "instructions length", "new data length"} {
		limit := uint64(MaxViewLength)
		if i == 0 {
			limit = math.MaxInt64 - fields[1]
		}
		if fields[i] > limit {
			return nil, 0, errors.Wrapf(ErrCorrupt, "%s %d out of range", name, fields[i])
		}
	}
	opsLen, dataLen := int(fields[3]), int(fields[4])
	if len(data)-used < opsLen+dataLen {
		return nil, 0, nil
	}

	ops, newData := data[used:used+opsLen], data[used+opsLen:used+opsLen+dataLen]
	used += opsLen + dataLen

	if version == Version1 {
		var err error
		if ops, err = decompressSection(ops); err != nil {
			return nil, 0, err
		}
		if newData, err = decompressSection(newData); err != nil {
			return nil, 0, err
		}
	}

	w := &Window{
		SourceOffset: int64(fields[0]),
		SourceLength: int(fields[1]),
		TargetLength: int(fields[2]),
		NewData:      append([]byte(nil), newData...),
	}
	for len(ops) > 0 {
		op := Op{Action: Action(ops[0] >> 6), Length: int(ops[0] & 0x3f)}
		ops = ops[1:]
		if op.Length == 0 {
			v, n, err := readInt(ops)
			if err != nil || n == 0 {
				return nil, 0, errors.Wrap(ErrCorrupt, "truncated instruction length")
			}
			if v > uint64(w.TargetLength) {
				return nil, 0, errors.Wrapf(ErrCorrupt, "instruction length %d exceeds window", v)
			}
			op.Length, ops = int(v), ops[n:]
		}
		if op.Action != CopyNew {
			v, n, err := readInt(ops)
			if err != nil || n == 0 {
				return nil, 0, errors.Wrap(ErrCorrupt, "truncated instruction offset")
			}
			if v > MaxViewLength {
				return nil, 0, errors.Wrapf(ErrCorrupt, "instruction offset %d out of range", v)
			}
			op.Offset, ops = int(v), ops[n:]
		}
		w.Ops = append(w.Ops, op)
	}
	// New data is consumed in order by CopyNew instructions.
	offset := 0
	for i := range w.Ops {
		if w.Ops[i].Action == CopyNew {
			w.Ops[i].Offset = offset
			offset += w.Ops[i].Length
		}
	}
	return w, used, nil
}

func decompressSection(section []byte) ([]byte, error) {
	plainLen, n, err := readInt(section)
	if err != nil || n == 0 {
		return nil, errors.Wrap(ErrCorrupt, "truncated section length")
	}
	if plainLen > MaxViewLength {
		return nil, errors.Wrapf(ErrCorrupt, "section length %d out of range", plainLen)
	}
	section = section[n:]
	if uint64(len(section)) == plainLen {
		return section, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(section))
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	defer zr.Close()
	plain := make([]byte, plainLen)
	if _, err := io.ReadFull(zr, plain); err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return plain, nil
}
