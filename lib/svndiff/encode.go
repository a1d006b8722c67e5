package svndiff

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

const matchBlock = 32

// Diff writes an svndiff stream that rebuilds target from source. Each
// window covers WindowSize bytes of target and the source span at the same
// offset.
func Diff(w io.Writer, source, target []byte, version int) error {
	if version != Version0 && version != Version1 {
		return errors.Errorf("unsupported svndiff version %d", version)
	}
	if _, err := w.Write(append(append([]byte(nil), magic...), byte(version))); err != nil {
		return err
	}

	for offset := 0; offset < len(target); offset += WindowSize {
		end := min(offset+WindowSize, len(target))
		var view []byte
		if offset < len(source) {
			view = source[offset:min(offset+WindowSize, len(source))]
		}
		window := computeWindow(view, target[offset:end])
		window.SourceOffset = int64(offset)
		if len(view) == 0 {
			window.SourceOffset = 0
		}
		encoded, err := window.encode(version)
		if err != nil {
			return err
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
	}
	return nil
}

// computeWindow finds source blocks reused by target and emits new data for
// the rest.
func computeWindow(source, target []byte) *Window {
	w := &Window{SourceLength: len(source), TargetLength: len(target)}

	index := make(map[[matchBlock]byte]int)
	for pos := 0; pos+matchBlock <= len(source); pos += matchBlock {
		key := [matchBlock]byte(source[pos : pos+matchBlock])
		if _, ok := index[key]; !ok {
			index[key] = pos
		}
	}

	pending := 0
	emitNew := func(upto int) {
		if upto > pending {
			w.Ops = append(w.Ops, Op{Action: CopyNew, Offset: len(w.NewData), Length: upto - pending})
			w.NewData = append(w.NewData, target[pending:upto]...)
		}
	}

	for i := 0; i+matchBlock <= len(target); {
		pos, ok := index[[matchBlock]byte(target[i:i+matchBlock])]
		if !ok {
			i++
			continue
		}
		n := matchBlock
		for pos+n < len(source) && i+n < len(target) && source[pos+n] == target[i+n] {
			n++
		}
		emitNew(i)
		w.Ops = append(w.Ops, Op{Action: CopySource, Offset: pos, Length: n})
		i += n
		pending = i
	}
	emitNew(len(target))

	return w
}

func (w *Window) encode(version int) ([]byte, error) {
	var ops []byte
	for _, op := range w.Ops {
		if op.Length < 64 {
			ops = append(ops, byte(op.Action)<<6|byte(op.Length))
		} else {
			ops = append(ops, byte(op.Action)<<6)
			ops = appendInt(ops, uint64(op.Length))
		}
		if op.Action != CopyNew {
			ops = appendInt(ops, uint64(op.Offset))
		}
	}
	data := w.NewData

	if version == Version1 {
		var err error
		if ops, err = compressSection(ops); err != nil {
			return nil, err
		}
		if data, err = compressSection(data); err != nil {
			return nil, err
		}
	}

	out := appendInt(nil, uint64(w.SourceOffset))
	out = appendInt(out, uint64(w.SourceLength))
	out = appendInt(out, uint64(w.TargetLength))
	out = appendInt(out, uint64(len(ops)))
	out = appendInt(out, uint64(len(data)))
	out = append(out, ops...)
	return append(out, data...), nil
}

// compressSection prefixes a section with its plain length and zlib
// compresses it when that makes it smaller.
func compressSection(plain []byte) ([]byte, error) {
	out := appendInt(nil, uint64(len(plain)))
	if len(plain) == 0 {
		return out, nil
	}
	var packed bytes.Buffer
	zw := zlib.NewWriter(&packed)
	if _, err := zw.Write(plain); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if packed.Len() < len(plain) {
		return append(out, packed.Bytes()...), nil
	}
	return append(out, plain...), nil
}
