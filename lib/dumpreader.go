package svn

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// DumpReader is a wrapper and series of helpers around a buffered dump
// stream. Reads are in ChunkSize units.
type DumpReader struct {
	r      *bufio.Reader
	offset int64
}

// NewDumpReader wraps source for tokenizing.
func NewDumpReader(source io.Reader) *DumpReader {
	return &DumpReader{r: bufio.NewReaderSize(source, ChunkSize)}
}

// Offset returns the number of bytes consumed so far.
func (r *DumpReader) Offset() int64 {
	return r.offset
}

// readLine consumes one line and returns it without its newline. A final
// line without a newline is incomplete data.
func (r *DumpReader) readLine() ([]byte, error) {
	line, err := r.r.ReadSlice('\n')
	r.offset += int64(len(line))
	if err == bufio.ErrBufferFull {
		// Unusually long header line; gather the rest of it.
		long := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			line, err = r.r.ReadSlice('\n')
			r.offset += int64(len(line))
			long = append(long, line...)
		}
		line = long
	}
	if err == io.EOF {
		if len(line) == 0 {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(ErrIncompleteData, "unterminated line at offset %d", r.offset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading dump")
	}
	return line[:len(line)-1], nil
}

// ReadHeaders reads the next header block, skipping any blank lines that
// precede it. Returns io.EOF when the stream ends cleanly between records.
func (r *DumpReader) ReadHeaders() (*Headers, error) {
	var line []byte
	var err error
	for {
		if line, err = r.readLine(); err != nil {
			return nil, err
		}
		if len(line) > 0 {
			break
		}
	}

	h := NewHeaders()
	for len(line) > 0 {
		key, value, err := ReadHeader(line)
		if err != nil {
			return nil, errors.Wrapf(err, "at offset %d", r.offset)
		}
		h.Set(key, value)

		if line, err = r.readLine(); err != nil {
			if err == io.EOF {
				return nil, errors.Wrapf(ErrIncompleteData, "header block at offset %d", r.offset)
			}
			return nil, err
		}
	}

	return h, nil
}

// ReadBlock consumes exactly length bytes.
func (r *DumpReader) ReadBlock(length int64) ([]byte, error) {
	block := make([]byte, length)
	n, err := io.ReadFull(r.r, block)
	r.offset += int64(n)
	if err != nil {
		return nil, r.shortRead(err, length, int64(n))
	}
	return block, nil
}

// Discard skips length bytes.
func (r *DumpReader) Discard(length int64) error {
	n, err := io.CopyN(io.Discard, r.r, length)
	r.offset += n
	if err != nil {
		return r.shortRead(err, length, n)
	}
	return nil
}

func (r *DumpReader) shortRead(err error, want, got int64) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrIncompleteData, "wanted %d bytes, got %d at offset %d", want, got, r.offset)
	}
	return errors.Wrap(err, "reading dump")
}

// Section returns a reader limited to the next length bytes.
func (r *DumpReader) Section(length int64) *SectionReader {
	return &SectionReader{dump: r, remaining: length, length: length}
}

// SectionReader reads a fixed-length content body. Running out of stream
// before the body ends yields ErrIncompleteData rather than io.EOF.
type SectionReader struct {
	dump      *DumpReader
	remaining int64
	length    int64
}

func (s *SectionReader) Read(p []byte) (int, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.dump.r.Read(p)
	s.remaining -= int64(n)
	s.dump.offset += int64(n)
	if err == io.EOF {
		if s.remaining > 0 {
			return n, errors.Wrapf(ErrIncompleteData, "content body short by %d of %d bytes", s.remaining, s.length)
		}
		err = nil
	}
	if err != nil {
		return n, errors.Wrap(err, "reading dump")
	}
	return n, nil
}

// Drain discards whatever the consumer left unread.
func (s *SectionReader) Drain() error {
	if s.remaining <= 0 {
		return nil
	}
	n := s.remaining
	s.remaining = 0
	return s.dump.Discard(n)
}
