package svn

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// StdStream names stdin or stdout in place of a file name.
const StdStream = "-"

// Compression is the container format of a dump file, chosen by extension.
type Compression int

const (
	Uncompressed Compression = iota
	Zstd
	LZ4
	Gzip
)

// CompressionFor picks the compression of a dump file from its name.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	case ".gz":
		return Gzip
	}
	return Uncompressed
}

// DumpSource is an opened dump stream. Uncompressed files are memory
// mapped; compressed ones are decompressed as they are read.
type DumpSource struct {
	io.Reader
	Path string

	data    mmap.MMap
	closers []func() error
}

// OpenDumpSource opens a dump file, or stdin for "-" or "".
func OpenDumpSource(path string) (*DumpSource, error) {
	if path == "" || path == StdStream {
		return &DumpSource{Reader: os.Stdin, Path: StdStream}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	source := &DumpSource{Path: path}
	source.closers = append(source.closers, file.Close)

	switch CompressionFor(path) {
	case Zstd:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			source.Close()
			return nil, errors.Wrap(err, path)
		}
		source.closers = append(source.closers, func() error { decoder.Close(); return nil })
		source.Reader = decoder
	case LZ4:
		source.Reader = lz4.NewReader(file)
	case Gzip:
		decoder, err := gzip.NewReader(file)
		if err != nil {
			source.Close()
			return nil, errors.Wrap(err, path)
		}
		source.closers = append(source.closers, decoder.Close)
		source.Reader = decoder
	default:
		if err := source.mapFile(file); err != nil {
			source.Close()
			return nil, err
		}
	}

	return source, nil
}

func (s *DumpSource) mapFile(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		s.Reader = bytes.NewReader(nil)
		return nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return errors.Wrap(err, s.Path)
	}
	s.data = data
	s.closers = append(s.closers, s.data.Unmap)

	if err := checkValidSource(data); err != nil {
		return errors.Wrap(err, s.Path)
	}
	s.Reader = bytes.NewReader(data)
	return nil
}

// Close releases resources held by the source. Note: This will invalidate
// any slices referencing the data since it releases the mmap.
func (s *DumpSource) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// checkValidSource tests that a mapped file looks like an actual, valid svn dump.
// Also checks that the user created the dump with "-F" by testing whether the
// first line has windows (CRLF) line endings. The OS adds these when svnadmin
// writes to the console and invalidates all of the headers by making the byte
// counts wrong (svnadmin is unaware these characters are being added).
func checkValidSource(source []byte) error {
	if !bytes.HasPrefix(source, []byte(VersionStringHeader+":")) {
		return errors.Wrap(ErrMalformedStream, "missing dump format header, not an svnadmin dump file?")
	}

	// Now check that there's a newline on this line, but don't look too far.
	lf := bytes.IndexByte(source[:min(len(source), len(VersionStringHeader)*2)], '\n')
	if lf < len(VersionStringHeader) {
		return errors.Wrap(ErrMalformedStream, "unrecognized dump file format, not an svnadmin dump file?")
	}

	// Great, just check there's no <cr> caused by outputting it to a CRLF console.
	if cr := bytes.IndexByte(source[:lf], '\r'); cr != -1 {
		return errors.Wrap(ErrMalformedStream, "windows line-ending translations detected, on windows use `svnadmin dump -F filename` rather than redirecting output")
	}

	return nil
}

// DumpSink is an output dump stream, compressed according to its name.
type DumpSink struct {
	io.Writer
	Path string

	closers []func() error
}

// CreateDumpSink creates a dump file, or writes to stdout for "-" or "".
func CreateDumpSink(path string) (*DumpSink, error) {
	if path == "" || path == StdStream {
		return &DumpSink{Writer: os.Stdout, Path: StdStream}, nil
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	sink := &DumpSink{Writer: file, Path: path}
	sink.closers = append(sink.closers, file.Close)

	switch CompressionFor(path) {
	case Zstd:
		encoder, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, errors.Wrap(err, path)
		}
		sink.Writer = encoder
		sink.closers = append(sink.closers, encoder.Close)
	case LZ4:
		encoder := lz4.NewWriter(file)
		sink.Writer = encoder
		sink.closers = append(sink.closers, encoder.Close)
	case Gzip:
		encoder := gzip.NewWriter(file)
		sink.Writer = encoder
		sink.closers = append(sink.closers, encoder.Close)
	}

	return sink, nil
}

// Close finishes any compression stream and closes the file.
func (s *DumpSink) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
