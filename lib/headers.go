package svn

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Headers are a simple RFC-822 style collection of headers as a map for
// ease of access, that can easily be re-emitted as-is.
type Headers struct {
	index []string          // Preserve the order of the keys.
	table map[string]string // Map keys to values.
}

// NewHeaders returns an empty header table.
func NewHeaders() *Headers {
	return &Headers{
		index: make([]string, 0, 8),
		table: make(map[string]string),
	}
}

var headerSplit = []byte{':', ' '}

// ReadHeader interprets a byte slice as an RFC-822 style header line.
func ReadHeader(line []byte) (key string, value string, err error) {
	colon := bytes.Index(line, headerSplit)
	if colon == -1 {
		// "Key:" with an empty value is legal.
		if len(line) > 0 && line[len(line)-1] == ':' {
			return string(line[:len(line)-1]), "", nil
		}
		lineText := strings.ReplaceAll(string(line), "\r", "\\r")
		return "", "", errors.Wrapf(ErrInvalidHeader, "malformed header line: %s", lineText)
	}

	key, value = string(line[:colon]), string(line[colon+len(headerSplit):])

	return key, value, nil
}

// Has returns true if the header is present.
func (h *Headers) Has(key string) bool {
	_, ok := h.table[key]
	return ok
}

// Get returns the value of a header, or "" if it is absent.
func (h *Headers) Get(key string) string {
	return h.table[key]
}

// Int64 returns the value of a numeric header.
func (h *Headers) Int64(key string) (int64, error) {
	value, ok := h.table[key]
	if !ok {
		return 0, errors.Wrap(ErrMissingField, key)
	}
	ret, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ret < 0 {
		return 0, errors.Wrapf(ErrInvalidHeader, "%s: %s", key, value)
	}
	return ret, nil
}

// Int returns the value of a numeric header as an int.
func (h *Headers) Int(key string) (int, error) {
	v, err := h.Int64(key)
	return int(v), err
}

// Revnum returns the value of a header holding a revision number.
func (h *Headers) Revnum(key string) (Revnum, error) {
	value, ok := h.table[key]
	if !ok {
		return InvalidRevnum, errors.Wrap(ErrMissingField, key)
	}
	return ParseRevnum(value)
}

// String returns the value of a header, failing if it is absent.
func (h *Headers) String(key string) (string, error) {
	value, ok := h.table[key]
	if !ok {
		return "", errors.Wrap(ErrMissingField, key)
	}
	return value, nil
}

// Bool is true when the header is present with the value "true".
func (h *Headers) Bool(key string) bool {
	return h.table[key] == "true"
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.index)
}

// Keys returns the header names in their original order.
func (h *Headers) Keys() []string {
	return append([]string(nil), h.index...)
}

// Set assigns a header value, appending the key if it is new.
func (h *Headers) Set(key, value string) {
	if _, ok := h.table[key]; !ok {
		h.index = append(h.index, key)
	}
	h.table[key] = value
}

// Remove deletes a header.
func (h *Headers) Remove(key string) {
	if _, ok := h.table[key]; !ok {
		return
	}
	delete(h.table, key)
	if idx := Index(h.index, key); idx != -1 {
		h.index = append(h.index[:idx], h.index[idx+1:]...)
	}
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	c := &Headers{index: append([]string(nil), h.index...), table: make(map[string]string, len(h.table))}
	for k, v := range h.table {
		c.table[k] = v
	}
	return c
}

// Encode writes the headers in their original order, each terminated by a
// newline. The blank line that ends a header block is left to the caller.
func (h *Headers) Encode(w io.Writer) error {
	_, err := w.Write(h.AppendTo(make([]byte, 0, len(h.index)*48)))
	return err
}

// AppendTo appends the encoded headers to buffer.
func (h *Headers) AppendTo(buffer []byte) []byte {
	for _, key := range h.index {
		buffer = appendHeader(buffer, key, h.table[key])
	}
	return buffer
}

func appendHeader(buffer []byte, key, value string) []byte {
	buffer = append(buffer, key...)
	buffer = append(buffer, headerSplit...)
	buffer = append(buffer, value...)
	return append(buffer, '\n')
}
