package svn

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
)

// ChecksumKind names a digest algorithm used in dump headers.
type ChecksumKind string

const (
	MD5  ChecksumKind = "md5"
	SHA1 ChecksumKind = "sha1"
)

// Digester computes the md5 and sha1 of everything written to it.
type Digester struct {
	md5  hash.Hash
	sha1 hash.Hash
	w    io.Writer
}

func NewDigester() *Digester {
	d := &Digester{md5: md5.New(), sha1: sha1.New()}
	d.w = io.MultiWriter(d.md5, d.sha1)
	return d
}

func (d *Digester) Write(p []byte) (int, error) {
	return d.w.Write(p)
}

// Sum returns the hex digest for kind.
func (d *Digester) Sum(kind ChecksumKind) string {
	if kind == SHA1 {
		return hex.EncodeToString(d.sha1.Sum(nil))
	}
	return hex.EncodeToString(d.md5.Sum(nil))
}

// Checksum returns the hex digest of data.
func Checksum(kind ChecksumKind, data []byte) string {
	d := NewDigester()
	d.Write(data)
	return d.Sum(kind)
}

// VerifyChecksum compares a declared digest with the actual one. An empty
// declaration always passes.
func VerifyChecksum(path string, kind ChecksumKind, expected, actual string) error {
	if expected == "" || expected == actual {
		return nil
	}
	return &ChecksumError{Path: path, Algorithm: kind, Expected: expected, Actual: actual}
}
