package svn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Test for them with errors.Is; the more specific errors wrap
// the kind they belong to.
var (
	ErrMalformedStream   = errors.New("malformed dump stream")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrInvalidReference  = errors.New("invalid revision reference")
	ErrInvalidCopySource = errors.New("invalid copy source path")
	ErrContractViolation = errors.New("consumer called out of order")
	ErrUnsupported       = errors.New("unsupported")

	ErrIncompleteData    = errors.Wrap(ErrMalformedStream, "incomplete data")
	ErrMissingField      = errors.Wrap(ErrMalformedStream, "missing required field")
	ErrMissingNewline    = errors.Wrap(ErrMalformedStream, "missing newline")
	ErrInvalidHeader     = errors.Wrap(ErrMalformedStream, "invalid header")
	ErrUnknownNodeKind   = errors.Wrap(ErrMalformedStream, "unknown node kind")
	ErrUnknownNodeAction = errors.Wrap(ErrMalformedStream, "unknown node action")
	ErrBadFormatVersion  = errors.Wrap(ErrMalformedStream, "unsupported dump format version")

	ErrMissingMergeSource = errors.Wrap(ErrInvalidReference, "missing merge source path")
)

// Store errors.
var (
	ErrNotFound     = errors.New("path not found")
	ErrExists       = errors.New("path already exists")
	ErrNotDirectory = errors.New("not a directory")
	ErrNotFile      = errors.New("not a file")
	ErrNoSuchRev    = errors.New("no such revision")
	ErrTxnClosed    = errors.New("transaction is no longer open")
)

// ChecksumError describes a declared checksum that did not match the data.
type ChecksumError struct {
	Path      string
	Algorithm ChecksumKind
	Expected  string
	Actual    string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: %s checksum mismatch for '%s': expected %s, actual %s",
		ErrChecksumMismatch, e.Algorithm, e.Path, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// UnresolvedReference is returned when a revision can't be translated through
// a RenameTable.
type UnresolvedReference struct {
	Revision Revnum
	Reason   string
}

func (e *UnresolvedReference) Error() string {
	return fmt.Sprintf("%s: r%d: %s", ErrInvalidReference, e.Revision, e.Reason)
}

func (e *UnresolvedReference) Unwrap() error { return ErrInvalidReference }
