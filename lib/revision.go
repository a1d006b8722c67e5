package svn

import (
	"strconv"

	"github.com/pkg/errors"
)

// Revnum is a repository revision number.
type Revnum int64

// InvalidRevnum marks the absence of a revision.
const InvalidRevnum Revnum = -1

// Valid reports whether r names a revision at all.
func (r Revnum) Valid() bool {
	return r >= 0
}

func (r Revnum) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// ParseRevnum converts the decimal representation of a revision number.
func ParseRevnum(s string) (Revnum, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return InvalidRevnum, errors.Wrapf(ErrInvalidHeader, "revision number '%s'", s)
	}
	if n < 0 {
		return InvalidRevnum, errors.Wrapf(ErrInvalidHeader, "negative revision number '%s'", s)
	}
	return Revnum(n), nil
}

// RevisionRecord is the parsed form of a revision's headers and properties,
// as collected by consumers that need to look at a whole revision at once.
type RevisionRecord struct {
	Number     Revnum
	Headers    *Headers
	Properties *Properties
}

// NewRevisionRecord extracts the revision number from a revision header block.
func NewRevisionRecord(headers *Headers) (*RevisionRecord, error) {
	number, err := headers.Revnum(RevisionNumberHeader)
	if err != nil {
		return nil, err
	}
	return &RevisionRecord{Number: number, Headers: headers.Clone(), Properties: NewProperties()}, nil
}
