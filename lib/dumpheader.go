package svn

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// DumpHeader represents the premable of the dump, which denotes the dump format number
// and the UUID of the repository.
type DumpHeader struct {
	Format    int
	ReposUUID string
}

// CheckFormat validates a format version header value.
func CheckFormat(h *Headers) (int, error) {
	format, err := h.Int(VersionStringHeader)
	if err != nil {
		return 0, errors.Wrap(err, "not an svn dump file?")
	}
	if format < MinDumpFormat || format > MaxDumpFormat {
		return 0, errors.Wrapf(ErrBadFormatVersion, "%d", format)
	}
	return format, nil
}

// Encode writes the preamble. The UUID record is omitted when there is no
// UUID or the format predates it.
func (h *DumpHeader) Encode(w io.Writer) error {
	if err := WriteFormatRecord(w, h.Format); err != nil {
		return err
	}
	if h.Format >= 2 && h.ReposUUID != "" {
		return WriteUUIDRecord(w, h.ReposUUID)
	}
	return nil
}

func WriteFormatRecord(w io.Writer, format int) error {
	_, err := fmt.Fprintf(w, "%s: %d\n\n", VersionStringHeader, format)
	return err
}

func WriteUUIDRecord(w io.Writer, uuid string) error {
	_, err := fmt.Fprintf(w, "%s: %s\n\n", UUIDHeader, uuid)
	return err
}
