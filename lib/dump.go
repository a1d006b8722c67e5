package svn

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kfsone/svndump/lib/logging"
	"github.com/kfsone/svndump/lib/svndiff"
)

// DumpOptions configure Dump.
type DumpOptions struct {
	Start Revnum
	// End defaults to the youngest revision when invalid.
	End Revnum
	// Incremental dumps the first revision as a change against the one
	// before it instead of as a whole tree.
	Incremental bool
	UseDeltas   bool
	// DeltaVersion selects svndiff0 or the compressed svndiff1.
	DeltaVersion int
	Verify       bool

	Logger logging.L
	// Progress is called after each revision with the bytes written so far.
	Progress func(rev Revnum, written int64)
}

// Dump writes revisions Start through End of repo to w.
func Dump(repo Repository, w io.Writer, opts DumpOptions) error {
	log := logging.Must(opts.Logger)

	youngest, err := repo.Youngest()
	if err != nil {
		return err
	}
	if !opts.End.Valid() {
		opts.End = youngest
	}
	if opts.Start < 0 || opts.Start > opts.End {
		return errors.Errorf("first revision %d must not be greater than last revision %d", opts.Start, opts.End)
	}
	if opts.End > youngest {
		return errors.Wrapf(ErrNoSuchRev, "end revision %d is after youngest revision %d", opts.End, youngest)
	}
	if opts.DeltaVersion != svndiff.Version0 && opts.DeltaVersion != svndiff.Version1 {
		return errors.Errorf("unknown svndiff version %d", opts.DeltaVersion)
	}

	uuid, err := repo.UUID()
	if err != nil {
		return err
	}
	out := NewEncoder(w)
	header := DumpHeader{Format: 2, ReposUUID: uuid}
	if opts.UseDeltas {
		header.Format = DeltaDumpFormat
	}
	if err := header.Encode(out); err != nil {
		return err
	}

	for rev := opts.Start; rev <= opts.End; rev++ {
		if err := writeRevisionRecord(repo, out, rev); err != nil {
			return err
		}
		if rev > 0 {
			root, err := repo.Root(rev)
			if err != nil {
				return err
			}
			editor := NewDumpEditor(repo, root, out, opts.Start, opts)
			if rev == opts.Start && !opts.Incremental {
				err = ReplayTree(root, editor)
			} else {
				err = Replay(root, editor)
			}
			if err != nil {
				return errors.Wrapf(err, "dumping r%d", rev)
			}
		}
		if err := out.Flush(); err != nil {
			return err
		}
		if opts.Verify {
			log.Infof("* Verified revision %d.", rev)
		} else {
			log.Infof("* Dumped revision %d.", rev)
		}
		if opts.Progress != nil {
			opts.Progress(rev, out.Written())
		}
	}

	return out.Flush()
}

func writeRevisionRecord(repo Repository, out *Encoder, rev Revnum) error {
	props, err := repo.RevisionProperties(rev)
	if err != nil {
		return err
	}
	block := props.AppendTo(nil)
	length := strconv.Itoa(len(block))

	buf := appendHeader(nil, RevisionNumberHeader, rev.String())
	buf = appendHeader(buf, PropContentLengthHeader, length)
	buf = appendHeader(buf, ContentLengthHeader, length)
	buf = append(buf, '\n')
	buf = append(buf, block...)
	buf = append(buf, '\n')
	out.Write(buf)
	return out.Err()
}
