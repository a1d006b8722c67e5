package svn

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/kfsone/svndump/lib/logging"
	"github.com/kfsone/svndump/lib/svndiff"
)

// UUIDAction says what to do with the UUID record of a loaded stream.
type UUIDAction int

const (
	// UUIDDefault adopts the stream's UUID only into an empty repository.
	UUIDDefault UUIDAction = iota
	UUIDIgnore
	UUIDForce
)

// LoaderOptions configure a Loader run.
type LoaderOptions struct {
	UUIDAction UUIDAction
	// ParentDir loads every path, and every merge-info source, below this
	// directory, which must already exist.
	ParentDir string

	PreCommit  func(txn Txn) error
	PostCommit func(rev Revnum) error

	Logger logging.L
}

type loadRevision struct {
	original Revnum
	offset   Revnum
	txn      Txn
	date     []byte
	hasDate  bool
}

type loadNode struct {
	header *NodeHeader
	path   string
}

// Loader is a Consumer that replays a dump stream into a Repository.
type Loader struct {
	repo    Repository
	opts    LoaderOptions
	log     logging.L
	seq     sequence
	renames *RenameTable

	rev  *loadRevision
	node *loadNode
}

// NewLoader returns a Loader committing into repo.
func NewLoader(repo Repository, opts LoaderOptions) *Loader {
	if opts.ParentDir != "" {
		opts.ParentDir = CanonicalPath(opts.ParentDir)
	}
	return &Loader{
		repo:    repo,
		opts:    opts,
		log:     logging.Must(opts.Logger),
		renames: NewRenameTable(),
	}
}

// Renames maps each loaded original revision to its committed revision.
func (l *Loader) Renames() *RenameTable {
	return l.renames
}

// fail aborts any open transaction before handing err back.
func (l *Loader) fail(err error) error {
	if err == nil {
		return nil
	}
	if l.rev != nil && l.rev.txn != nil {
		if abortErr := l.rev.txn.Abort(); abortErr != nil {
			l.log.Warnf("aborting transaction for r%d: %v", l.rev.original, abortErr)
		}
		l.rev.txn = nil
	}
	return err
}

func (l *Loader) DumpFormat(version int) error {
	return l.seq.preamble("DumpFormat")
}

func (l *Loader) UUID(uuid string) error {
	if err := l.seq.preamble("UUID"); err != nil {
		return err
	}
	switch l.opts.UUIDAction {
	case UUIDIgnore:
		return nil
	case UUIDDefault:
		youngest, err := l.repo.Youngest()
		if err != nil {
			return err
		}
		if youngest != 0 {
			return nil
		}
	}
	l.log.Debugf("adopting repository UUID %s", uuid)
	return l.repo.SetUUID(uuid)
}

func (l *Loader) OpenRevision(headers *Headers) error {
	if err := l.seq.openRevision(); err != nil {
		return err
	}
	original, err := headers.Revnum(RevisionNumberHeader)
	if err != nil {
		return err
	}
	head, err := l.repo.Youngest()
	if err != nil {
		return err
	}

	l.rev = &loadRevision{original: original, offset: original - (head + 1)}
	if original > 0 {
		if l.rev.txn, err = l.repo.BeginTxn(head); err != nil {
			return err
		}
		l.log.Debugf("<<< Started new transaction, based on original revision %d", original)
	}
	return nil
}

func (l *Loader) SetRevisionProperty(name string, value []byte) error {
	if err := l.seq.revisionProperty(); err != nil {
		return err
	}
	if l.rev.original > 0 {
		if name == PropDate {
			l.rev.date, l.rev.hasDate = value, true
		}
		return l.fail(l.rev.txn.SetProperty(name, value))
	}

	// Revision 0 carries only properties; they belong on r0 of an empty
	// repository and are ignored otherwise.
	youngest, err := l.repo.Youngest()
	if err != nil {
		return err
	}
	if youngest == 0 {
		return l.repo.SetRevisionProperty(0, name, value)
	}
	return nil
}

func (l *Loader) CloseRevision() error {
	if err := l.seq.closeRevision(); err != nil {
		return err
	}
	rev := l.rev
	defer func() { l.rev = nil }()
	if rev.original <= 0 || rev.txn == nil {
		return nil
	}

	if l.opts.PreCommit != nil {
		if err := l.opts.PreCommit(rev.txn); err != nil {
			return l.fail(errors.Wrapf(err, "pre-commit hook for original r%d", rev.original))
		}
	}

	committed, err := rev.txn.Commit()
	if err != nil {
		return l.fail(errors.Wrapf(err, "committing original r%d", rev.original))
	}
	rev.txn = nil
	l.renames.Record(rev.original, RevisionMapping{Assigned: committed})

	if l.opts.PostCommit != nil {
		if err := l.opts.PostCommit(committed); err != nil {
			l.log.Warnf("post-commit hook for r%d: %v", committed, err)
		}
	}

	// The store stamped its own commit time; the stream's wins, and no date
	// in the stream means no date at all.
	var date []byte
	if rev.hasDate {
		date = rev.date
	}
	if err := l.repo.SetRevisionProperty(committed, PropDate, date); err != nil {
		return err
	}

	if committed == rev.original {
		l.log.Infof("------- Committed revision %d >>>", committed)
	} else {
		l.log.Infof("------- Committed new rev %d (loaded from original rev %d) >>>", committed, rev.original)
	}
	return nil
}

func (l *Loader) OpenNode(headers *Headers) error {
	if err := l.seq.openNode(); err != nil {
		return err
	}
	if l.rev.original == 0 {
		return errors.Wrap(ErrMalformedStream, "revision 0 must not contain node records")
	}
	header, err := NewNodeHeader(headers)
	if err != nil {
		return l.fail(err)
	}
	node := &loadNode{header: header, path: header.Path}
	if l.opts.ParentDir != "" {
		node.path = JoinPath(l.opts.ParentDir, header.Path)
	}
	l.node = node

	switch header.Action {
	case NodeActionChange:
		l.log.Debugf("     * editing path : %s ...", node.path)
		kind, err := l.rev.txn.Kind(node.path)
		if err != nil {
			return l.fail(err)
		}
		if kind == NodeKindNone {
			return l.fail(errors.Wrapf(ErrNotFound, "change of '%s'", node.path))
		}
	case NodeActionDelete:
		l.log.Debugf("     * deleting path : %s ...", node.path)
		return l.fail(l.rev.txn.Delete(node.path))
	case NodeActionAdd:
		l.log.Debugf("     * adding path : %s ...", node.path)
		return l.fail(l.addNode(node))
	case NodeActionReplace:
		l.log.Debugf("     * replacing path : %s ...", node.path)
		if err := l.rev.txn.Delete(node.path); err != nil {
			return l.fail(err)
		}
		return l.fail(l.addNode(node))
	}
	return nil
}

func (l *Loader) addNode(node *loadNode) error {
	h := node.header
	if !h.IsCopy() {
		switch h.Kind {
		case NodeKindFile:
			return l.rev.txn.MakeFile(node.path)
		case NodeKindDir:
			return l.rev.txn.MakeDir(node.path)
		}
		return errors.Wrapf(ErrUnknownNodeKind, "add of '%s' without a kind", node.path)
	}

	source, err := l.renames.Resolve(h.CopyFromRev)
	if err != nil {
		source = h.CopyFromRev - l.rev.offset
	}
	youngest, err := l.repo.Youngest()
	if err != nil {
		return err
	}
	if !source.Valid() || source > youngest {
		return &UnresolvedReference{Revision: h.CopyFromRev, Reason: "relative source revision " + source.String() + " is not available in current repository"}
	}

	fromPath := h.CopyFromPath
	if l.opts.ParentDir != "" {
		fromPath = JoinPath(l.opts.ParentDir, fromPath)
	}

	if h.TextCopySourceMD5 != "" || h.TextCopySourceSHA1 != "" {
		root, err := l.repo.Root(source)
		if err != nil {
			return err
		}
		for _, check := range []struct {
			kind     ChecksumKind
			expected string
		}{{MD5, h.TextCopySourceMD5}, {SHA1, h.TextCopySourceSHA1}} {
			if check.expected == "" {
				continue
			}
			actual, err := root.Checksum(fromPath, check.kind)
			if err != nil {
				return err
			}
			if err := VerifyChecksum(fromPath, check.kind, check.expected, actual); err != nil {
				return errors.Wrapf(err, "copy source of '%s'", node.path)
			}
		}
	}

	if err := l.rev.txn.Copy(fromPath, source, node.path); err != nil {
		return err
	}
	l.log.Debugf("COPIED... %s@%d", fromPath, source)
	return nil
}

func (l *Loader) RemoveNodeProperties() error {
	if err := l.seq.nodeProperty("RemoveNodeProperties"); err != nil {
		return err
	}
	props, err := l.rev.txn.Properties(l.node.path)
	if err != nil {
		return l.fail(err)
	}
	for _, name := range props.Names() {
		if err := l.rev.txn.SetNodeProperty(l.node.path, name, nil); err != nil {
			return l.fail(err)
		}
	}
	return nil
}

func (l *Loader) SetNodeProperty(name string, value []byte) error {
	if err := l.seq.nodeProperty("SetNodeProperty"); err != nil {
		return err
	}
	if name == PropMergeInfo {
		value = l.rewriteMergeInfo(value)
	}
	return l.fail(l.rev.txn.SetNodeProperty(l.node.path, name, value))
}

func (l *Loader) DeleteNodeProperty(name string) error {
	if err := l.seq.nodeProperty("DeleteNodeProperty"); err != nil {
		return err
	}
	return l.fail(l.rev.txn.SetNodeProperty(l.node.path, name, nil))
}

// rewriteMergeInfo renumbers what it can and moves sources under the parent
// directory. Values that don't parse are stored untouched.
func (l *Loader) rewriteMergeInfo(value []byte) []byte {
	mi, err := ParseMergeInfo(string(value))
	if err != nil {
		l.log.Warnf("%s: leaving unparsable %s as is: %v", l.node.path, PropMergeInfo, err)
		return value
	}
	mi.Renumber(func(rev Revnum) (Revnum, bool, error) {
		mapped, err := l.renames.Resolve(rev)
		return mapped, err == nil, nil
	})
	if l.opts.ParentDir != "" {
		mi = mi.Prefix(l.opts.ParentDir)
	}
	return []byte(mi.String())
}

func (l *Loader) ParseTextBlock(r io.Reader, length int64, isDelta bool) error {
	if err := l.seq.text(); err != nil {
		return err
	}
	return l.fail(l.applyText(r, length, isDelta))
}

func (l *Loader) applyText(r io.Reader, length int64, isDelta bool) error {
	h, path := l.node.header, l.node.path
	txn := l.rev.txn

	var result bytes.Buffer
	var sink io.Writer = &result
	var decoder *svndiff.Decoder
	if isDelta {
		base, err := l.deltaBase(path)
		if err != nil {
			return err
		}
		for _, check := range []struct {
			kind     ChecksumKind
			expected string
		}{{MD5, h.TextDeltaBaseMD5}, {SHA1, h.TextDeltaBaseSHA1}} {
			if err := VerifyChecksum(path, check.kind, check.expected, Checksum(check.kind, base)); err != nil {
				return errors.Wrap(err, "delta base")
			}
		}
		decoder = svndiff.NewDecoder(base, &result)
		sink = decoder
	}

	chunk := make([]byte, ChunkSize)
	var total int64
	for total < length {
		want := min(int64(len(chunk)), length-total)
		n, err := io.ReadFull(r, chunk[:want])
		if n > 0 {
			if _, werr := sink.Write(chunk[:n]); werr != nil {
				return errors.Wrapf(ErrMalformedStream, "%s: applying text delta: %v", path, werr)
			}
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return errors.Wrapf(ErrIncompleteData, "%s: text ended after %d of %d bytes", path, total, length)
			}
			return err
		}
	}
	if decoder != nil {
		if err := decoder.Close(); err != nil {
			return errors.Wrapf(ErrIncompleteData, "%s: %v", path, err)
		}
	}

	contents := result.Bytes()
	if err := VerifyChecksum(path, MD5, h.TextContentMD5, Checksum(MD5, contents)); err != nil {
		return err
	}
	if err := VerifyChecksum(path, SHA1, h.TextContentSHA1, Checksum(SHA1, contents)); err != nil {
		return err
	}
	return txn.SetContents(path, contents)
}

// deltaBase is the text a delta applies to: whatever is at the path now,
// which for a plain add is nothing.
func (l *Loader) deltaBase(path string) ([]byte, error) {
	kind, err := l.rev.txn.Kind(path)
	if err != nil {
		return nil, err
	}
	if kind != NodeKindFile {
		return nil, nil
	}
	return l.rev.txn.Contents(path)
}

func (l *Loader) CloseNode() error {
	if err := l.seq.closeNode(); err != nil {
		return err
	}
	l.node = nil
	return nil
}
