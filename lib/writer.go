package svn

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kfsone/svndump/lib/logging"
	"github.com/kfsone/svndump/lib/svndiff"
)

type dirBaton struct {
	path    string
	cmpPath string
	cmpRev  Revnum
	written bool
	deleted []string
}

func (d *dirBaton) takeDeleted(path string) bool {
	if idx := Index(d.deleted, path); idx != -1 {
		d.deleted = append(d.deleted[:idx], d.deleted[idx+1:]...)
		return true
	}
	return false
}

// childCompare derives a child's comparison source from its parent's.
func (d *dirBaton) childCompare(path string) (string, Revnum) {
	if d == nil || d.cmpPath == "" || !d.cmpRev.Valid() {
		return "", InvalidRevnum
	}
	return JoinPath(d.cmpPath, BaseName(path)), d.cmpRev
}

// DumpEditor is an Editor that writes the node records of one revision.
// Everything it dumps is read from the repository; the editor calls only
// say which paths to look at and how they were reached.
type DumpEditor struct {
	repo         Repository
	root         Root
	target       Revnum
	oldestDumped Revnum
	useDeltas    bool
	deltaVersion int
	verify       bool
	out          *Encoder
	log          logging.L

	dirs []*dirBaton
}

// NewDumpEditor returns an editor dumping revision root.Revision() of repo.
// oldestDumped is the first revision of the dump, used to warn about copies
// the dump can't be loaded without.
func NewDumpEditor(repo Repository, root Root, out *Encoder, oldestDumped Revnum, opts DumpOptions) *DumpEditor {
	return &DumpEditor{
		repo:         repo,
		root:         root,
		target:       root.Revision(),
		oldestDumped: oldestDumped,
		useDeltas:    opts.UseDeltas,
		deltaVersion: opts.DeltaVersion,
		verify:       opts.Verify,
		out:          out,
		log:          logging.Must(opts.Logger),
	}
}

func (e *DumpEditor) current() *dirBaton {
	if len(e.dirs) == 0 {
		return nil
	}
	return e.dirs[len(e.dirs)-1]
}

func (e *DumpEditor) OpenRoot(baseRev Revnum) error {
	e.dirs = append(e.dirs[:0], &dirBaton{path: "/", cmpRev: InvalidRevnum})
	return nil
}

func (e *DumpEditor) DeleteEntry(path string, rev Revnum) error {
	parent := e.current()
	parent.deleted = append(parent.deleted, CanonicalPath(path))
	return nil
}

func (e *DumpEditor) AddDir(path string, copyFromPath string, copyFromRev Revnum) error {
	path = CanonicalPath(path)
	parent := e.current()
	isCopy := copyFromPath != "" && copyFromRev.Valid()

	baton := &dirBaton{path: path, cmpRev: InvalidRevnum, written: true}
	if isCopy {
		baton.cmpPath, baton.cmpRev = CanonicalPath(copyFromPath), copyFromRev
	} else {
		baton.cmpPath, baton.cmpRev = parent.childCompare(path)
	}

	action := NodeActionAdd
	if parent.takeDeleted(path) {
		action = NodeActionReplace
	}
	if !isCopy {
		copyFromPath, copyFromRev = "", InvalidRevnum
	}
	if err := e.dumpNode(path, NodeKindDir, action, isCopy, copyFromPath, copyFromRev); err != nil {
		return err
	}
	e.dirs = append(e.dirs, baton)
	return nil
}

func (e *DumpEditor) OpenDir(path string, baseRev Revnum) error {
	path = CanonicalPath(path)
	baton := &dirBaton{path: path}
	baton.cmpPath, baton.cmpRev = e.current().childCompare(path)
	e.dirs = append(e.dirs, baton)
	return nil
}

func (e *DumpEditor) CloseDir() error {
	baton := e.current()
	for _, path := range baton.deleted {
		if err := e.dumpNode(path, NodeKindNone, NodeActionDelete, false, "", InvalidRevnum); err != nil {
			return err
		}
	}
	if e.verify {
		e.verifyDir(baton.path)
	}
	e.dirs = e.dirs[:len(e.dirs)-1]
	return e.out.Err()
}

// verifyDir reads back every entry of a directory. Problems are reported,
// not returned.
func (e *DumpEditor) verifyDir(path string) {
	entries, err := e.root.Entries(path)
	if err != nil {
		e.log.Warnf("verify r%d %s: %v", e.target, path, err)
		return
	}
	for _, name := range entries {
		child := JoinPath(path, name)
		kind, err := e.root.Kind(child)
		if err == nil {
			_, err = e.root.Properties(child)
		}
		if err == nil && kind == NodeKindFile {
			var contents []byte
			if contents, err = e.root.Contents(child); err == nil {
				var sum string
				if sum, err = e.root.Checksum(child, MD5); err == nil && sum != Checksum(MD5, contents) {
					err = &ChecksumError{Path: child, Algorithm: MD5, Expected: sum, Actual: Checksum(MD5, contents)}
				}
			}
		}
		if err != nil {
			e.log.Warnf("verify r%d %s: %v", e.target, child, err)
		}
	}
}

func (e *DumpEditor) AddFile(path string, copyFromPath string, copyFromRev Revnum) error {
	path = CanonicalPath(path)
	parent := e.current()
	isCopy := copyFromPath != "" && copyFromRev.Valid()
	action := NodeActionAdd
	if parent.takeDeleted(path) {
		action = NodeActionReplace
	}
	if !isCopy {
		copyFromPath, copyFromRev = "", InvalidRevnum
	}
	return e.dumpNode(path, NodeKindFile, action, isCopy, copyFromPath, copyFromRev)
}

func (e *DumpEditor) OpenFile(path string, baseRev Revnum) error {
	path = CanonicalPath(path)
	cmpPath, cmpRev := e.current().childCompare(path)
	return e.dumpNode(path, NodeKindFile, NodeActionChange, false, cmpPath, cmpRev)
}

func (e *DumpEditor) ChangeDirProperty(name string, value []byte) error {
	baton := e.current()
	if baton.written {
		return nil
	}
	baton.written = true
	return e.dumpNode(baton.path, NodeKindDir, NodeActionChange, false, baton.cmpPath, baton.cmpRev)
}

func (e *DumpEditor) ChangeFileProperty(path string, name string, value []byte) error {
	return nil
}

func (e *DumpEditor) ApplyTextDelta(path string, baseChecksum string) error {
	return nil
}

func (e *DumpEditor) CloseFile(path string, textChecksum string) error {
	return e.out.Err()
}

func (e *DumpEditor) CloseEdit() error {
	return e.out.Err()
}

// dumpNode writes one node record. cmpPath/cmpRev name what the node is
// compared with; without them a change compares with the previous revision.
func (e *DumpEditor) dumpNode(path string, kind NodeKind, action NodeAction, isCopy bool, cmpPath string, cmpRev Revnum) error {
	buf := appendHeader(nil, NodePathHeader, DumpPath(path))
	if kind != NodeKindNone {
		buf = appendHeader(buf, NodeKindHeader, string(kind))
	}

	comparePath, compareRev := path, e.target-1
	if cmpPath != "" && cmpRev.Valid() {
		comparePath, compareRev = CanonicalPath(cmpPath), cmpRev
	}

	var compareRoot Root
	var mustDumpProps, mustDumpText bool
	var err error

	switch action {
	case NodeActionChange:
		buf = appendHeader(buf, NodeActionHeader, string(NodeActionChange))
		if compareRoot, err = e.repo.Root(compareRev); err != nil {
			return err
		}
		if mustDumpProps, err = propsChanged(compareRoot, comparePath, e.root, path); err != nil {
			return err
		}
		if kind == NodeKindFile {
			if mustDumpText, err = contentsChanged(compareRoot, comparePath, e.root, path); err != nil {
				return err
			}
		}

	case NodeActionReplace:
		if isCopy {
			// A replacing copy is a delete record followed by an add.
			buf = appendHeader(buf, NodeActionHeader, string(NodeActionDelete))
			buf = append(buf, '\n')
			e.out.Write(buf)
			return e.dumpNode(path, kind, NodeActionAdd, isCopy, comparePath, compareRev)
		}
		buf = appendHeader(buf, NodeActionHeader, string(NodeActionReplace))
		mustDumpProps, mustDumpText = true, kind == NodeKindFile

	case NodeActionDelete:
		buf = appendHeader(buf, NodeActionHeader, string(NodeActionDelete))

	case NodeActionAdd:
		buf = appendHeader(buf, NodeActionHeader, string(NodeActionAdd))
		if !isCopy {
			mustDumpProps, mustDumpText = true, kind == NodeKindFile
			break
		}
		if !e.verify && cmpRev < e.oldestDumped {
			e.log.Warnf("Referencing data in revision %d, which is older than the oldest dumped revision (r%d). Loading this dump into an empty repository will fail.", cmpRev, e.oldestDumped)
		}
		buf = appendHeader(buf, NodeCopyFromRevHeader, cmpRev.String())
		buf = appendHeader(buf, NodeCopyFromPathHeader, DumpPath(cmpPath))
		if compareRoot, err = e.repo.Root(compareRev); err != nil {
			return err
		}
		if mustDumpProps, err = propsChanged(compareRoot, comparePath, e.root, path); err != nil {
			return err
		}
		if kind == NodeKindFile {
			if mustDumpText, err = contentsChanged(compareRoot, comparePath, e.root, path); err != nil {
				return err
			}
			for _, check := range []struct {
				kind   ChecksumKind
				header string
			}{{MD5, TextCopySourceMD5Header}, {SHA1, TextCopySourceSHA1Header}} {
				sum, err := compareRoot.Checksum(comparePath, check.kind)
				if err != nil {
					return err
				}
				buf = appendHeader(buf, check.header, sum)
			}
		}
	}

	if !mustDumpProps && !mustDumpText {
		buf = append(buf, '\n', '\n')
		e.out.Write(buf)
		return e.out.Err()
	}

	var contentLength int64
	var propBlock []byte
	if mustDumpProps {
		props, err := e.root.Properties(path)
		if err != nil {
			return err
		}
		if e.useDeltas && compareRoot != nil {
			oldProps, err := compareRoot.Properties(comparePath)
			if err != nil {
				return err
			}
			buf = appendHeader(buf, PropDeltaHeader, "true")
			propBlock = props.AppendDeltaTo(nil, oldProps)
		} else {
			propBlock = props.AppendTo(nil)
		}
		contentLength += int64(len(propBlock))
		buf = appendHeader(buf, PropContentLengthHeader, strconv.Itoa(len(propBlock)))
	}

	var text []byte
	if mustDumpText {
		contents, err := e.root.Contents(path)
		if err != nil {
			return err
		}
		text = contents
		if e.useDeltas {
			var source []byte
			if compareRoot != nil {
				if source, err = compareRoot.Contents(comparePath); err != nil {
					return err
				}
				buf = appendHeader(buf, TextDeltaBaseMD5Header, Checksum(MD5, source))
				buf = appendHeader(buf, TextDeltaBaseSHA1Header, Checksum(SHA1, source))
			}
			var delta bytes.Buffer
			if err := svndiff.Diff(&delta, source, contents, e.deltaVersion); err != nil {
				return errors.Wrapf(err, "computing delta for '%s'", path)
			}
			text = delta.Bytes()
			buf = appendHeader(buf, TextDeltaHeader, "true")
		}
		contentLength += int64(len(text))
		buf = appendHeader(buf, TextContentLengthHeader, strconv.Itoa(len(text)))
		buf = appendHeader(buf, TextContentMD5Header, Checksum(MD5, contents))
		buf = appendHeader(buf, TextContentSHA1Header, Checksum(SHA1, contents))
	}

	buf = appendHeader(buf, ContentLengthHeader, strconv.FormatInt(contentLength, 10))
	buf = append(buf, '\n')
	e.out.Write(buf)
	e.out.Write(propBlock)
	e.out.Write(text)
	e.out.Newlines(2)
	return e.out.Err()
}

func propsChanged(rootA Root, pathA string, rootB Root, pathB string) (bool, error) {
	a, err := rootA.Properties(pathA)
	if err != nil {
		return false, err
	}
	b, err := rootB.Properties(pathB)
	if err != nil {
		return false, err
	}
	return !a.Equal(b), nil
}

func contentsChanged(rootA Root, pathA string, rootB Root, pathB string) (bool, error) {
	a, err := rootA.Checksum(pathA, MD5)
	if err != nil {
		return false, err
	}
	b, err := rootB.Checksum(pathB, MD5)
	if err != nil {
		return false, err
	}
	return a != b, nil
}
