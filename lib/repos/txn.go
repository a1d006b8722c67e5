package repos

import (
	"strings"

	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
)

// txn stages changes over a base revision. staged holds the new version of
// every touched path, with nil marking a deletion.
type txn struct {
	*treeRoot
	repo    *Repository
	base    svn.Revnum
	staged  map[string]*node
	blobs   map[string][]byte
	props   map[string][]byte
	changed *changeLog
	closed  bool
}

func newTxn(repo *Repository, base svn.Revnum) *txn {
	t := &txn{
		repo:    repo,
		base:    base,
		staged:  make(map[string]*node),
		blobs:   make(map[string][]byte),
		props:   make(map[string][]byte),
		changed: newChangeLog(),
	}
	t.treeRoot = &treeRoot{view: t, rev: base, changes: t.listChanges}
	return t
}

func (t *txn) listChanges() ([]svn.Change, error) {
	return t.changed.list(), nil
}

func (t *txn) get(path string) (*node, error) {
	if n, ok := t.staged[path]; ok {
		return n, nil
	}
	return t.repo.store.lookup(t.base, path)
}

func (t *txn) list(path string) ([]string, error) {
	base, err := t.repo.store.children(t.base, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(base))
	seen := make(map[string]bool, len(base))
	for _, name := range base {
		seen[name] = true
		if n, ok := t.staged[svn.JoinPath(path, name)]; ok && n == nil {
			continue
		}
		names = append(names, name)
	}
	for p, n := range t.staged {
		if n == nil || p == "/" || svn.ParentPath(p) != path {
			continue
		}
		if name := svn.BaseName(p); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

func (t *txn) blob(key string) ([]byte, error) {
	if data, ok := t.blobs[key]; ok {
		return data, nil
	}
	return t.repo.store.content(key)
}

func (t *txn) check() error {
	if t.closed {
		return svn.ErrTxnClosed
	}
	return nil
}

// prepareAdd checks path is free and its parent is a directory.
func (t *txn) prepareAdd(path string) (string, error) {
	if err := t.check(); err != nil {
		return "", err
	}
	path = svn.CanonicalPath(path)
	if path == "/" {
		return "", errors.Wrap(svn.ErrExists, path)
	}
	existing, err := t.get(path)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", errors.Wrap(svn.ErrExists, path)
	}
	parent, err := t.get(svn.ParentPath(path))
	if err != nil {
		return "", err
	}
	if parent == nil {
		return "", errors.Wrapf(svn.ErrNotFound, "parent of %s", path)
	}
	if parent.Kind != svn.NodeKindDir {
		return "", errors.Wrapf(svn.ErrNotDirectory, "parent of %s", path)
	}
	return path, nil
}

func (t *txn) MakeDir(path string) error {
	path, err := t.prepareAdd(path)
	if err != nil {
		return err
	}
	t.staged[path] = newDir()
	t.changed.add(path, svn.NodeKindDir, "", svn.InvalidRevnum)
	return nil
}

func (t *txn) MakeFile(path string) error {
	path, err := t.prepareAdd(path)
	if err != nil {
		return err
	}
	t.staged[path] = newFile()
	t.changed.add(path, svn.NodeKindFile, "", svn.InvalidRevnum)
	return nil
}

func (t *txn) Copy(fromPath string, fromRev svn.Revnum, path string) error {
	path, err := t.prepareAdd(path)
	if err != nil {
		return err
	}
	if err := t.repo.checkRevision(fromRev); err != nil {
		return err
	}
	fromPath = svn.CanonicalPath(fromPath)
	source, err := t.repo.store.lookup(fromRev, fromPath)
	if err != nil {
		return err
	}
	if source == nil {
		return errors.Wrapf(svn.ErrNotFound, "copy source %s@%d", fromPath, fromRev)
	}
	if err := t.copyTree(fromPath, fromRev, path, source); err != nil {
		return err
	}
	t.changed.add(path, source.Kind, fromPath, fromRev)
	return nil
}

func (t *txn) copyTree(fromPath string, fromRev svn.Revnum, path string, source *node) error {
	t.staged[path] = source.clone()
	if source.Kind != svn.NodeKindDir {
		return nil
	}
	names, err := t.repo.store.children(fromRev, fromPath)
	if err != nil {
		return err
	}
	for _, name := range names {
		from := svn.JoinPath(fromPath, name)
		child, err := t.repo.store.lookup(fromRev, from)
		if err != nil {
			return err
		}
		if err := t.copyTree(from, fromRev, svn.JoinPath(path, name), child); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Delete(path string) error {
	if err := t.check(); err != nil {
		return err
	}
	path = svn.CanonicalPath(path)
	if path == "/" {
		return errors.Wrap(svn.ErrUnsupported, "deleting the root directory")
	}
	n, err := t.node(path)
	if err != nil {
		return err
	}
	if err := t.tombstone(path, n); err != nil {
		return err
	}
	t.changed.delete(path, n.Kind)
	return nil
}

func (t *txn) tombstone(path string, n *node) error {
	if n.Kind == svn.NodeKindDir {
		names, err := t.list(path)
		if err != nil {
			return err
		}
		for _, name := range names {
			child := svn.JoinPath(path, name)
			cn, err := t.get(child)
			if err != nil {
				return err
			}
			if cn != nil {
				if err := t.tombstone(child, cn); err != nil {
					return err
				}
			}
		}
	}
	t.staged[path] = nil
	return nil
}

// writable returns a staged copy of path's node that may be modified.
func (t *txn) writable(path string) (string, *node, error) {
	if err := t.check(); err != nil {
		return "", nil, err
	}
	path = svn.CanonicalPath(path)
	n, err := t.node(path)
	if err != nil {
		return "", nil, err
	}
	n = n.clone()
	t.staged[path] = n
	return path, n, nil
}

func (t *txn) SetNodeProperty(path, name string, value []byte) error {
	path, n, err := t.writable(path)
	if err != nil {
		return err
	}
	if value == nil {
		delete(n.Props, name)
	} else {
		n.Props[name] = append([]byte(nil), value...)
	}
	t.changed.modify(path, n.Kind, false, true)
	return nil
}

func (t *txn) SetContents(path string, contents []byte) error {
	path, n, err := t.writable(path)
	if err != nil {
		return err
	}
	if n.Kind != svn.NodeKindFile {
		return errors.Wrap(svn.ErrNotFile, path)
	}
	contents = append([]byte(nil), contents...)
	n.Content = contentKey(contents)
	n.MD5 = svn.Checksum(svn.MD5, contents)
	n.SHA1 = svn.Checksum(svn.SHA1, contents)
	t.blobs[n.Content] = contents
	t.changed.modify(path, n.Kind, true, false)
	return nil
}

func (t *txn) SetProperty(name string, value []byte) error {
	if err := t.check(); err != nil {
		return err
	}
	if value == nil {
		delete(t.props, name)
	} else {
		t.props[name] = append([]byte(nil), value...)
	}
	return nil
}

// Commit stores the transaction as the next revision. It fails when another
// commit has landed since the transaction began.
func (t *txn) Commit() (svn.Revnum, error) {
	if err := t.check(); err != nil {
		return svn.InvalidRevnum, err
	}
	t.repo.commits.Lock()
	defer t.repo.commits.Unlock()

	youngest, err := t.repo.store.youngest()
	if err != nil {
		return svn.InvalidRevnum, err
	}
	if youngest != t.base {
		return svn.InvalidRevnum, errors.Errorf("transaction based on r%d is out of date: youngest is r%d", t.base, youngest)
	}

	t.props[svn.PropDate] = t.repo.date()
	record := &commitRecord{
		Rev:     youngest + 1,
		Props:   t.props,
		Nodes:   t.staged,
		Blobs:   t.blobs,
		Changes: t.changed.list(),
	}
	if err := t.repo.store.commit(record); err != nil {
		return svn.InvalidRevnum, errors.Wrapf(err, "committing r%d", record.Rev)
	}
	t.closed = true
	return record.Rev, nil
}

func (t *txn) Abort() error {
	t.closed = true
	t.staged, t.blobs = nil, nil
	return nil
}

// descendant reports whether path is strictly inside dir.
func descendant(path, dir string) bool {
	if dir == "/" {
		return path != "/"
	}
	return strings.HasPrefix(path, dir+"/")
}
