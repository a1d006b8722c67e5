package repos

import (
	"sort"

	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
)

// view resolves paths against some tree: a committed revision or a
// transaction in progress.
type view interface {
	get(path string) (*node, error)
	list(path string) ([]string, error)
	blob(key string) ([]byte, error)
}

type committedView struct {
	store backend
	rev   svn.Revnum
}

func (v *committedView) get(path string) (*node, error) { return v.store.lookup(v.rev, path) }
func (v *committedView) list(path string) ([]string, error) {
	return v.store.children(v.rev, path)
}
func (v *committedView) blob(key string) ([]byte, error) { return v.store.content(key) }

// treeRoot answers svn.Root queries from a view.
type treeRoot struct {
	view    view
	rev     svn.Revnum
	changes func() ([]svn.Change, error)
}

func (t *treeRoot) Revision() svn.Revnum { return t.rev }

func (t *treeRoot) node(path string) (*node, error) {
	path = svn.CanonicalPath(path)
	n, err := t.view.get(path)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.Wrapf(svn.ErrNotFound, "%s@%d", path, t.rev)
	}
	return n, nil
}

func (t *treeRoot) Kind(path string) (svn.NodeKind, error) {
	n, err := t.view.get(svn.CanonicalPath(path))
	if err != nil || n == nil {
		return svn.NodeKindNone, err
	}
	return n.Kind, nil
}

func (t *treeRoot) Properties(path string) (*svn.Properties, error) {
	n, err := t.node(path)
	if err != nil {
		return nil, err
	}
	return svn.PropertiesFromMap(n.Props), nil
}

func (t *treeRoot) file(path string) (*node, error) {
	n, err := t.node(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != svn.NodeKindFile {
		return nil, errors.Wrap(svn.ErrNotFile, path)
	}
	return n, nil
}

func (t *treeRoot) Contents(path string) ([]byte, error) {
	n, err := t.file(path)
	if err != nil {
		return nil, err
	}
	return t.view.blob(n.Content)
}

func (t *treeRoot) Checksum(path string, kind svn.ChecksumKind) (string, error) {
	n, err := t.file(path)
	if err != nil {
		return "", err
	}
	switch kind {
	case svn.MD5:
		return n.MD5, nil
	case svn.SHA1:
		return n.SHA1, nil
	}
	return "", errors.Wrapf(svn.ErrUnsupported, "checksum %q", kind)
}

func (t *treeRoot) Entries(path string) ([]string, error) {
	n, err := t.node(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != svn.NodeKindDir {
		return nil, errors.Wrap(svn.ErrNotDirectory, path)
	}
	names, err := t.view.list(svn.CanonicalPath(path))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (t *treeRoot) Changes() ([]svn.Change, error) {
	return t.changes()
}
