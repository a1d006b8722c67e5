package repos

import (
	svn "github.com/kfsone/svndump/lib"
)

// commitRecord is everything one revision adds to a backend.
type commitRecord struct {
	Rev   svn.Revnum
	Props map[string][]byte
	// Nodes holds the new version of each touched path; nil deletes it.
	Nodes   map[string]*node
	Blobs   map[string][]byte
	Changes []svn.Change
}

// backend is the storage under a Repository. Lookups are by revision: a
// path's node at rev is its newest version committed at or before rev.
type backend interface {
	uuid() (string, error)
	setUUID(uuid string) error
	youngest() (svn.Revnum, error)

	revisionProps(rev svn.Revnum) (map[string][]byte, error)
	setRevisionProps(rev svn.Revnum, props map[string][]byte) error

	// lookup returns nil for paths absent at rev.
	lookup(rev svn.Revnum, path string) (*node, error)
	// children returns the names of the entries of path at rev.
	children(rev svn.Revnum, path string) ([]string, error)
	content(key string) ([]byte, error)
	changes(rev svn.Revnum) ([]svn.Change, error)

	commit(record *commitRecord) error
	close() error
}
