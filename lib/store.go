package svn

// Repository is the backing versioned-tree store the Loader writes to and the
// Writer reads from.
type Repository interface {
	UUID() (string, error)
	SetUUID(uuid string) error

	// Youngest returns the most recent committed revision.
	Youngest() (Revnum, error)

	RevisionProperties(rev Revnum) (*Properties, error)
	// SetRevisionProperty changes a committed revision's property; a nil
	// value deletes it.
	SetRevisionProperty(rev Revnum, name string, value []byte) error

	// Root returns a read-only view of a committed revision.
	Root(rev Revnum) (Root, error)

	// BeginTxn starts a transaction based on a committed revision.
	BeginTxn(base Revnum) (Txn, error)
}

// Root is a tree at one revision. Paths are absolute.
type Root interface {
	Revision() Revnum

	// Kind is NodeKindNone for paths that don't exist.
	Kind(path string) (NodeKind, error)
	Properties(path string) (*Properties, error)
	Contents(path string) ([]byte, error)
	Checksum(path string, kind ChecksumKind) (string, error)
	// Entries lists the names of a directory's children, sorted.
	Entries(path string) ([]string, error)

	// Changes lists the paths the revision changed, sorted by path.
	Changes() ([]Change, error)
}

// ChangeAction is how a revision affected a path.
type ChangeAction string

const (
	ChangeAdd     ChangeAction = "A"
	ChangeDelete  ChangeAction = "D"
	ChangeReplace ChangeAction = "R"
	ChangeModify  ChangeAction = "M"
)

// Change is one entry of a revision's changed-path list.
type Change struct {
	Path         string
	Kind         NodeKind
	Action       ChangeAction
	CopyFromPath string
	CopyFromRev  Revnum
	TextModified bool
	PropModified bool
}

// Txn is an uncommitted tree. As a Root it shows its base plus every change
// made so far; Revision returns the base.
type Txn interface {
	Root

	MakeDir(path string) error
	MakeFile(path string) error
	// Copy adds path as a copy of fromPath@fromRev, with history.
	Copy(fromPath string, fromRev Revnum, path string) error
	Delete(path string) error
	SetNodeProperty(path, name string, value []byte) error
	SetContents(path string, contents []byte) error

	// SetProperty sets a property of the revision being built.
	SetProperty(name string, value []byte) error

	Commit() (Revnum, error)
	Abort() error
}
