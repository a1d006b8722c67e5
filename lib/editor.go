package svn

// Editor receives a depth-first description of how one tree differs from
// another. Directory calls nest: every OpenRoot, OpenDir and AddDir is
// matched by a CloseDir. Paths are absolute.
type Editor interface {
	OpenRoot(baseRev Revnum) error
	OpenDir(path string, baseRev Revnum) error
	// AddDir and AddFile take an empty copyFromPath for plain adds.
	AddDir(path string, copyFromPath string, copyFromRev Revnum) error
	CloseDir() error

	OpenFile(path string, baseRev Revnum) error
	AddFile(path string, copyFromPath string, copyFromRev Revnum) error
	CloseFile(path string, textChecksum string) error

	ChangeDirProperty(name string, value []byte) error
	ChangeFileProperty(path string, name string, value []byte) error
	ApplyTextDelta(path string, baseChecksum string) error

	DeleteEntry(path string, rev Revnum) error
	CloseEdit() error
}
