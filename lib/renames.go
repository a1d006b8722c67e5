package svn

import (
	"sort"
)

// RevisionMapping records what became of one original revision.
type RevisionMapping struct {
	Assigned Revnum
	Dropped  bool
}

// RenameTable maps original revision numbers to the numbers they were given
// in the output stream or store. One table lives for one run.
type RenameTable struct {
	entries map[Revnum]RevisionMapping
}

func NewRenameTable() *RenameTable {
	return &RenameTable{entries: make(map[Revnum]RevisionMapping)}
}

// Record stores the fate of an original revision.
func (t *RenameTable) Record(original Revnum, mapping RevisionMapping) {
	t.entries[original] = mapping
}

// Lookup returns the raw mapping for original.
func (t *RenameTable) Lookup(original Revnum) (RevisionMapping, bool) {
	m, ok := t.entries[original]
	return m, ok
}

// Resolve translates an original revision. Unknown revisions, and dropped
// revisions that had no live predecessor, are unresolved references.
func (t *RenameTable) Resolve(original Revnum) (Revnum, error) {
	m, ok := t.entries[original]
	if !ok {
		return InvalidRevnum, &UnresolvedReference{Revision: original, Reason: "no such revision in the stream so far"}
	}
	if !m.Assigned.Valid() {
		return InvalidRevnum, &UnresolvedReference{Revision: original, Reason: "maps to no valid revision"}
	}
	return m.Assigned, nil
}

func (t *RenameTable) Len() int {
	return len(t.entries)
}

// Originals returns the recorded original revisions in ascending order.
func (t *RenameTable) Originals() []Revnum {
	revs := make([]Revnum, 0, len(t.entries))
	for rev := range t.entries {
		revs = append(revs, rev)
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i] < revs[j] })
	return revs
}
