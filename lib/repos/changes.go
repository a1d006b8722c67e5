package repos

import (
	"sort"

	svn "github.com/kfsone/svndump/lib"
)

// changeLog folds the operations of a transaction into a changed-path list.
type changeLog struct {
	entries map[string]*svn.Change
}

func newChangeLog() *changeLog {
	return &changeLog{entries: make(map[string]*svn.Change)}
}

func (c *changeLog) add(path string, kind svn.NodeKind, copyPath string, copyRev svn.Revnum) {
	action := svn.ChangeAdd
	if prev, ok := c.entries[path]; ok && (prev.Action == svn.ChangeDelete || prev.Action == svn.ChangeReplace) {
		action = svn.ChangeReplace
	}
	c.entries[path] = &svn.Change{Path: path, Kind: kind, Action: action, CopyFromPath: copyPath, CopyFromRev: copyRev}
}

func (c *changeLog) delete(path string, kind svn.NodeKind) {
	for p := range c.entries {
		if descendant(p, path) {
			delete(c.entries, p)
		}
	}
	if prev, ok := c.entries[path]; ok {
		switch prev.Action {
		case svn.ChangeAdd:
			// Added and removed in the same transaction: no change at all.
			delete(c.entries, path)
			return
		case svn.ChangeReplace:
			prev.Action, prev.Kind = svn.ChangeDelete, kind
			prev.CopyFromPath, prev.CopyFromRev = "", svn.InvalidRevnum
			prev.TextModified, prev.PropModified = false, false
			return
		}
	}
	c.entries[path] = &svn.Change{Path: path, Kind: kind, Action: svn.ChangeDelete, CopyFromRev: svn.InvalidRevnum}
}

func (c *changeLog) modify(path string, kind svn.NodeKind, text, props bool) {
	prev, ok := c.entries[path]
	if !ok {
		prev = &svn.Change{Path: path, Kind: kind, Action: svn.ChangeModify, CopyFromRev: svn.InvalidRevnum}
		c.entries[path] = prev
	}
	prev.TextModified = prev.TextModified || text
	prev.PropModified = prev.PropModified || props
}

// list returns the changes sorted by path.
func (c *changeLog) list() []svn.Change {
	out := make([]svn.Change, 0, len(c.entries))
	for _, change := range c.entries {
		out = append(out, *change)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
