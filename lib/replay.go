package svn

import (
	"sort"
	"strings"
)

// comparePaths orders paths so that a directory's descendants directly
// follow it: components are compared one at a time.
func comparePaths(a, b string) int {
	ac := strings.Split(strings.Trim(a, "/"), "/")
	bc := strings.Split(strings.Trim(b, "/"), "/")
	for i := 0; i < len(ac) && i < len(bc); i++ {
		if c := strings.Compare(ac[i], bc[i]); c != 0 {
			return c
		}
	}
	return len(ac) - len(bc)
}

func isAncestorOrSelf(dir, path string) bool {
	return dir == "/" || path == dir || strings.HasPrefix(path, dir+"/")
}

// Replay drives editor with the changes root's revision made, the way a
// commit of that revision would have described them.
func Replay(root Root, editor Editor) error {
	changes, err := root.Changes()
	if err != nil {
		return err
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return comparePaths(changes[i].Path, changes[j].Path) < 0
	})

	base := root.Revision() - 1
	if err := editor.OpenRoot(base); err != nil {
		return err
	}
	open := []string{"/"}

	for _, change := range changes {
		path := CanonicalPath(change.Path)
		if path == "/" {
			if change.PropModified {
				if err := changeProps(root, editor, path, true, true); err != nil {
					return err
				}
			}
			continue
		}

		// Close directories that don't contain this change, then open the
		// ones between what's left and the change's parent.
		parent := ParentPath(path)
		for !isAncestorOrSelf(open[len(open)-1], parent) {
			if err := editor.CloseDir(); err != nil {
				return err
			}
			open = open[:len(open)-1]
		}
		for top := open[len(open)-1]; top != parent; top = open[len(open)-1] {
			rest := strings.TrimPrefix(strings.TrimPrefix(parent, top), "/")
			next := JoinPath(top, strings.SplitN(rest, "/", 2)[0])
			if err := editor.OpenDir(next, base); err != nil {
				return err
			}
			open = append(open, next)
		}

		switch change.Action {
		case ChangeDelete:
			err = editor.DeleteEntry(path, base)

		case ChangeAdd, ChangeReplace:
			if change.Action == ChangeReplace {
				if err = editor.DeleteEntry(path, base); err != nil {
					return err
				}
			}
			if change.Kind == NodeKindDir {
				if err = editor.AddDir(path, change.CopyFromPath, change.CopyFromRev); err == nil {
					open = append(open, path)
				}
			} else {
				if err = editor.AddFile(path, change.CopyFromPath, change.CopyFromRev); err == nil {
					err = closeFile(root, editor, path)
				}
			}

		case ChangeModify:
			if change.Kind == NodeKindDir {
				if err = editor.OpenDir(path, base); err != nil {
					return err
				}
				open = append(open, path)
				if change.PropModified {
					err = changeProps(root, editor, path, true, true)
				}
				break
			}
			if err = editor.OpenFile(path, base); err != nil {
				return err
			}
			if change.PropModified {
				if err = changeProps(root, editor, path, false, true); err != nil {
					return err
				}
			}
			if change.TextModified {
				if err = editor.ApplyTextDelta(path, ""); err != nil {
					return err
				}
			}
			err = closeFile(root, editor, path)
		}
		if err != nil {
			return err
		}
	}

	for range open {
		if err := editor.CloseDir(); err != nil {
			return err
		}
	}
	return editor.CloseEdit()
}

// ReplayTree drives editor with the whole tree of root as plain adds, which
// is how the first revision of a non-incremental dump is written.
func ReplayTree(root Root, editor Editor) error {
	if err := editor.OpenRoot(InvalidRevnum); err != nil {
		return err
	}
	if err := changeProps(root, editor, "/", true, false); err != nil {
		return err
	}
	if err := addTree(root, editor, "/"); err != nil {
		return err
	}
	if err := editor.CloseDir(); err != nil {
		return err
	}
	return editor.CloseEdit()
}

func addTree(root Root, editor Editor, dir string) error {
	entries, err := root.Entries(dir)
	if err != nil {
		return err
	}
	for _, name := range entries {
		path := JoinPath(dir, name)
		kind, err := root.Kind(path)
		if err != nil {
			return err
		}
		if kind == NodeKindDir {
			if err := editor.AddDir(path, "", InvalidRevnum); err != nil {
				return err
			}
			if err := addTree(root, editor, path); err != nil {
				return err
			}
			if err := editor.CloseDir(); err != nil {
				return err
			}
			continue
		}
		if err := editor.AddFile(path, "", InvalidRevnum); err != nil {
			return err
		}
		if err := closeFile(root, editor, path); err != nil {
			return err
		}
	}
	return nil
}

// changeProps reports path's properties to editor. When modified is set and
// nothing is left, the removal is reported as a nameless nil change.
func changeProps(root Root, editor Editor, path string, isDir, modified bool) error {
	props, err := root.Properties(path)
	if err != nil {
		return err
	}
	if props.Len() == 0 && modified {
		if isDir {
			return editor.ChangeDirProperty("", nil)
		}
		return editor.ChangeFileProperty(path, "", nil)
	}
	for _, name := range props.Names() {
		value, _ := props.Get(name)
		if isDir {
			err = editor.ChangeDirProperty(name, value)
		} else {
			err = editor.ChangeFileProperty(path, name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func closeFile(root Root, editor Editor, path string) error {
	sum, err := root.Checksum(path, MD5)
	if err != nil {
		return err
	}
	return editor.CloseFile(path, sum)
}
