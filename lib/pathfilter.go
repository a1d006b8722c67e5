package svn

import (
	"path"
)

// FilterMode selects whether a PathFilter's prefixes say what to keep or what
// to throw away.
type FilterMode int

const (
	Include FilterMode = iota
	Exclude
)

func (m FilterMode) String() string {
	if m == Exclude {
		return "exclude"
	}
	return "include"
}

// PathFilter decides which node paths survive a filter run.
type PathFilter struct {
	Prefixes []string
	Mode     FilterMode
	// Glob treats each prefix as a path.Match pattern.
	Glob bool
}

// Matches reports whether any prefix matches p.
func (f *PathFilter) Matches(p string) bool {
	p = CanonicalPath(p)
	for _, prefix := range f.Prefixes {
		if f.Glob {
			if globMatch(CanonicalPath(prefix), p) {
				return true
			}
			continue
		}
		if MatchPathPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// globMatch matches pattern against p or any of its ancestors, so a pattern
// naming a directory also covers everything below it.
func globMatch(pattern, p string) bool {
	for {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if p == "/" {
			return false
		}
		p = path.Dir(p)
	}
}

// Skip is true for paths the filter drops: a match in exclude mode, or no
// match in include mode.
func (f *PathFilter) Skip(p string) bool {
	return f.Matches(p) == (f.Mode == Exclude)
}

// Keep is the complement of Skip.
func (f *PathFilter) Keep(p string) bool {
	return !f.Skip(p)
}
