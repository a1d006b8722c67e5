package svn

// Small helper functions.

import (
	"path"
	"strings"
)

// IndexFunc returns the first index i satisfying f(s[i]),
// or -1 if none do.
func IndexFunc[E any](s []E, f func(E) bool) int {
	for i, v := range s {
		if f(v) {
			return i
		}
	}
	return -1
}

// Index returns the first index of the array satisfying s[i] == e,
// or -1 if none do.
func Index[E comparable](s []E, e E) int {
	return IndexFunc(s, func(x E) bool { return x == e })
}

// CanonicalPath returns p as an absolute, '/'-rooted path without a trailing
// slash. The root is "/".
func CanonicalPath(p string) string {
	p = path.Clean("/" + p)
	return p
}

// DumpPath returns p the way dump files spell node paths: relative, with no
// leading slash.
func DumpPath(p string) string {
	return strings.TrimLeft(CanonicalPath(p), "/")
}

// JoinPath appends a relative or absolute child to parent.
func JoinPath(parent, child string) string {
	return CanonicalPath(parent + "/" + child)
}

// ParentPath returns the directory holding p.
func ParentPath(p string) string {
	return path.Dir(CanonicalPath(p))
}

// BaseName returns the last component of p.
func BaseName(p string) string {
	return path.Base(CanonicalPath(p))
}

// MatchPathPrefix returns true if the given path begins with the same path
// *components* as prefix, so "foo" matches "foo" and "foo/bar" but not
// "foobar". An empty or "/" prefix matches everything.
func MatchPathPrefix(p, prefix string) bool {
	p = strings.Trim(p, "/")
	prefix = strings.Trim(prefix, "/")

	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	if len(p) == len(prefix) {
		return true
	}
	return p[len(prefix)] == '/'
}
