package repos

import (
	"sort"
	"sync"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
)

type version struct {
	rev  svn.Revnum
	node *node
}

type memoryRevision struct {
	props   map[string][]byte
	changes []svn.Change
}

// memoryBackend keeps every version of every path in maps.
type memoryBackend struct {
	mu        sync.RWMutex
	id        string
	revisions []*memoryRevision
	// history lists each path's versions in commit order.
	history map[string][]version
	// names indexes every child name a directory has ever had.
	names map[string]*treeset.Set
	blobs map[string][]byte
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		history: make(map[string][]version),
		names:   make(map[string]*treeset.Set),
		blobs:   make(map[string][]byte),
	}
}

func (m *memoryBackend) uuid() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id, nil
}

func (m *memoryBackend) setUUID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

func (m *memoryBackend) youngest() (svn.Revnum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return svn.Revnum(len(m.revisions) - 1), nil
}

func (m *memoryBackend) revision(rev svn.Revnum) (*memoryRevision, error) {
	if rev < 0 || int(rev) >= len(m.revisions) {
		return nil, errors.Wrapf(svn.ErrNoSuchRev, "r%d", rev)
	}
	return m.revisions[rev], nil
}

func (m *memoryBackend) revisionProps(rev svn.Revnum) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.revision(rev)
	if err != nil {
		return nil, err
	}
	props := make(map[string][]byte, len(r.props))
	for k, v := range r.props {
		props[k] = v
	}
	return props, nil
}

func (m *memoryBackend) setRevisionProps(rev svn.Revnum, props map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.revision(rev)
	if err != nil {
		return err
	}
	r.props = props
	return nil
}

func (m *memoryBackend) lookup(rev svn.Revnum, path string) (*node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookupLocked(rev, path), nil
}

func (m *memoryBackend) lookupLocked(rev svn.Revnum, path string) *node {
	versions := m.history[path]
	i := sort.Search(len(versions), func(i int) bool { return versions[i].rev > rev })
	if i == 0 {
		return nil
	}
	return versions[i-1].node
}

func (m *memoryBackend) children(rev svn.Revnum, path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.names[path]
	if !ok {
		return nil, nil
	}
	var names []string
	for _, value := range set.Values() {
		name := value.(string)
		if m.lookupLocked(rev, svn.JoinPath(path, name)) != nil {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *memoryBackend) content(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key == emptyContent {
		return nil, nil
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, errors.Wrapf(svn.ErrNotFound, "content %s", key)
	}
	return data, nil
}

func (m *memoryBackend) changes(rev svn.Revnum) ([]svn.Change, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.revision(rev)
	if err != nil {
		return nil, err
	}
	return append([]svn.Change(nil), r.changes...), nil
}

func (m *memoryBackend) commit(record *commitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(record.Rev) != len(m.revisions) {
		return errors.Wrapf(svn.ErrNoSuchRev, "commit of r%d onto r%d", record.Rev, len(m.revisions)-1)
	}
	for key, data := range record.Blobs {
		m.blobs[key] = data
	}
	for path, n := range record.Nodes {
		m.history[path] = append(m.history[path], version{rev: record.Rev, node: n})
		if path == "/" {
			continue
		}
		parent := svn.ParentPath(path)
		set, ok := m.names[parent]
		if !ok {
			set = treeset.NewWithStringComparator()
			m.names[parent] = set
		}
		set.Add(svn.BaseName(path))
	}
	m.revisions = append(m.revisions, &memoryRevision{props: record.Props, changes: record.Changes})
	return nil
}

func (m *memoryBackend) close() error { return nil }
