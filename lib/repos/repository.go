package repos

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
	"github.com/kfsone/svndump/lib/logging"
)

// DateFormat is how svn:date values are written.
const DateFormat = "2006-01-02T15:04:05.000000Z"

// Repository is a versioned tree of directories and files. Every commit adds
// one revision; revision 0 holds only the root directory.
type Repository struct {
	store backend
	log   logging.L
	// Now supplies commit times.
	Now func() time.Time

	// commits serializes Commit against other commits.
	commits sync.Mutex
}

// NewMemory returns an empty repository kept in memory.
func NewMemory(log logging.L) (*Repository, error) {
	return newRepository(newMemoryBackend(), log)
}

func newRepository(store backend, log logging.L) (*Repository, error) {
	repo := &Repository{store: store, log: logging.Must(log), Now: time.Now}
	youngest, err := store.youngest()
	if err != nil {
		return nil, err
	}
	if youngest == svn.InvalidRevnum {
		if err := repo.initialize(); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (r *Repository) initialize() error {
	id := uuid.New().String()
	if err := r.store.setUUID(id); err != nil {
		return err
	}
	r.log.Debugf("created repository %s", id)
	return r.store.commit(&commitRecord{
		Rev:   0,
		Props: map[string][]byte{svn.PropDate: r.date()},
		Nodes: map[string]*node{"/": newDir()},
	})
}

func (r *Repository) date() []byte {
	return []byte(r.Now().UTC().Format(DateFormat))
}

// Close releases the storage.
func (r *Repository) Close() error {
	return r.store.close()
}

func (r *Repository) UUID() (string, error) {
	return r.store.uuid()
}

func (r *Repository) SetUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Wrapf(svn.ErrInvalidHeader, "uuid %q: %v", id, err)
	}
	return r.store.setUUID(id)
}

func (r *Repository) Youngest() (svn.Revnum, error) {
	return r.store.youngest()
}

func (r *Repository) checkRevision(rev svn.Revnum) error {
	youngest, err := r.store.youngest()
	if err != nil {
		return err
	}
	if rev < 0 || rev > youngest {
		return errors.Wrapf(svn.ErrNoSuchRev, "r%d (youngest is r%d)", rev, youngest)
	}
	return nil
}

func (r *Repository) RevisionProperties(rev svn.Revnum) (*svn.Properties, error) {
	if err := r.checkRevision(rev); err != nil {
		return nil, err
	}
	props, err := r.store.revisionProps(rev)
	if err != nil {
		return nil, err
	}
	return svn.PropertiesFromMap(props), nil
}

func (r *Repository) SetRevisionProperty(rev svn.Revnum, name string, value []byte) error {
	if err := r.checkRevision(rev); err != nil {
		return err
	}
	props, err := r.store.revisionProps(rev)
	if err != nil {
		return err
	}
	if value == nil {
		delete(props, name)
	} else {
		props[name] = append([]byte(nil), value...)
	}
	return r.store.setRevisionProps(rev, props)
}

func (r *Repository) Root(rev svn.Revnum) (svn.Root, error) {
	if err := r.checkRevision(rev); err != nil {
		return nil, err
	}
	return &treeRoot{
		view: &committedView{store: r.store, rev: rev},
		rev:  rev,
		changes: func() ([]svn.Change, error) {
			return r.store.changes(rev)
		},
	}, nil
}

func (r *Repository) BeginTxn(base svn.Revnum) (svn.Txn, error) {
	if err := r.checkRevision(base); err != nil {
		return nil, err
	}
	return newTxn(r, base), nil
}
