package repos

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	svn "github.com/kfsone/svndump/lib"
	"github.com/kfsone/svndump/lib/logging"
)

// Nodes keep one row per committed version; kind '' marks a deletion.
const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revisions (
	rev   INTEGER PRIMARY KEY,
	props BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	path    TEXT NOT NULL,
	parent  TEXT NOT NULL,
	rev     INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	props   BLOB NOT NULL,
	content TEXT NOT NULL,
	md5     TEXT NOT NULL,
	sha1    TEXT NOT NULL,
	PRIMARY KEY (path, rev)
);
CREATE INDEX IF NOT EXISTS nodes_by_parent ON nodes (parent, rev);
CREATE TABLE IF NOT EXISTS contents (
	hash TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS changes (
	rev       INTEGER NOT NULL,
	path      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	action    TEXT NOT NULL,
	copy_path TEXT NOT NULL,
	copy_rev  INTEGER NOT NULL,
	text_mod  INTEGER NOT NULL,
	prop_mod  INTEGER NOT NULL,
	PRIMARY KEY (rev, path)
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// sqliteBackend keeps a repository in a single SQLite database file.
type sqliteBackend struct {
	pool *sqlitex.Pool
	path string
}

// OpenSQLite opens the repository stored at path, creating it if needed.
func OpenSQLite(path string, log logging.L) (*Repository, error) {
	store, err := openSQLiteBackend(path)
	if err != nil {
		return nil, err
	}
	repo, err := newRepository(store, log)
	if err != nil {
		store.close()
		return nil, err
	}
	return repo, nil
}

// CreateSQLite creates a new repository at path, which must not exist.
func CreateSQLite(path string, log logging.L) (*Repository, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Wrap(svn.ErrExists, path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return OpenSQLite(path, log)
}

func openSQLiteBackend(path string) (*sqliteBackend, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: 1,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return errors.Wrap(err, pragma)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &sqliteBackend{pool: pool, path: path}, nil
}

func (s *sqliteBackend) withConn(fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return errors.Wrap(err, s.path)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	data := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, data)
	return data
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (s *sqliteBackend) uuid() (id string, err error) {
	err = s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM meta WHERE key = 'uuid'", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnText(0)
				return nil
			},
		})
	})
	return id, err
}

func (s *sqliteBackend) setUUID(id string) error {
	return s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO meta (key, value) VALUES ('uuid', ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{id}})
	})
}

func youngestOn(conn *sqlite.Conn) (svn.Revnum, error) {
	youngest := svn.InvalidRevnum
	err := sqlitex.Execute(conn, "SELECT MAX(rev) FROM revisions", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if !stmt.ColumnIsNull(0) {
				youngest = svn.Revnum(stmt.ColumnInt64(0))
			}
			return nil
		},
	})
	return youngest, err
}

func (s *sqliteBackend) youngest() (youngest svn.Revnum, err error) {
	err = s.withConn(func(conn *sqlite.Conn) error {
		youngest, err = youngestOn(conn)
		return err
	})
	return youngest, err
}

func (s *sqliteBackend) revisionProps(rev svn.Revnum) (props map[string][]byte, err error) {
	err = s.withConn(func(conn *sqlite.Conn) error {
		found := false
		err := sqlitex.Execute(conn, "SELECT props FROM revisions WHERE rev = ?", &sqlitex.ExecOptions{
			Args: []any{int64(rev)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				var err error
				props, err = decodeProps(columnBlob(stmt, 0))
				return err
			},
		})
		if err == nil && !found {
			err = errors.Wrapf(svn.ErrNoSuchRev, "r%d", rev)
		}
		return err
	})
	return props, err
}

func (s *sqliteBackend) setRevisionProps(rev svn.Revnum, props map[string][]byte) error {
	data, err := encodeProps(props)
	if err != nil {
		return err
	}
	return s.withConn(func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "UPDATE revisions SET props = ? WHERE rev = ?", &sqlitex.ExecOptions{
			Args: []any{data, int64(rev)},
		})
		if err == nil && conn.Changes() == 0 {
			err = errors.Wrapf(svn.ErrNoSuchRev, "r%d", rev)
		}
		return err
	})
}

func (s *sqliteBackend) lookup(rev svn.Revnum, path string) (n *node, err error) {
	const query = `SELECT kind, props, content, md5, sha1 FROM nodes
		WHERE path = ? AND rev <= ? ORDER BY rev DESC LIMIT 1`
	err = s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{path, int64(rev)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				kind := svn.NodeKind(stmt.ColumnText(0))
				if kind == svn.NodeKindNone {
					return nil
				}
				props, err := decodeProps(columnBlob(stmt, 1))
				if err != nil {
					return errors.Wrapf(err, "properties of %s@%d", path, rev)
				}
				n = &node{
					Kind:    kind,
					Props:   props,
					Content: stmt.ColumnText(2),
					MD5:     stmt.ColumnText(3),
					SHA1:    stmt.ColumnText(4),
				}
				return nil
			},
		})
	})
	return n, err
}

func (s *sqliteBackend) children(rev svn.Revnum, path string) (names []string, err error) {
	const query = `SELECT n.path FROM nodes n
		WHERE n.parent = ?1 AND n.kind != ''
		AND n.rev = (SELECT MAX(v.rev) FROM nodes v WHERE v.path = n.path AND v.rev <= ?2)
		ORDER BY n.path`
	err = s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{path, int64(rev)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				names = append(names, svn.BaseName(stmt.ColumnText(0)))
				return nil
			},
		})
	})
	return names, err
}

func (s *sqliteBackend) content(key string) (data []byte, err error) {
	if key == emptyContent {
		return nil, nil
	}
	err = s.withConn(func(conn *sqlite.Conn) error {
		found := false
		err := sqlitex.Execute(conn, "SELECT data FROM contents WHERE hash = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				var err error
				data, err = decompressBlob(columnBlob(stmt, 0))
				return err
			},
		})
		if err == nil && !found {
			err = errors.Wrapf(svn.ErrNotFound, "content %s", key)
		}
		return err
	})
	return data, err
}

func (s *sqliteBackend) changes(rev svn.Revnum) (changes []svn.Change, err error) {
	const query = `SELECT path, kind, action, copy_path, copy_rev, text_mod, prop_mod
		FROM changes WHERE rev = ? ORDER BY path`
	err = s.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: []any{int64(rev)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				changes = append(changes, svn.Change{
					Path:         stmt.ColumnText(0),
					Kind:         svn.NodeKind(stmt.ColumnText(1)),
					Action:       svn.ChangeAction(stmt.ColumnText(2)),
					CopyFromPath: stmt.ColumnText(3),
					CopyFromRev:  svn.Revnum(stmt.ColumnInt64(4)),
					TextModified: stmt.ColumnInt64(5) != 0,
					PropModified: stmt.ColumnInt64(6) != 0,
				})
				return nil
			},
		})
	})
	return changes, err
}

func (s *sqliteBackend) commit(record *commitRecord) error {
	return s.withConn(func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endTransaction(&err)

		youngest, err := youngestOn(conn)
		if err != nil {
			return err
		}
		if record.Rev != youngest+1 {
			return errors.Wrapf(svn.ErrNoSuchRev, "commit of r%d onto r%d", record.Rev, youngest)
		}

		props, err := encodeProps(record.Props)
		if err != nil {
			return err
		}
		if err = sqlitex.Execute(conn, "INSERT INTO revisions (rev, props) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{int64(record.Rev), props},
		}); err != nil {
			return err
		}

		for key, data := range record.Blobs {
			if err = sqlitex.Execute(conn, "INSERT OR IGNORE INTO contents (hash, data) VALUES (?, ?)", &sqlitex.ExecOptions{
				Args: []any{key, compressBlob(data)},
			}); err != nil {
				return err
			}
		}

		for path, n := range record.Nodes {
			if err = insertNode(conn, record.Rev, path, n); err != nil {
				return errors.Wrap(err, path)
			}
		}

		for _, change := range record.Changes {
			if err = sqlitex.Execute(conn, `INSERT INTO changes
				(rev, path, kind, action, copy_path, copy_rev, text_mod, prop_mod)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
				Args: []any{
					int64(record.Rev), change.Path, string(change.Kind), string(change.Action),
					change.CopyFromPath, int64(change.CopyFromRev),
					boolInt(change.TextModified), boolInt(change.PropModified),
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertNode(conn *sqlite.Conn, rev svn.Revnum, path string, n *node) error {
	parent := ""
	if path != "/" {
		parent = svn.ParentPath(path)
	}
	if n == nil {
		n = &node{}
	}
	props, err := encodeProps(n.Props)
	if err != nil {
		return err
	}
	return sqlitex.Execute(conn, `INSERT INTO nodes
		(path, parent, rev, kind, props, content, md5, sha1)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{path, parent, int64(rev), string(n.Kind), props, n.Content, n.MD5, n.SHA1},
	})
}

func (s *sqliteBackend) close() error {
	return s.pool.Close()
}
