// Package repos provides the versioned-tree stores that dumps are loaded
// into and written from.
package repos

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	svn "github.com/kfsone/svndump/lib"
)

// node is one stored version of a path.
type node struct {
	Kind  svn.NodeKind
	Props map[string][]byte
	// Content is the blake3 key of a file's text.
	Content string
	MD5     string
	SHA1    string
}

func (n *node) clone() *node {
	c := *n
	c.Props = make(map[string][]byte, len(n.Props))
	for k, v := range n.Props {
		c.Props[k] = v
	}
	return &c
}

// contentKey addresses a text blob.
func contentKey(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var emptyContent = contentKey(nil)

func newDir() *node {
	return &node{Kind: svn.NodeKindDir, Props: map[string][]byte{}}
}

func newFile() *node {
	return &node{
		Kind:    svn.NodeKindFile,
		Props:   map[string][]byte{},
		Content: emptyContent,
		MD5:     svn.Checksum(svn.MD5, nil),
		SHA1:    svn.Checksum(svn.SHA1, nil),
	}
}
