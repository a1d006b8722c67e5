package svn

import "github.com/pkg/errors"

// NodeKind represents whether a node is a file/directory,
// but note that deletes don't have a kind.
type NodeKind string

const (
	NodeKindNone NodeKind = ""
	NodeKindFile NodeKind = "file"
	NodeKindDir  NodeKind = "dir"
)

var NodeKinds = map[string]NodeKind{
	"file": NodeKindFile,
	"dir":  NodeKindDir,
}

func GetNodeKind(kind string) (NodeKind, error) {
	if result, ok := NodeKinds[kind]; ok {
		return result, nil
	}
	return NodeKindNone, errors.Wrap(ErrUnknownNodeKind, kind)
}
