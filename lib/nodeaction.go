package svn

import "github.com/pkg/errors"

// NodeAction represents what action is being applied to a
// node, i.e a change, addition, replacement or deletion.
type NodeAction string

const (
	NodeActionChange  NodeAction = "change"
	NodeActionAdd     NodeAction = "add"
	NodeActionDelete  NodeAction = "delete"
	NodeActionReplace NodeAction = "replace"
)

var NodeActions = map[string]NodeAction{
	"change":  NodeActionChange,
	"add":     NodeActionAdd,
	"delete":  NodeActionDelete,
	"replace": NodeActionReplace,
}

func GetNodeAction(act string) (NodeAction, error) {
	if result, ok := NodeActions[act]; ok {
		return result, nil
	}
	return "", errors.Wrap(ErrUnknownNodeAction, act)
}
