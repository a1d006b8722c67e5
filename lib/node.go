package svn

import (
	"github.com/pkg/errors"
)

// NodeHeader is the typed view of a node record's header block.
type NodeHeader struct {
	Path   string // Absolute, '/'-rooted.
	Kind   NodeKind
	Action NodeAction

	CopyFromRev  Revnum
	CopyFromPath string // Absolute; empty when the node is not a copy.

	TextCopySourceMD5  string
	TextCopySourceSHA1 string
	TextDeltaBaseMD5   string
	TextDeltaBaseSHA1  string
	TextContentMD5     string
	TextContentSHA1    string

	TextDelta bool
	PropDelta bool

	HasProps   bool
	HasText    bool
	PropLength int64
	TextLength int64
}

// NewNodeHeader validates a node header block and extracts its fields.
func NewNodeHeader(h *Headers) (*NodeHeader, error) {
	rawPath, err := h.String(NodePathHeader)
	if err != nil {
		return nil, err
	}
	node := &NodeHeader{
		Path:               CanonicalPath(rawPath),
		CopyFromRev:        InvalidRevnum,
		TextCopySourceMD5:  h.Get(TextCopySourceMD5Header),
		TextCopySourceSHA1: h.Get(TextCopySourceSHA1Header),
		TextDeltaBaseMD5:   h.Get(TextDeltaBaseMD5Header),
		TextDeltaBaseSHA1:  h.Get(TextDeltaBaseSHA1Header),
		TextContentMD5:     h.Get(TextContentMD5Header),
		TextContentSHA1:    h.Get(TextContentSHA1Header),
		TextDelta:          h.Bool(TextDeltaHeader),
		PropDelta:          h.Bool(PropDeltaHeader),
		HasProps:           h.Has(PropContentLengthHeader),
		HasText:            h.Has(TextContentLengthHeader),
	}

	if h.Has(NodeKindHeader) {
		if node.Kind, err = GetNodeKind(h.Get(NodeKindHeader)); err != nil {
			return nil, errors.Wrap(err, node.Path)
		}
	}

	action, err := h.String(NodeActionHeader)
	if err != nil {
		return nil, errors.Wrap(err, node.Path)
	}
	if node.Action, err = GetNodeAction(action); err != nil {
		return nil, errors.Wrap(err, node.Path)
	}

	if h.Has(NodeCopyFromRevHeader) || h.Has(NodeCopyFromPathHeader) {
		if node.CopyFromRev, err = h.Revnum(NodeCopyFromRevHeader); err != nil {
			return nil, errors.Wrap(err, node.Path)
		}
		fromPath, err := h.String(NodeCopyFromPathHeader)
		if err != nil {
			return nil, errors.Wrap(err, node.Path)
		}
		node.CopyFromPath = CanonicalPath(fromPath)
	}

	if node.HasProps {
		if node.PropLength, err = h.Int64(PropContentLengthHeader); err != nil {
			return nil, errors.Wrap(err, node.Path)
		}
	}
	if node.HasText {
		if node.TextLength, err = h.Int64(TextContentLengthHeader); err != nil {
			return nil, errors.Wrap(err, node.Path)
		}
	}

	return node, nil
}

// IsCopy reports whether the node carries copy-from headers.
func (n *NodeHeader) IsCopy() bool {
	return n.CopyFromPath != ""
}
