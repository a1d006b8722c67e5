package svn

import (
	"io"

	"github.com/pkg/errors"
)

// Consumer receives the records of a dump stream in order:
//
//	DumpFormat UUID? (OpenRevision SetRevisionProperty*
//	  (OpenNode RemoveNodeProperties? (SetNodeProperty|DeleteNodeProperty)*
//	   ParseTextBlock? CloseNode)* CloseRevision)*
//
// Filter and Loader both implement it, so either can sit behind Parse.
type Consumer interface {
	DumpFormat(version int) error
	UUID(uuid string) error

	OpenRevision(headers *Headers) error
	SetRevisionProperty(name string, value []byte) error
	CloseRevision() error

	OpenNode(headers *Headers) error
	// RemoveNodeProperties precedes a full (non-delta) property block.
	RemoveNodeProperties() error
	SetNodeProperty(name string, value []byte) error
	DeleteNodeProperty(name string) error
	// ParseTextBlock receives the node's text body. The reader yields
	// exactly length bytes; whatever is left unread is skipped.
	ParseTextBlock(r io.Reader, length int64, isDelta bool) error
	CloseNode() error
}

type sequenceState int

const (
	seqIdle sequenceState = iota
	seqRevision
	seqNode
	seqText
)

var sequenceStateNames = [...]string{"between revisions", "in a revision", "in a node", "after node text"}

func (s sequenceState) String() string {
	return sequenceStateNames[s]
}

// sequence enforces the Consumer call order.
type sequence struct {
	state sequenceState
}

func (s *sequence) violation(call string) error {
	return errors.Wrapf(ErrContractViolation, "%s called %s", call, s.state)
}

func (s *sequence) preamble(call string) error {
	if s.state != seqIdle {
		return s.violation(call)
	}
	return nil
}

func (s *sequence) openRevision() error {
	if s.state != seqIdle {
		return s.violation("OpenRevision")
	}
	s.state = seqRevision
	return nil
}

func (s *sequence) revisionProperty() error {
	if s.state != seqRevision {
		return s.violation("SetRevisionProperty")
	}
	return nil
}

func (s *sequence) closeRevision() error {
	if s.state != seqRevision {
		return s.violation("CloseRevision")
	}
	s.state = seqIdle
	return nil
}

func (s *sequence) openNode() error {
	if s.state != seqRevision {
		return s.violation("OpenNode")
	}
	s.state = seqNode
	return nil
}

func (s *sequence) nodeProperty(call string) error {
	if s.state != seqNode {
		return s.violation(call)
	}
	return nil
}

func (s *sequence) text() error {
	if s.state != seqNode {
		return s.violation("ParseTextBlock")
	}
	s.state = seqText
	return nil
}

func (s *sequence) closeNode() error {
	if s.state != seqNode && s.state != seqText {
		return s.violation("CloseNode")
	}
	s.state = seqRevision
	return nil
}
