package svn

import (
	"io"

	"github.com/pkg/errors"
)

// Parse tokenizes a dump stream and drives c with its records.
func Parse(source io.Reader, c Consumer) error {
	p := &parser{dump: NewDumpReader(source), consumer: c}
	return p.run()
}

type parser struct {
	dump       *DumpReader
	consumer   Consumer
	format     int
	inRevision bool
	revision   Revnum
}

func (p *parser) run() error {
	for {
		h, err := p.dump.ReadHeaders()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch {
		case h.Has(VersionStringHeader):
			if p.format, err = CheckFormat(h); err != nil {
				return err
			}
			err = p.consumer.DumpFormat(p.format)

		case h.Has(UUIDHeader):
			err = p.consumer.UUID(h.Get(UUIDHeader))

		case h.Has(RevisionNumberHeader):
			err = p.revisionRecord(h)

		case h.Has(NodePathHeader):
			if !p.inRevision {
				return errors.Wrapf(ErrMalformedStream, "node record '%s' before any revision", h.Get(NodePathHeader))
			}
			err = p.nodeRecord(h)

		default:
			return errors.Wrapf(ErrMalformedStream, "unrecognized record at offset %d: %v", p.dump.Offset(), h.Keys())
		}
		if err != nil {
			return err
		}
	}

	if p.inRevision {
		return p.consumer.CloseRevision()
	}
	return nil
}

// lengths extracts and cross-checks the length headers of a record.
func (p *parser) lengths(h *Headers) (props, text, content int64, err error) {
	if h.Has(PropContentLengthHeader) {
		if props, err = h.Int64(PropContentLengthHeader); err != nil {
			return
		}
	}
	if h.Has(TextContentLengthHeader) {
		if text, err = h.Int64(TextContentLengthHeader); err != nil {
			return
		}
	}
	content = props + text
	if h.Has(ContentLengthHeader) {
		if content, err = h.Int64(ContentLengthHeader); err != nil {
			return
		}
		if content < props+text {
			err = errors.Wrapf(ErrMalformedStream, "Content-length %d is less than properties (%d) plus text (%d)", content, props, text)
		}
	}
	return
}

func (p *parser) revisionRecord(h *Headers) error {
	if p.inRevision {
		if err := p.consumer.CloseRevision(); err != nil {
			return err
		}
	}
	rev, err := h.Revnum(RevisionNumberHeader)
	if err != nil {
		return err
	}
	if p.inRevision && rev <= p.revision {
		return errors.Wrapf(ErrMalformedStream, "revision %d follows revision %d", rev, p.revision)
	}
	p.revision, p.inRevision = rev, true

	propLen, _, contentLen, err := p.lengths(h)
	if err != nil {
		return errors.Wrapf(err, "r%d", rev)
	}

	if err := p.consumer.OpenRevision(h); err != nil {
		return err
	}

	if h.Has(PropContentLengthHeader) {
		entries, err := p.propertyBlock(propLen)
		if err != nil {
			return errors.Wrapf(err, "r%d properties", rev)
		}
		for _, entry := range entries {
			if entry.Deleted {
				return errors.Wrapf(ErrMalformedStream, "r%d: property deletion in a revision record", rev)
			}
			if err := p.consumer.SetRevisionProperty(entry.Name, entry.Value); err != nil {
				return err
			}
		}
	}

	return p.dump.Discard(contentLen - propLen)
}

func (p *parser) nodeRecord(h *Headers) error {
	propLen, textLen, contentLen, err := p.lengths(h)
	if err != nil {
		return errors.Wrap(err, h.Get(NodePathHeader))
	}

	if err := p.consumer.OpenNode(h); err != nil {
		return err
	}

	if h.Has(PropContentLengthHeader) {
		entries, err := p.propertyBlock(propLen)
		if err != nil {
			return errors.Wrapf(err, "%s properties", h.Get(NodePathHeader))
		}
		if !h.Bool(PropDeltaHeader) {
			if err := p.consumer.RemoveNodeProperties(); err != nil {
				return err
			}
		}
		for _, entry := range entries {
			if entry.Deleted {
				err = p.consumer.DeleteNodeProperty(entry.Name)
			} else {
				err = p.consumer.SetNodeProperty(entry.Name, entry.Value)
			}
			if err != nil {
				return err
			}
		}
	}

	if h.Has(TextContentLengthHeader) {
		section := p.dump.Section(textLen)
		if err := p.consumer.ParseTextBlock(section, textLen, h.Bool(TextDeltaHeader)); err != nil {
			return err
		}
		if err := section.Drain(); err != nil {
			return err
		}
	}

	if err := p.dump.Discard(contentLen - propLen - textLen); err != nil {
		return err
	}

	return p.consumer.CloseNode()
}

func (p *parser) propertyBlock(length int64) ([]PropertyEntry, error) {
	block, err := p.dump.ReadBlock(length)
	if err != nil {
		return nil, err
	}
	return ParsePropertyBlock(block)
}
