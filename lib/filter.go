package svn

import (
	"io"
	"strconv"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"

	"github.com/kfsone/svndump/lib/logging"
)

// FilterOptions configure a Filter run.
type FilterOptions struct {
	PathFilter

	// RenumberRevisions closes the gaps left by dropped revisions.
	RenumberRevisions bool
	// DropEmptyRevisions drops revisions emptied by filtering.
	DropEmptyRevisions bool
	// PreserveRevisionProperties keeps all revision properties of emptied
	// revisions instead of turning them into padding.
	PreserveRevisionProperties bool
	// SkipMissingMergeSources drops merge-info entries for filtered paths
	// instead of failing.
	SkipMissingMergeSources bool

	Logger logging.L
}

type recordState int

const (
	statePending recordState = iota
	stateSkipped
	stateBuffering
	stateFlushed
	stateDropped
)

// filterRevision is the in-flight revision: nothing about it reaches the
// output until a node flushes or the revision closes.
type filterRevision struct {
	state           recordState
	original        Revnum
	headers         *Headers
	props           *Properties
	hasNodes        bool // at least one node was written
	hadDroppedNodes bool // at least one node was filtered out
}

// filterNode buffers a kept node's header and property block until the
// first text byte or the node's close.
type filterNode struct {
	state    recordState
	path     string
	hasProps bool
	hasText  bool
	header   []byte
	props    []byte
}

// FilterSummary reports what a run dropped and renumbered.
type FilterSummary struct {
	DroppedRevisions int
	Renumbered       map[Revnum]RevisionMapping
	DroppedNodes     []string
}

// Filter is a Consumer that re-emits the stream it is fed, minus the paths
// its PathFilter rejects.
type Filter struct {
	opts FilterOptions
	log  logging.L
	out  *Encoder
	seq  sequence

	renames          *RenameTable
	lastLive         Revnum
	droppedRevisions int
	droppedNodes     *treeset.Set

	rev  filterRevision
	node filterNode

	// Reused per record.
	scratch []byte
}

// NewFilter returns a Filter writing to w.
func NewFilter(w io.Writer, opts FilterOptions) *Filter {
	return &Filter{
		opts:         opts,
		log:          logging.Must(opts.Logger),
		out:          NewEncoder(w),
		renames:      NewRenameTable(),
		lastLive:     InvalidRevnum,
		droppedNodes: treeset.NewWithStringComparator(),
		scratch:      make([]byte, 0, 1024),
	}
}

// Renames exposes the rename table built so far.
func (f *Filter) Renames() *RenameTable {
	return f.renames
}

func (f *Filter) DumpFormat(version int) error {
	if err := f.seq.preamble("DumpFormat"); err != nil {
		return err
	}
	WriteFormatRecord(f.out, version)
	return f.out.Err()
}

func (f *Filter) UUID(uuid string) error {
	if err := f.seq.preamble("UUID"); err != nil {
		return err
	}
	WriteUUIDRecord(f.out, uuid)
	return f.out.Err()
}

func (f *Filter) OpenRevision(headers *Headers) error {
	if err := f.seq.openRevision(); err != nil {
		return err
	}
	original, err := headers.Revnum(RevisionNumberHeader)
	if err != nil {
		return err
	}
	f.rev = filterRevision{
		state:    statePending,
		original: original,
		headers:  headers.Clone(),
		props:    NewProperties(),
	}
	return nil
}

func (f *Filter) SetRevisionProperty(name string, value []byte) error {
	if err := f.seq.revisionProperty(); err != nil {
		return err
	}
	f.rev.props.Set(name, value)
	return nil
}

func (f *Filter) CloseRevision() error {
	if err := f.seq.closeRevision(); err != nil {
		return err
	}
	if f.rev.state != statePending {
		return f.out.Err()
	}

	droppable := (f.opts.RenumberRevisions || f.opts.DropEmptyRevisions) &&
		!f.rev.hasNodes && f.rev.hadDroppedNodes
	if droppable {
		f.rev.state = stateDropped
		f.droppedRevisions++
		f.renames.Record(f.rev.original, RevisionMapping{Assigned: f.lastLive, Dropped: true})
		f.log.Infof("Revision %d skipped.", f.rev.original)
		return nil
	}

	return f.flushRevision()
}

// flushRevision writes the revision header and properties, assigning the
// revision its output number. It happens at most once per revision.
func (f *Filter) flushRevision() error {
	if f.rev.state != statePending {
		return nil
	}
	f.rev.state = stateFlushed

	assigned := f.rev.original
	if f.opts.RenumberRevisions {
		assigned = f.rev.original - Revnum(f.droppedRevisions)
	}
	f.lastLive = assigned
	f.renames.Record(f.rev.original, RevisionMapping{Assigned: assigned})

	props := f.rev.props
	hasProps := f.rev.headers.Has(PropContentLengthHeader) || props.Len() > 0
	if !f.opts.PreserveRevisionProperties && !f.rev.hasNodes && f.rev.hadDroppedNodes {
		padding := NewProperties()
		if date, ok := props.Get(PropDate); ok {
			padding.Set(PropDate, date)
		}
		padding.Set(PropLog, []byte(PaddingLogMessage))
		props, hasProps = padding, true
	}

	buf := appendHeader(f.scratch[:0], RevisionNumberHeader, assigned.String())
	for _, key := range f.rev.headers.Keys() {
		switch key {
		case RevisionNumberHeader, PropContentLengthHeader, ContentLengthHeader:
			continue
		}
		buf = appendHeader(buf, key, f.rev.headers.Get(key))
	}

	var block []byte
	if hasProps {
		block = props.AppendTo(nil)
		buf = appendHeader(buf, PropContentLengthHeader, strconv.Itoa(len(block)))
	}
	buf = appendHeader(buf, ContentLengthHeader, strconv.Itoa(len(block)))
	buf = append(buf, '\n')
	buf = append(buf, block...)
	buf = append(buf, '\n')
	f.scratch = buf

	f.out.Write(buf)
	if f.opts.RenumberRevisions {
		f.log.Infof("Revision %d committed as %d.", f.rev.original, assigned)
	} else {
		f.log.Debugf("Revision %d kept.", f.rev.original)
	}
	return f.out.Err()
}

func (f *Filter) OpenNode(headers *Headers) error {
	if err := f.seq.openNode(); err != nil {
		return err
	}
	node, err := NewNodeHeader(headers)
	if err != nil {
		return err
	}

	f.node = filterNode{
		state:  statePending,
		path:   node.Path,
		header: f.node.header[:0],
		props:  f.node.props[:0],
	}

	if f.opts.Skip(node.Path) {
		f.node.state = stateSkipped
		f.rev.hadDroppedNodes = true
		f.droppedNodes.Add(node.Path)
		f.log.Debugf("r%d: dropping %s", f.rev.original, node.Path)
		return nil
	}

	degrade := false
	if node.IsCopy() && f.opts.Skip(node.CopyFromPath) {
		if node.Kind != NodeKindFile || !node.HasText || node.TextDelta {
			return errors.Wrapf(ErrInvalidCopySource, "'%s' copies from filtered path '%s'", node.Path, node.CopyFromPath)
		}
		degrade = true
		f.log.Debugf("r%d: %s copies from filtered %s; writing as a plain add", f.rev.original, node.Path, node.CopyFromPath)
	}

	buf := f.node.header
	for _, key := range headers.Keys() {
		value := headers.Get(key)
		switch key {
		case ContentLengthHeader, PropContentLengthHeader, TextContentLengthHeader:
			continue
		case NodeCopyFromPathHeader, TextCopySourceMD5Header, TextCopySourceSHA1Header:
			if degrade {
				continue
			}
		case NodeCopyFromRevHeader:
			if degrade {
				continue
			}
			if f.opts.RenumberRevisions {
				mapped, err := f.renames.Resolve(node.CopyFromRev)
				if err != nil {
					return errors.Wrapf(err, "copy source of '%s'", node.Path)
				}
				value = mapped.String()
			}
		}
		buf = appendHeader(buf, key, value)
	}

	f.node.header = buf
	f.node.state = stateBuffering
	f.node.hasProps = node.HasProps
	f.node.hasText = node.HasText
	return nil
}

func (f *Filter) RemoveNodeProperties() error {
	// The properties are re-emitted as a full block; nothing to clear.
	return f.seq.nodeProperty("RemoveNodeProperties")
}

func (f *Filter) SetNodeProperty(name string, value []byte) error {
	if err := f.seq.nodeProperty("SetNodeProperty"); err != nil {
		return err
	}
	if f.node.state != stateBuffering {
		return nil
	}
	if name == PropMergeInfo {
		rewritten, err := f.rewriteMergeInfo(value)
		if err != nil {
			return errors.Wrapf(err, "r%d: %s", f.rev.original, f.node.path)
		}
		value = rewritten
	}
	f.node.props = AppendProperty(f.node.props, name, value)
	return nil
}

func (f *Filter) DeleteNodeProperty(name string) error {
	if err := f.seq.nodeProperty("DeleteNodeProperty"); err != nil {
		return err
	}
	if f.node.state == stateBuffering {
		f.node.props = AppendPropertyDeletion(f.node.props, name)
	}
	return nil
}

func (f *Filter) rewriteMergeInfo(value []byte) ([]byte, error) {
	mi, err := ParseMergeInfo(string(value))
	if err != nil {
		return nil, err
	}
	for _, source := range mi.Paths() {
		if f.opts.Skip(source) {
			if !f.opts.SkipMissingMergeSources {
				return nil, errors.Wrapf(ErrMissingMergeSource, "'%s'; try with skip-missing-merge-sources", source)
			}
			delete(mi, source)
		}
	}
	if f.opts.RenumberRevisions {
		err := mi.Renumber(func(rev Revnum) (Revnum, bool, error) {
			mapped, err := f.renames.Resolve(rev)
			return mapped, err == nil, err
		})
		if err != nil {
			return nil, err
		}
	}
	return []byte(mi.String()), nil
}

func (f *Filter) ParseTextBlock(r io.Reader, length int64, isDelta bool) error {
	if err := f.seq.text(); err != nil {
		return err
	}
	if f.node.state != stateBuffering {
		return nil
	}
	if err := f.flushNode(length); err != nil {
		return err
	}
	n, err := io.CopyBuffer(f.out, io.LimitReader(r, length), make([]byte, ChunkSize))
	if err != nil {
		return err
	}
	if n < length {
		return errors.Wrapf(ErrIncompleteData, "%s: text body short by %d bytes", f.node.path, length-n)
	}
	return f.out.Err()
}

// flushNode writes the buffered node header and properties. The revision
// is flushed first if this is its first surviving node.
func (f *Filter) flushNode(textLength int64) error {
	f.node.state = stateFlushed
	f.rev.hasNodes = true
	if err := f.flushRevision(); err != nil {
		return err
	}

	buf := f.node.header
	var propLength int64
	if f.node.hasProps {
		f.node.props = AppendPropsEnd(f.node.props)
		propLength = int64(len(f.node.props))
		buf = appendHeader(buf, PropContentLengthHeader, strconv.FormatInt(propLength, 10))
	}
	if f.node.hasText {
		buf = appendHeader(buf, TextContentLengthHeader, strconv.FormatInt(textLength, 10))
	}
	buf = appendHeader(buf, ContentLengthHeader, strconv.FormatInt(propLength+textLength, 10))
	buf = append(buf, '\n')
	f.node.header = buf

	f.out.Write(buf)
	if f.node.hasProps {
		f.out.Write(f.node.props)
	}
	return f.out.Err()
}

func (f *Filter) CloseNode() error {
	if err := f.seq.closeNode(); err != nil {
		return err
	}
	switch f.node.state {
	case stateSkipped:
		return nil
	case stateBuffering:
		if err := f.flushNode(0); err != nil {
			return err
		}
	}
	f.out.Newlines(2)
	return f.out.Err()
}

// Close flushes the output. The Filter is finished with after this.
func (f *Filter) Close() error {
	if f.seq.state != seqIdle {
		return f.seq.violation("Close")
	}
	return f.out.Flush()
}

// Summary reports the dropped revisions and nodes of the run so far.
func (f *Filter) Summary() FilterSummary {
	s := FilterSummary{
		DroppedRevisions: f.droppedRevisions,
		Renumbered:       make(map[Revnum]RevisionMapping, f.renames.Len()),
		DroppedNodes:     make([]string, 0, f.droppedNodes.Size()),
	}
	for _, rev := range f.renames.Originals() {
		s.Renumbered[rev], _ = f.renames.Lookup(rev)
	}
	for _, p := range f.droppedNodes.Values() {
		s.DroppedNodes = append(s.DroppedNodes, p.(string))
	}
	return s
}
