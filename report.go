package main

import (
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	yml "gopkg.in/yaml.v3"

	svn "github.com/kfsone/svndump/lib"
)

// --detail: list every node rather than just per-revision counts.
var reportDetail bool

type reportNode struct {
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind,omitempty"`
	Action   string `yaml:"action"`
	CopyFrom string `yaml:"copy-from,omitempty"`
	Props    int    `yaml:"props,omitempty"`
	Text     int64  `yaml:"text-bytes,omitempty"`
	Delta    bool   `yaml:"delta,omitempty"`
}

type reportRevision struct {
	Number  svn.Revnum     `yaml:"revision"`
	Author  string         `yaml:"author,omitempty"`
	Date    string         `yaml:"date,omitempty"`
	Log     string         `yaml:"log,omitempty"`
	Actions map[string]int `yaml:"actions,omitempty"`
	Paths   []string       `yaml:"paths,omitempty"`
	Nodes   []reportNode   `yaml:"nodes,omitempty"`
}

// reportTotals summarise a whole stream.
type reportTotals struct {
	Format    int
	UUID      string
	Revisions int
	Nodes     int
	TextBytes int64
}

// reporter is a Consumer that describes each revision of a stream as yaml.
// Encoding happens on a helper goroutine while parsing continues.
type reporter struct {
	detail bool
	totals reportTotals
	writer *Helper[*reportRevision, io.Writer]

	rev  *svn.RevisionRecord
	out  *reportRevision
	node *reportNode
}

func newReporter(w io.Writer, detail bool) *reporter {
	return &reporter{
		detail: detail,
		writer: NewHelper(8, writeReportRevision, w),
	}
}

// writeReportRevision writes a revision as a list of one, so that the
// resulting document is a single list of revisions rather than a series of
// documents separated by '---'.
func writeReportRevision(rev *reportRevision, into io.Writer) error {
	ymlenc := yml.NewEncoder(into)
	ymlenc.SetIndent(2)
	if err := ymlenc.Encode([]*reportRevision{rev}); err != nil {
		return err
	}
	return ymlenc.Close()
}

func (r *reporter) DumpFormat(version int) error {
	r.totals.Format = version
	return nil
}

func (r *reporter) UUID(uuid string) error {
	r.totals.UUID = uuid
	return nil
}

func (r *reporter) OpenRevision(headers *svn.Headers) (err error) {
	if r.rev, err = svn.NewRevisionRecord(headers); err != nil {
		return err
	}
	r.out = &reportRevision{Number: r.rev.Number, Actions: map[string]int{}}
	return nil
}

func (r *reporter) SetRevisionProperty(name string, value []byte) error {
	r.rev.Properties.Set(name, value)
	return nil
}

func (r *reporter) CloseRevision() error {
	if value, ok := r.rev.Properties.Get(svn.PropAuthor); ok {
		r.out.Author = string(value)
	}
	if value, ok := r.rev.Properties.Get(svn.PropDate); ok {
		r.out.Date = string(value)
	}
	if value, ok := r.rev.Properties.Get(svn.PropLog); ok {
		r.out.Log = string(value)
	}
	sort.Strings(r.out.Paths)
	r.totals.Revisions++
	r.writer.Queue(r.out)
	r.rev, r.out = nil, nil
	return nil
}

func (r *reporter) OpenNode(headers *svn.Headers) error {
	header, err := svn.NewNodeHeader(headers)
	if err != nil {
		return err
	}
	r.node = &reportNode{
		Path:   header.Path,
		Kind:   string(header.Kind),
		Action: string(header.Action),
		Delta:  header.TextDelta,
	}
	if header.IsCopy() {
		r.node.CopyFrom = header.CopyFromPath + "@" + header.CopyFromRev.String()
	}
	return nil
}

func (r *reporter) RemoveNodeProperties() error { return nil }

func (r *reporter) SetNodeProperty(name string, value []byte) error {
	r.node.Props++
	return nil
}

func (r *reporter) DeleteNodeProperty(name string) error {
	r.node.Props++
	return nil
}

func (r *reporter) ParseTextBlock(_ io.Reader, length int64, isDelta bool) error {
	r.node.Text = length
	r.node.Delta = isDelta
	r.totals.TextBytes += length
	return nil
}

func (r *reporter) CloseNode() error {
	r.out.Actions[r.node.Action]++
	if r.detail {
		r.out.Nodes = append(r.out.Nodes, *r.node)
	} else {
		r.out.Paths = append(r.out.Paths, r.node.Path)
	}
	r.totals.Nodes++
	r.node = nil
	return nil
}

// Close waits for the last revision to be written.
func (r *reporter) Close() error {
	return r.writer.CloseWait()
}

func runReport(_ []string) (err error) {
	source, err := svn.OpenDumpSource(inFilename)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := svn.CreateDumpSink(outFilename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sink.Close(); err == nil {
			err = closeErr
		}
	}()

	r := newReporter(sink, reportDetail)
	parseErr := svn.Parse(source, r)
	if err := r.Close(); err != nil {
		return err
	}
	if parseErr != nil {
		return parseErr
	}

	Info("Dump format %d, uuid %s", r.totals.Format, r.totals.UUID)
	Info("%s revisions, %s nodes, %s of text",
		humanize.Comma(int64(r.totals.Revisions)),
		humanize.Comma(int64(r.totals.Nodes)),
		humanize.Bytes(uint64(r.totals.TextBytes)))
	return nil
}
