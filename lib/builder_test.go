package svn_test

import (
	"bytes"
	"fmt"
	"strings"
)

// dumpBuilder writes dump streams framed the way the filter writes them.
type dumpBuilder struct {
	buf bytes.Buffer
}

func newDump(format int) *dumpBuilder {
	b := &dumpBuilder{}
	fmt.Fprintf(&b.buf, "SVN-fs-dump-format-version: %d\n\n", format)
	return b
}

func (b *dumpBuilder) uuid(id string) *dumpBuilder {
	fmt.Fprintf(&b.buf, "UUID: %s\n\n", id)
	return b
}

func (b *dumpBuilder) revision(rev int, props ...string) *dumpBuilder {
	block := propBlock(props...)
	fmt.Fprintf(&b.buf, "Revision-number: %d\nProp-content-length: %d\nContent-length: %d\n\n%s\n",
		rev, len(block), len(block), block)
	return b
}

// node writes a node record. nil props means no property block; nil text
// means no text body.
func (b *dumpBuilder) node(headers []string, props []string, text *string) *dumpBuilder {
	for _, h := range headers {
		b.buf.WriteString(h + "\n")
	}
	var block string
	if props != nil {
		block = propBlock(props...)
		fmt.Fprintf(&b.buf, "Prop-content-length: %d\n", len(block))
	}
	total := len(block)
	if text != nil {
		fmt.Fprintf(&b.buf, "Text-content-length: %d\n", len(*text))
		total += len(*text)
	}
	fmt.Fprintf(&b.buf, "Content-length: %d\n\n", total)
	b.buf.WriteString(block)
	if text != nil {
		b.buf.WriteString(*text)
	}
	b.buf.WriteString("\n\n")
	return b
}

func (b *dumpBuilder) bytes() []byte {
	return b.buf.Bytes()
}

func (b *dumpBuilder) reader() *bytes.Reader {
	return bytes.NewReader(b.buf.Bytes())
}

func text(s string) *string {
	return &s
}

func propBlock(pairs ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&sb, "K %d\n%s\nV %d\n%s\n", len(pairs[i]), pairs[i], len(pairs[i+1]), pairs[i+1])
	}
	sb.WriteString("PROPS-END\n")
	return sb.String()
}

func addDir(path string) []string {
	return []string{"Node-path: " + path, "Node-kind: dir", "Node-action: add"}
}

func addFile(path string, extra ...string) []string {
	return append([]string{"Node-path: " + path, "Node-kind: file", "Node-action: add"}, extra...)
}

func changeFile(path string, extra ...string) []string {
	return append([]string{"Node-path: " + path, "Node-kind: file", "Node-action: change"}, extra...)
}

const (
	date1 = "2005-01-01T00:00:01.000000Z"
	date2 = "2005-01-02T00:00:02.000000Z"
	date3 = "2005-01-03T00:00:03.000000Z"
)
