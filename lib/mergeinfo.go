package svn

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MergeRange is an inclusive span of merged revisions. A single revision has
// Start == End.
type MergeRange struct {
	Start       Revnum
	End         Revnum
	Inheritable bool
}

func (r MergeRange) String() string {
	s := r.Start.String()
	if r.End != r.Start {
		s += "-" + r.End.String()
	}
	if !r.Inheritable {
		s += "*"
	}
	return s
}

// RangeList is kept sorted by Start, then End.
type RangeList []MergeRange

func (l RangeList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Start != l[j].Start {
			return l[i].Start < l[j].Start
		}
		return l[i].End < l[j].End
	})
}

func (l RangeList) String() string {
	parts := make([]string, len(l))
	for i, r := range l {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// MergeInfo maps merge source paths to the revisions merged from them.
type MergeInfo map[string]RangeList

// ParseMergeInfo decodes an svn:mergeinfo property value.
func ParseMergeInfo(value string) (MergeInfo, error) {
	mi := MergeInfo{}
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		colon := strings.LastIndexByte(line, ':')
		if colon <= 0 {
			return nil, errors.Wrapf(ErrMalformedStream, "mergeinfo line without a source path: '%s'", line)
		}
		source, ranges := line[:colon], line[colon+1:]
		if !strings.HasPrefix(source, "/") {
			return nil, errors.Wrapf(ErrMalformedStream, "mergeinfo source path '%s' is not absolute", source)
		}
		list, err := parseRangeList(ranges)
		if err != nil {
			return nil, errors.Wrapf(err, "mergeinfo for '%s'", source)
		}
		mi[source] = coalesce(append(mi[source], list...))
	}
	return mi, nil
}

func parseRangeList(text string) (RangeList, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrap(ErrMalformedStream, "empty revision range")
	}
	var list RangeList
	for _, item := range strings.Split(text, ",") {
		item = strings.TrimSpace(item)
		r := MergeRange{Inheritable: true}
		if strings.HasSuffix(item, "*") {
			r.Inheritable = false
			item = item[:len(item)-1]
		}
		first, last, isSpan := strings.Cut(item, "-")
		start, err := parseMergeRevision(first)
		if err != nil {
			return nil, err
		}
		end := start
		if isSpan {
			if end, err = parseMergeRevision(last); err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, errors.Wrapf(ErrMalformedStream, "range '%s' ends before it starts", item)
		}
		r.Start, r.End = start, end
		list = append(list, r)
	}
	return list, nil
}

func parseMergeRevision(text string) (Revnum, error) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || n < 0 {
		return InvalidRevnum, errors.Wrapf(ErrMalformedStream, "invalid revision number '%s' in mergeinfo", text)
	}
	return Revnum(n), nil
}

// coalesce sorts a range list and joins overlapping or adjacent ranges that
// agree on inheritability.
func coalesce(list RangeList) RangeList {
	list.Sort()
	out := list[:0]
	for _, r := range list {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Inheritable == r.Inheritable && r.Start <= last.End+1 {
				if r.End > last.End {
					last.End = r.End
				}
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Paths returns the merge source paths in sorted order.
func (mi MergeInfo) Paths() []string {
	paths := make([]string, 0, len(mi))
	for p := range mi {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// String encodes the canonical property value.
func (mi MergeInfo) String() string {
	lines := make([]string, 0, len(mi))
	for _, p := range mi.Paths() {
		lines = append(lines, p+":"+mi[p].String())
	}
	return strings.Join(lines, "\n")
}

// Renumber passes every range endpoint through translate, then re-sorts and
// coalesces each range list. translate returns the new revision and whether to use it; an
// error aborts the rewrite.
func (mi MergeInfo) Renumber(translate func(Revnum) (Revnum, bool, error)) error {
	for p, list := range mi {
		for i := range list {
			for _, endpoint := range []*Revnum{&list[i].Start, &list[i].End} {
				rev, ok, err := translate(*endpoint)
				if err != nil {
					return errors.Wrapf(err, "mergeinfo for '%s'", p)
				}
				if ok {
					*endpoint = rev
				}
			}
		}
		mi[p] = coalesce(list)
	}
	return nil
}

// Prefix moves every source path below parent.
func (mi MergeInfo) Prefix(parent string) MergeInfo {
	out := make(MergeInfo, len(mi))
	for p, list := range mi {
		out[JoinPath(parent, p)] = list
	}
	return out
}
