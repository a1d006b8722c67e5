package svn_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	svn "github.com/kfsone/svndump/lib"
)

func filterStream(input []byte, opts svn.FilterOptions) ([]byte, *svn.Filter, error) {
	var out bytes.Buffer
	f := svn.NewFilter(&out, opts)
	if err := svn.Parse(bytes.NewReader(input), f); err != nil {
		return out.Bytes(), f, err
	}
	err := f.Close()
	return out.Bytes(), f, err
}

func includeOptions(prefixes ...string) svn.FilterOptions {
	return svn.FilterOptions{PathFilter: svn.PathFilter{Prefixes: prefixes, Mode: svn.Include}}
}

const testUUID = "7bf7a5ef-cabf-0310-b7d4-93df341afa7e"

// trunkAndBranches has a revision that only touches /branches.
func trunkAndBranches() *dumpBuilder {
	return newDump(2).uuid(testUUID).
		revision(0, "svn:date", date1).
		revision(1, "svn:log", "trunk", "svn:date", date1).
		node(addDir("trunk"), []string{}, nil).
		node(addFile("trunk/a.txt"), []string{}, text("a\n")).
		revision(2, "svn:log", "branches", "svn:date", date2).
		node(addDir("branches"), []string{}, nil).
		node(addFile("branches/b.txt"), []string{}, text("b\n")).
		revision(3, "svn:log", "edit", "svn:date", date3).
		node(changeFile("trunk/a.txt"), nil, text("a2\n"))
}

var _ = Describe("Filter", func() {
	It("reproduces a stream it keeps entirely", func() {
		input := trunkAndBranches().bytes()
		output, f, err := filterStream(input, includeOptions("/"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(output)).To(Equal(string(input)))
		Expect(f.Summary().DroppedRevisions).To(BeZero())
	})

	It("drops and renumbers revisions emptied by the filter", func() {
		opts := includeOptions("/trunk")
		opts.DropEmptyRevisions = true
		opts.RenumberRevisions = true

		output, f, err := filterStream(trunkAndBranches().bytes(), opts)
		Expect(err).ToNot(HaveOccurred())

		expected := newDump(2).uuid(testUUID).
			revision(0, "svn:date", date1).
			revision(1, "svn:log", "trunk", "svn:date", date1).
			node(addDir("trunk"), []string{}, nil).
			node(addFile("trunk/a.txt"), []string{}, text("a\n")).
			revision(2, "svn:log", "edit", "svn:date", date3).
			node(changeFile("trunk/a.txt"), nil, text("a2\n"))
		Expect(string(output)).To(Equal(string(expected.bytes())))

		summary := f.Summary()
		Expect(summary.DroppedRevisions).To(Equal(1))
		Expect(summary.DroppedNodes).To(Equal([]string{"/branches", "/branches/b.txt"}))
		Expect(summary.Renumbered).To(Equal(map[svn.Revnum]svn.RevisionMapping{
			0: {Assigned: 0},
			1: {Assigned: 1},
			2: {Assigned: 1, Dropped: true},
			3: {Assigned: 2},
		}))
	})

	It("keeps original numbers when only dropping", func() {
		opts := includeOptions("/trunk")
		opts.DropEmptyRevisions = true

		output, f, err := filterStream(trunkAndBranches().bytes(), opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(output)).To(ContainSubstring("Revision-number: 3\n"))
		Expect(string(output)).ToNot(ContainSubstring("Revision-number: 2\n"))
		Expect(f.Renames().Resolve(3)).To(Equal(svn.Revnum(3)))
	})

	It("pads emptied revisions it may not drop", func() {
		output, _, err := filterStream(trunkAndBranches().bytes(), includeOptions("/trunk"))
		Expect(err).ToNot(HaveOccurred())

		expected := newDump(2).uuid(testUUID).
			revision(0, "svn:date", date1).
			revision(1, "svn:log", "trunk", "svn:date", date1).
			node(addDir("trunk"), []string{}, nil).
			node(addFile("trunk/a.txt"), []string{}, text("a\n")).
			revision(2, "svn:date", date2, "svn:log", svn.PaddingLogMessage).
			revision(3, "svn:log", "edit", "svn:date", date3).
			node(changeFile("trunk/a.txt"), nil, text("a2\n"))
		Expect(string(output)).To(Equal(string(expected.bytes())))
	})

	It("preserves revision properties when asked", func() {
		opts := includeOptions("/trunk")
		opts.PreserveRevisionProperties = true
		output, _, err := filterStream(trunkAndBranches().bytes(), opts)
		Expect(err).ToNot(HaveOccurred())

		expected := newDump(2).revision(2, "svn:log", "branches", "svn:date", date2)
		Expect(string(output)).To(ContainSubstring(string(expected.bytes()[len("SVN-fs-dump-format-version: 2\n\n"):])))
	})

	It("is idempotent", func() {
		for _, opts := range []svn.FilterOptions{
			includeOptions("/trunk"),
			{PathFilter: svn.PathFilter{Prefixes: []string{"/trunk"}}, RenumberRevisions: true, DropEmptyRevisions: true},
			{PathFilter: svn.PathFilter{Prefixes: []string{"/branches"}, Mode: svn.Exclude}, DropEmptyRevisions: true},
		} {
			once, _, err := filterStream(trunkAndBranches().bytes(), opts)
			Expect(err).ToNot(HaveOccurred())
			twice, _, err := filterStream(once, opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(twice)).To(Equal(string(once)))
		}
	})

	It("passes text bodies larger than its output buffer", func() {
		big := strings.Repeat("0123456789abcdef", 1280)
		input := newDump(2).
			revision(1, "svn:log", "big").
			node(addDir("trunk"), []string{}, nil).
			node(addFile("trunk/big.txt"), []string{}, text(big)).
			node(addFile("trunk/small.txt"), nil, text("small\n")).
			revision(2, "svn:log", "bigger").
			node(changeFile("trunk/big.txt"), nil, text(big+big+big)).
			bytes()

		output, _, err := filterStream(input, includeOptions("/"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(output)).To(Equal(string(input)))
	})

	It("is idempotent when merge-info spans a dropped revision", func() {
		opts := includeOptions("/trunk")
		opts.RenumberRevisions = true
		opts.DropEmptyRevisions = true

		input := newDump(2).
			revision(1).node(addDir("trunk"), []string{}, nil).
			revision(2).node(addDir("branches"), []string{}, nil).
			revision(3).node(addFile("trunk/b"), nil, text("b\n")).
			revision(4).
			node(addFile("trunk/c"), nil, text("c\n")).
			node([]string{"Node-path: trunk", "Node-kind: dir", "Node-action: change"},
				[]string{"svn:mergeinfo", "/trunk:1,3"}, nil).
			bytes()

		once, _, err := filterStream(input, opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(once)).To(ContainSubstring(propBlock("svn:mergeinfo", "/trunk:1-2")))

		twice, _, err := filterStream(once, opts)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(twice)).To(Equal(string(once)))
	})

	Context("with copies", func() {
		newContent := "new\n"

		copyFromBranch := func(extra ...string) *dumpBuilder {
			return newDump(2).
				revision(1, "svn:log", "old").
				node(addDir("branches"), []string{}, nil).
				node(addFile("branches/old"), []string{}, text("old\n")).
				revision(2, "svn:log", "copy").
				node(addFile("trunk.txt", append([]string{
					"Node-copyfrom-rev: 1",
					"Node-copyfrom-path: branches/old",
					"Text-copy-source-md5: " + svn.Checksum(svn.MD5, []byte("old\n")),
				}, extra...)...), nil, text(newContent))
		}

		excludeBranches := svn.FilterOptions{
			PathFilter: svn.PathFilter{Prefixes: []string{"/branches/*"}, Mode: svn.Exclude, Glob: true},
		}

		It("degrades a file copied from a filtered path to a plain add", func() {
			md5 := "Text-content-md5: " + svn.Checksum(svn.MD5, []byte(newContent))
			output, _, err := filterStream(copyFromBranch(md5).bytes(), excludeBranches)
			Expect(err).ToNot(HaveOccurred())

			expected := newDump(2).
				revision(1, "svn:log", "old").
				node(addDir("branches"), []string{}, nil).
				revision(2, "svn:log", "copy").
				node(addFile("trunk.txt", md5), nil, text(newContent))
			Expect(string(output)).To(Equal(string(expected.bytes())))
		})

		It("refuses a delta copied from a filtered path", func() {
			_, _, err := filterStream(copyFromBranch("Text-delta: true").bytes(), excludeBranches)
			Expect(err).To(MatchError(svn.ErrInvalidCopySource))
		})

		It("refuses a directory copied from a filtered path", func() {
			input := newDump(2).
				revision(1).
				node(addDir("branches"), []string{}, nil).
				node(addDir("branches/old"), []string{}, nil).
				revision(2).
				node(append(addDir("tag"), "Node-copyfrom-rev: 1", "Node-copyfrom-path: branches/old"), nil, nil)
			_, _, err := filterStream(input.bytes(), excludeBranches)
			Expect(err).To(MatchError(svn.ErrInvalidCopySource))
		})
	})

	Context("when renumbering", func() {
		// r1 and r3 only touch /x, which is filtered out.
		renumberInput := func(mergeinfo string) []byte {
			return newDump(2).
				revision(0, "svn:date", date1).
				revision(1, "svn:log", "one").
				node(addDir("x"), []string{}, nil).
				revision(2, "svn:log", "two").
				node(addDir("trunk"), []string{}, nil).
				revision(3, "svn:log", "three").
				node(addDir("x/y"), []string{}, nil).
				revision(4, "svn:log", "four").
				node(append(addDir("tag"), "Node-copyfrom-rev: 2", "Node-copyfrom-path: trunk"), nil, nil).
				node([]string{"Node-path: trunk", "Node-kind: dir", "Node-action: change"},
					[]string{"svn:mergeinfo", mergeinfo}, nil).
				bytes()
		}

		var opts svn.FilterOptions

		BeforeEach(func() {
			opts = includeOptions("/trunk", "/tag")
			opts.RenumberRevisions = true
		})

		It("rewrites copy sources and merge-info", func() {
			output, f, err := filterStream(renumberInput("/trunk:2-4"), opts)
			Expect(err).ToNot(HaveOccurred())

			expected := newDump(2).
				revision(0, "svn:date", date1).
				revision(1, "svn:log", "two").
				node(addDir("trunk"), []string{}, nil).
				revision(2, "svn:log", "four").
				node(append(addDir("tag"), "Node-copyfrom-rev: 1", "Node-copyfrom-path: trunk"), nil, nil).
				node([]string{"Node-path: trunk", "Node-kind: dir", "Node-action: change"},
					[]string{"svn:mergeinfo", "/trunk:1-2"}, nil)
			Expect(string(output)).To(Equal(string(expected.bytes())))

			again, _, err := filterStream(output, opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(again)).To(Equal(string(output)))

			By("assigning non-decreasing numbers")
			renames := f.Renames()
			last := svn.InvalidRevnum
			for _, original := range renames.Originals() {
				mapping, _ := renames.Lookup(original)
				Expect(mapping.Assigned).To(BeNumerically(">=", last))
				Expect(mapping.Assigned).To(BeNumerically("<=", original))
				last = mapping.Assigned
			}
			mapping, ok := renames.Lookup(3)
			Expect(ok).To(BeTrue())
			Expect(mapping).To(Equal(svn.RevisionMapping{Assigned: 1, Dropped: true}))
		})

		It("fails on merge sources that were filtered out", func() {
			_, _, err := filterStream(renumberInput("/x:1"), opts)
			Expect(err).To(MatchError(svn.ErrMissingMergeSource))
			Expect(err).To(MatchError(svn.ErrInvalidReference))
		})

		It("can skip merge sources that were filtered out", func() {
			opts.SkipMissingMergeSources = true
			output, _, err := filterStream(renumberInput("/x:1\n/trunk:2"), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(output)).To(ContainSubstring(propBlock("svn:mergeinfo", "/trunk:1")))
		})
	})

	Context("call order", func() {
		var f *svn.Filter

		BeforeEach(func() {
			f = svn.NewFilter(&bytes.Buffer{}, includeOptions("/"))
		})

		It("rejects closing a revision that was never opened", func() {
			Expect(f.CloseRevision()).To(MatchError(svn.ErrContractViolation))
		})

		It("rejects nodes outside a revision", func() {
			h := svn.NewHeaders()
			h.Set(svn.NodePathHeader, "a")
			h.Set(svn.NodeActionHeader, "delete")
			Expect(f.OpenNode(h)).To(MatchError(svn.ErrContractViolation))
		})

		It("rejects a preamble inside a revision", func() {
			h := svn.NewHeaders()
			h.Set(svn.RevisionNumberHeader, "1")
			Expect(f.OpenRevision(h)).To(Succeed())
			Expect(f.UUID(testUUID)).To(MatchError(svn.ErrContractViolation))
			Expect(f.Close()).To(MatchError(svn.ErrContractViolation))
		})
	})
})
