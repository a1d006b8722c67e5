package svn_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	svn "github.com/kfsone/svndump/lib"
)

var _ = Describe("MergeInfo", func() {
	DescribeTable("canonical form",
		func(input, expected string) {
			mi, err := svn.ParseMergeInfo(input)
			Expect(err).ToNot(HaveOccurred())
			Expect(mi.String()).To(Equal(expected))
		},
		Entry("single range", "/trunk:1-5", "/trunk:1-5"),
		Entry("single revision", "/trunk:7", "/trunk:7"),
		Entry("non-inheritable", "/trunk:3-4*", "/trunk:3-4*"),
		Entry("sorted paths", "/z:1\n/a:2", "/a:2\n/z:1"),
		Entry("adjacent ranges coalesce", "/trunk:1-3,4,6-7", "/trunk:1-4,6-7"),
		Entry("overlapping ranges coalesce", "/trunk:5-9,1-6", "/trunk:1-9"),
		Entry("mixed inheritability kept apart", "/trunk:1-3,4*", "/trunk:1-3,4*"),
		Entry("blank lines ignored", "\n/trunk:1\n\n", "/trunk:1"),
	)

	DescribeTable("malformed values",
		func(input string) {
			_, err := svn.ParseMergeInfo(input)
			Expect(err).To(MatchError(svn.ErrMalformedStream))
		},
		Entry("no colon", "/trunk"),
		Entry("relative path", "trunk:1"),
		Entry("backwards range", "/trunk:5-1"),
		Entry("not a number", "/trunk:x"),
		Entry("empty ranges", "/trunk:"),
	)

	It("renumbers through a rename table", func() {
		renames := svn.NewRenameTable()
		renames.Record(1, svn.RevisionMapping{Assigned: 10})
		renames.Record(5, svn.RevisionMapping{Assigned: 14})

		mi, err := svn.ParseMergeInfo("/trunk:1-5")
		Expect(err).ToNot(HaveOccurred())
		Expect(mi.Renumber(func(rev svn.Revnum) (svn.Revnum, bool, error) {
			mapped, err := renames.Resolve(rev)
			return mapped, err == nil, err
		})).To(Succeed())
		Expect(mi.String()).To(Equal("/trunk:10-14"))
	})

	It("coalesces ranges that meet after renumbering", func() {
		renames := svn.NewRenameTable()
		renames.Record(1, svn.RevisionMapping{Assigned: 1})
		renames.Record(2, svn.RevisionMapping{Assigned: 1, Dropped: true})
		renames.Record(3, svn.RevisionMapping{Assigned: 2})
		renames.Record(4, svn.RevisionMapping{Assigned: 2, Dropped: true})

		mi, err := svn.ParseMergeInfo("/trunk:1,3\n/tags/t:3-4")
		Expect(err).ToNot(HaveOccurred())
		Expect(mi.Renumber(func(rev svn.Revnum) (svn.Revnum, bool, error) {
			mapped, err := renames.Resolve(rev)
			return mapped, err == nil, err
		})).To(Succeed())
		Expect(mi.String()).To(Equal("/tags/t:2\n/trunk:1-2"))

		again, err := svn.ParseMergeInfo(mi.String())
		Expect(err).ToNot(HaveOccurred())
		Expect(again.String()).To(Equal(mi.String()))
	})

	It("reports unresolvable revisions", func() {
		renames := svn.NewRenameTable()
		mi, err := svn.ParseMergeInfo("/trunk:3")
		Expect(err).ToNot(HaveOccurred())
		err = mi.Renumber(func(rev svn.Revnum) (svn.Revnum, bool, error) {
			mapped, err := renames.Resolve(rev)
			return mapped, err == nil, err
		})
		Expect(err).To(MatchError(svn.ErrInvalidReference))
	})

	It("prefixes source paths", func() {
		mi, err := svn.ParseMergeInfo("/trunk:1\n/branches/b:2-3")
		Expect(err).ToNot(HaveOccurred())
		Expect(mi.Prefix("/imported").String()).To(Equal("/imported/branches/b:2-3\n/imported/trunk:1"))
	})
})

var _ = Describe("RenameTable", func() {
	It("resolves kept and dropped revisions", func() {
		renames := svn.NewRenameTable()
		renames.Record(0, svn.RevisionMapping{Assigned: 0})
		renames.Record(1, svn.RevisionMapping{Assigned: 0, Dropped: true})
		renames.Record(2, svn.RevisionMapping{Assigned: 1})
		renames.Record(3, svn.RevisionMapping{Assigned: svn.InvalidRevnum, Dropped: true})

		Expect(renames.Resolve(2)).To(Equal(svn.Revnum(1)))
		Expect(renames.Resolve(1)).To(Equal(svn.Revnum(0)))

		_, err := renames.Resolve(3)
		Expect(err).To(MatchError(svn.ErrInvalidReference))
		var unresolved *svn.UnresolvedReference
		_, err = renames.Resolve(9)
		Expect(err).To(BeAssignableToTypeOf(unresolved))
		Expect(renames.Originals()).To(Equal([]svn.Revnum{0, 1, 2, 3}))
	})
})

var _ = Describe("PathFilter", func() {
	DescribeTable("prefix matching by component",
		func(prefixes []string, mode svn.FilterMode, glob bool, path string, skip bool) {
			f := &svn.PathFilter{Prefixes: prefixes, Mode: mode, Glob: glob}
			Expect(f.Skip(path)).To(Equal(skip))
			Expect(f.Keep(path)).To(Equal(!skip))
		},
		Entry("include keeps the prefix", []string{"/trunk"}, svn.Include, false, "/trunk", false),
		Entry("include keeps children", []string{"trunk"}, svn.Include, false, "trunk/a.txt", false),
		Entry("include drops siblings", []string{"/trunk"}, svn.Include, false, "/trunk2/a", true),
		Entry("exclude drops children", []string{"/branches"}, svn.Exclude, false, "/branches/b.txt", true),
		Entry("exclude keeps others", []string{"/branches"}, svn.Exclude, false, "/trunk", false),
		Entry("glob matches children", []string{"/branches/*"}, svn.Exclude, true, "/branches/old/x.c", true),
		Entry("glob leaves the parent", []string{"/branches/*"}, svn.Exclude, true, "/branches", false),
		Entry("root prefix keeps all", []string{"/"}, svn.Include, false, "/anything", false),
	)
})
