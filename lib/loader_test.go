package svn_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
	"github.com/kfsone/svndump/lib/repos"
)

func newRepo() *repos.Repository {
	repo, err := repos.NewMemory(nil)
	Expect(err).ToNot(HaveOccurred())
	return repo
}

// commit applies edit in a transaction on the youngest revision.
func commit(repo *repos.Repository, edit func(txn svn.Txn)) svn.Revnum {
	head, err := repo.Youngest()
	Expect(err).ToNot(HaveOccurred())
	txn, err := repo.BeginTxn(head)
	Expect(err).ToNot(HaveOccurred())
	edit(txn)
	rev, err := txn.Commit()
	Expect(err).ToNot(HaveOccurred())
	return rev
}

func load(repo *repos.Repository, stream []byte, opts svn.LoaderOptions) (*svn.Loader, error) {
	loader := svn.NewLoader(repo, opts)
	return loader, svn.Parse(strings.NewReader(string(stream)), loader)
}

func contentsAt(repo *repos.Repository, rev svn.Revnum, path string) string {
	root, err := repo.Root(rev)
	Expect(err).ToNot(HaveOccurred())
	data, err := root.Contents(path)
	Expect(err).ToNot(HaveOccurred())
	return string(data)
}

func revisionProperty(repo *repos.Repository, rev svn.Revnum, name string) string {
	props, err := repo.RevisionProperties(rev)
	Expect(err).ToNot(HaveOccurred())
	value, ok := props.Get(name)
	Expect(ok).To(BeTrue(), "r%d has no %s", rev, name)
	return string(value)
}

func nodeProperty(root svn.Root, path, name string) string {
	props, err := root.Properties(path)
	Expect(err).ToNot(HaveOccurred())
	value, ok := props.Get(name)
	Expect(ok).To(BeTrue(), "%s has no %s", path, name)
	return string(value)
}

var _ = Describe("Loader", func() {
	var repo *repos.Repository

	BeforeEach(func() {
		repo = newRepo()
	})

	AfterEach(func() {
		Expect(repo.Close()).To(Succeed())
	})

	It("commits every revision of a stream", func() {
		loader, err := load(repo, trunkAndBranches().bytes(), svn.LoaderOptions{})
		Expect(err).ToNot(HaveOccurred())

		Expect(repo.Youngest()).To(Equal(svn.Revnum(3)))
		Expect(repo.UUID()).To(Equal(testUUID))
		Expect(contentsAt(repo, 1, "/trunk/a.txt")).To(Equal("a\n"))
		Expect(contentsAt(repo, 2, "/branches/b.txt")).To(Equal("b\n"))
		Expect(contentsAt(repo, 3, "/trunk/a.txt")).To(Equal("a2\n"))
		Expect(revisionProperty(repo, 3, svn.PropLog)).To(Equal("edit"))
		Expect(revisionProperty(repo, 3, svn.PropDate)).To(Equal(date3))
		Expect(revisionProperty(repo, 0, svn.PropDate)).To(Equal(date1))
		Expect(loader.Renames().Resolve(3)).To(Equal(svn.Revnum(3)))

		root, err := repo.Root(3)
		Expect(err).ToNot(HaveOccurred())
		changes, err := root.Changes()
		Expect(err).ToNot(HaveOccurred())
		Expect(changes).To(HaveLen(1))
		Expect(changes[0].Path).To(Equal("/trunk/a.txt"))
		Expect(changes[0].Action).To(Equal(svn.ChangeModify))
		Expect(changes[0].TextModified).To(BeTrue())
	})

	It("commits revisions without a date as undated", func() {
		stream := newDump(2).revision(1, "svn:log", "no date").node(addDir("d"), nil, nil)
		_, err := load(repo, stream.bytes(), svn.LoaderOptions{})
		Expect(err).ToNot(HaveOccurred())

		props, err := repo.RevisionProperties(1)
		Expect(err).ToNot(HaveOccurred())
		Expect(props.Has(svn.PropDate)).To(BeFalse())
	})

	It("rejects text that doesn't match its checksum", func() {
		stream := newDump(2).
			revision(1).
			node(addFile("bad.txt", "Text-content-md5: "+strings.Repeat("0", 32)), nil, text("data\n"))
		_, err := load(repo, stream.bytes(), svn.LoaderOptions{})
		Expect(err).To(MatchError(svn.ErrChecksumMismatch))

		var mismatch *svn.ChecksumError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
		Expect(mismatch.Path).To(Equal("/bad.txt"))
		Expect(repo.Youngest()).To(Equal(svn.Revnum(0)))
	})

	It("refuses node records in revision 0", func() {
		stream := newDump(2).revision(0).node(addDir("d"), nil, nil)
		_, err := load(repo, stream.bytes(), svn.LoaderOptions{})
		Expect(err).To(MatchError(svn.ErrMalformedStream))
	})

	It("stops at the first failed revision", func() {
		stream := newDump(2).
			revision(1).node(addDir("a"), nil, nil).
			revision(2).node(changeFile("missing.txt"), nil, text("x")).
			revision(3).node(addDir("b"), nil, nil)
		_, err := load(repo, stream.bytes(), svn.LoaderOptions{})
		Expect(err).To(MatchError(svn.ErrNotFound))
		Expect(repo.Youngest()).To(Equal(svn.Revnum(1)))
	})

	Context("UUID handling", func() {
		var original string

		BeforeEach(func() {
			var err error
			original, err = repo.UUID()
			Expect(err).ToNot(HaveOccurred())
		})

		It("ignores the stream's UUID when asked", func() {
			_, err := load(repo, trunkAndBranches().bytes(), svn.LoaderOptions{UUIDAction: svn.UUIDIgnore})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.UUID()).To(Equal(original))
		})

		It("keeps the UUID of a repository that has history", func() {
			commit(repo, func(txn svn.Txn) { Expect(txn.MakeDir("/existing")).To(Succeed()) })
			_, err := load(repo, trunkAndBranches().bytes(), svn.LoaderOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.UUID()).To(Equal(original))
		})

		It("forces the stream's UUID onto a repository with history", func() {
			commit(repo, func(txn svn.Txn) { Expect(txn.MakeDir("/existing")).To(Succeed()) })
			_, err := load(repo, trunkAndBranches().bytes(), svn.LoaderOptions{UUIDAction: svn.UUIDForce})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.UUID()).To(Equal(testUUID))
		})
	})

	Context("into a repository with history", func() {
		// r2 copies trunk from r1 and records a merge from it.
		copyStream := func() []byte {
			return newDump(2).
				revision(0, "svn:date", date1).
				revision(1, "svn:log", "one", "svn:date", date1).
				node(addDir("trunk"), []string{}, nil).
				node(addFile("trunk/a.txt", "Text-content-md5: "+svn.Checksum(svn.MD5, []byte("a\n"))), []string{}, text("a\n")).
				revision(2, "svn:log", "two", "svn:date", date2).
				node(append(addDir("branch"), "Node-copyfrom-rev: 1", "Node-copyfrom-path: trunk"), nil, nil).
				node([]string{"Node-path: branch", "Node-kind: dir", "Node-action: change"},
					[]string{"svn:mergeinfo", "/trunk:1"}, nil).
				bytes()
		}

		BeforeEach(func() {
			commit(repo, func(txn svn.Txn) { Expect(txn.MakeDir("/imported")).To(Succeed()) })
		})

		It("offsets revisions and copy sources", func() {
			loader, err := load(repo, copyStream(), svn.LoaderOptions{})
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.Youngest()).To(Equal(svn.Revnum(3)))

			Expect(loader.Renames().Resolve(1)).To(Equal(svn.Revnum(2)))
			Expect(loader.Renames().Resolve(2)).To(Equal(svn.Revnum(3)))

			root, err := repo.Root(3)
			Expect(err).ToNot(HaveOccurred())
			Expect(contentsAt(repo, 3, "/branch/a.txt")).To(Equal("a\n"))
			Expect(nodeProperty(root, "/branch", svn.PropMergeInfo)).To(Equal("/trunk:2"))

			changes, err := root.Changes()
			Expect(err).ToNot(HaveOccurred())
			Expect(changes[0].Path).To(Equal("/branch"))
			Expect(changes[0].CopyFromPath).To(Equal("/trunk"))
			Expect(changes[0].CopyFromRev).To(Equal(svn.Revnum(2)))

			By("ignoring revision 0 properties")
			Expect(revisionProperty(repo, 0, svn.PropDate)).ToNot(Equal(date1))
			Expect(revisionProperty(repo, 2, svn.PropDate)).To(Equal(date1))
		})

		It("loads below a parent directory", func() {
			_, err := load(repo, copyStream(), svn.LoaderOptions{ParentDir: "imported"})
			Expect(err).ToNot(HaveOccurred())

			root, err := repo.Root(3)
			Expect(err).ToNot(HaveOccurred())
			Expect(root.Kind("/trunk")).To(Equal(svn.NodeKindNone))
			Expect(contentsAt(repo, 3, "/imported/trunk/a.txt")).To(Equal("a\n"))
			Expect(contentsAt(repo, 3, "/imported/branch/a.txt")).To(Equal("a\n"))
			Expect(nodeProperty(root, "/imported/branch", svn.PropMergeInfo)).To(Equal("/imported/trunk:2"))
		})

		It("needs the parent directory to exist", func() {
			_, err := load(repo, copyStream(), svn.LoaderOptions{ParentDir: "/elsewhere"})
			Expect(err).To(MatchError(svn.ErrNotFound))
			Expect(repo.Youngest()).To(Equal(svn.Revnum(1)))
		})

		It("rejects copies from revisions it doesn't have", func() {
			stream := newDump(2).
				revision(5).
				node(append(addDir("branch"), "Node-copyfrom-rev: 4", "Node-copyfrom-path: imported"), nil, nil)
			_, err := load(repo, stream.bytes(), svn.LoaderOptions{})
			Expect(err).ToNot(HaveOccurred())

			stream = newDump(2).
				revision(7).
				node(append(addDir("other"), "Node-copyfrom-rev: 9", "Node-copyfrom-path: imported"), nil, nil)
			_, err = load(repo, stream.bytes(), svn.LoaderOptions{})
			Expect(err).To(MatchError(svn.ErrInvalidReference))
		})
	})

	Context("with hooks", func() {
		It("runs the pre-commit hook against each transaction", func() {
			var seen []string
			opts := svn.LoaderOptions{
				PreCommit: func(txn svn.Txn) error {
					kind, err := txn.Kind("/trunk/a.txt")
					seen = append(seen, string(kind))
					return err
				},
			}
			_, err := load(repo, trunkAndBranches().bytes(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(seen).To(Equal([]string{"file", "file", "file"}))
		})

		It("aborts on a failing pre-commit hook", func() {
			opts := svn.LoaderOptions{
				PreCommit: func(txn svn.Txn) error { return errors.New("rejected") },
			}
			_, err := load(repo, trunkAndBranches().bytes(), opts)
			Expect(err).To(MatchError(ContainSubstring("rejected")))
			Expect(repo.Youngest()).To(Equal(svn.Revnum(0)))
		})

		It("reports each commit to the post-commit hook", func() {
			var committed []svn.Revnum
			opts := svn.LoaderOptions{
				PostCommit: func(rev svn.Revnum) error {
					committed = append(committed, rev)
					return errors.New("ignored")
				},
			}
			_, err := load(repo, trunkAndBranches().bytes(), opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(committed).To(Equal([]svn.Revnum{1, 2, 3}))
		})
	})
})
