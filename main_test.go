package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	yml "gopkg.in/yaml.v3"

	svn "github.com/kfsone/svndump/lib"
	"github.com/kfsone/svndump/lib/repos"
)

// resetFlags puts every command's flags back to their defaults, since they
// are bound to package variables shared between runs.
func resetFlags() {
	registerCommands()
	for _, cmd := range commands {
		cmd.flags.VisitAll(func(f *pflag.Flag) {
			Expect(f.Value.Set(f.DefValue)).To(Succeed())
			f.Changed = false
		})
	}
}

func runCommand(args ...string) error {
	resetFlags()
	cmd, err := parseCommandLine(args)
	if err != nil {
		return err
	}
	Expect(cmd).ToNot(BeNil())
	return cmd.run(cmd.flags.Args())
}

const sampleDump = "SVN-fs-dump-format-version: 2\n\n" +
	"UUID: 0b7e3d5c-1c8e-4f0a-9d0c-6a3b2f1e4d5c\n\n" +
	"Revision-number: 0\nProp-content-length: 56\nContent-length: 56\n\n" +
	"K 8\nsvn:date\nV 27\n2005-01-01T00:00:01.000000Z\nPROPS-END\n\n" +
	"Revision-number: 1\nProp-content-length: 10\nContent-length: 10\n\nPROPS-END\n\n" +
	"Node-path: trunk\nNode-kind: dir\nNode-action: add\nContent-length: 0\n\n\n\n" +
	"Node-path: trunk/a.txt\nNode-kind: file\nNode-action: add\nText-content-length: 2\nContent-length: 2\n\na\n\n\n" +
	"Revision-number: 2\nProp-content-length: 10\nContent-length: 10\n\nPROPS-END\n\n" +
	"Node-path: branches\nNode-kind: dir\nNode-action: add\nContent-length: 0\n\n\n\n"

var _ = Describe("command line", func() {
	table.DescribeTable("revision ranges",
		func(spec string, start, end svn.Revnum, ok bool) {
			gotStart, gotEnd, err := parseRevisionRange(spec)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).ToNot(HaveOccurred())
			Expect(gotStart).To(Equal(start))
			Expect(gotEnd).To(Equal(end))
		},
		table.Entry("everything", "", svn.Revnum(0), svn.InvalidRevnum, true),
		table.Entry("single", "7", svn.Revnum(7), svn.Revnum(7), true),
		table.Entry("range", "3:9", svn.Revnum(3), svn.Revnum(9), true),
		table.Entry("backwards", "9:3", svn.Revnum(0), svn.Revnum(0), false),
		table.Entry("not a number", "head", svn.Revnum(0), svn.Revnum(0), false),
		table.Entry("bad upper", "1:x", svn.Revnum(0), svn.Revnum(0), false),
	)

	It("rejects unknown commands and bad argument counts", func() {
		Expect(runCommand("frobnicate")).To(MatchError(ContainSubstring("unknown command")))
		Expect(runCommand("dump")).To(MatchError(ContainSubstring("wrong number of arguments")))
		Expect(runCommand("report", "-v", "-q")).To(MatchError(ContainSubstring("mutually exclusive")))
	})

	Describe("rules", func() {
		var dir string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "svndump-rules")
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
		})

		writeRules := func(text string) string {
			path := filepath.Join(dir, "rules.yml")
			Expect(os.WriteFile(path, []byte(text), 0644)).To(Succeed())
			return path
		}

		It("reads filter settings from yaml", func() {
			rules, err := NewRules(writeRules("exclude:\n  - /branches/*\npattern: true\ndrop-empty-revs: true\n"))
			Expect(err).ToNot(HaveOccurred())
			opts, err := rules.FilterOptions()
			Expect(err).ToNot(HaveOccurred())
			Expect(opts.Mode).To(Equal(svn.Exclude))
			Expect(opts.Prefixes).To(Equal([]string{"/branches/*"}))
			Expect(opts.Glob).To(BeTrue())
			Expect(opts.DropEmptyRevisions).To(BeTrue())
			Expect(opts.RenumberRevisions).To(BeFalse())
		})

		It("lets flags override the file", func() {
			rules, err := NewRules(writeRules("include: [/trunk]\nrenumber-revs: true\n"))
			Expect(err).ToNot(HaveOccurred())

			resetFlags()
			flags := findCommand("filter").flags
			Expect(flags.Parse([]string{"--renumber-revs=false", "--preserve-revprops"})).To(Succeed())
			Expect(rules.ApplyFilterFlags(flags, "exclude", []string{"/tags"})).To(Succeed())

			opts, err := rules.FilterOptions()
			Expect(err).ToNot(HaveOccurred())
			Expect(opts.Mode).To(Equal(svn.Exclude))
			Expect(opts.Prefixes).To(Equal([]string{"/tags"}))
			Expect(opts.RenumberRevisions).To(BeFalse())
			Expect(opts.PreserveRevisionProperties).To(BeTrue())

			Expect(rules.ApplyFilterFlags(flags, "sideways", nil)).ToNot(Succeed())
		})

		It("needs exactly one of include or exclude", func() {
			_, err := (&Rules{}).FilterOptions()
			Expect(err).To(HaveOccurred())
			_, err = (&Rules{Include: []string{"/a"}, Exclude: []string{"/b"}}).FilterOptions()
			Expect(err).To(HaveOccurred())
		})

		It("reports malformed files", func() {
			_, err := NewRules(writeRules("include: {not: [a list\n"))
			Expect(err).To(HaveOccurred())
			_, err = NewRules(filepath.Join(dir, "missing.yml"))
			Expect(err).To(HaveOccurred())
		})

		table.DescribeTable("uuid actions",
			func(setting string, action svn.UUIDAction, ok bool) {
				got, err := (&Rules{UUID: setting}).UUIDAction()
				if !ok {
					Expect(err).To(HaveOccurred())
					return
				}
				Expect(err).ToNot(HaveOccurred())
				Expect(got).To(Equal(action))
			},
			table.Entry("unset", "", svn.UUIDDefault, true),
			table.Entry("default", "default", svn.UUIDDefault, true),
			table.Entry("ignore", "ignore", svn.UUIDIgnore, true),
			table.Entry("force", "force", svn.UUIDForce, true),
			table.Entry("nonsense", "always", svn.UUIDDefault, false),
		)
	})

	Describe("Helper", func() {
		It("applies work in order and keeps the first error", func() {
			var seen []int
			var calls int32
			helper := NewHelper(2, func(item int, into *[]int) error {
				atomic.AddInt32(&calls, 1)
				*into = append(*into, item)
				if item == 3 {
					return errors.New("three")
				}
				return nil
			}, &seen)
			for i := 1; i <= 5; i++ {
				helper.Queue(i)
			}
			Expect(helper.CloseWait()).To(MatchError("three"))
			Expect(seen).To(Equal([]int{1, 2, 3}))
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
		})
	})

	It("runs hooks with extra arguments", func() {
		Expect(runHook("true", "repo", "1")).To(Succeed())
		Expect(runHook("")).To(Succeed())
		Expect(runHook("false", "repo", "1")).To(MatchError(ContainSubstring("hook false")))
	})

	Describe("end to end", func() {
		var dir, repoPath, input string

		BeforeEach(func() {
			var err error
			dir, err = os.MkdirTemp("", "svndump-cli")
			Expect(err).ToNot(HaveOccurred())
			repoPath = filepath.Join(dir, "repo.db")
			input = filepath.Join(dir, "input.svndump")
			Expect(os.WriteFile(input, []byte(sampleDump), 0644)).To(Succeed())
			Expect(runCommand("create", repoPath, "-q")).To(Succeed())
		})

		AfterEach(func() {
			os.RemoveAll(dir)
		})

		youngest := func() svn.Revnum {
			repo, err := repos.OpenSQLite(repoPath, nil)
			Expect(err).ToNot(HaveOccurred())
			defer repo.Close()
			rev, err := repo.Youngest()
			Expect(err).ToNot(HaveOccurred())
			return rev
		}

		It("refuses to create over an existing repository", func() {
			Expect(runCommand("create", repoPath, "-q")).To(MatchError(svn.ErrExists))
		})

		It("stops loading when the pre-commit hook fails", func() {
			err := runCommand("load", repoPath, "-q", "-i", input, "--pre-commit-hook", "false")
			Expect(err).To(HaveOccurred())
			Expect(youngest()).To(Equal(svn.Revnum(0)))
		})

		It("loads, dumps, filters and reports", func() {
			Expect(runCommand("load", repoPath, "-q", "-i", input, "--post-commit-hook", "true")).To(Succeed())
			Expect(youngest()).To(Equal(svn.Revnum(2)))

			dumped := filepath.Join(dir, "dumped.svndump.zst")
			Expect(runCommand("dump", repoPath, "-q", "--deltas", "--delta-version", "1", "-o", dumped)).To(Succeed())

			filtered := filepath.Join(dir, "filtered.svndump.gz")
			Expect(runCommand("filter", "include", "/trunk", "-q", "--drop-empty-revs", "--renumber-revs",
				"-i", dumped, "-o", filtered)).To(Succeed())

			report := filepath.Join(dir, "report.yml")
			Expect(runCommand("report", "-q", "--detail", "-i", filtered, "-o", report)).To(Succeed())

			data, err := os.ReadFile(report)
			Expect(err).ToNot(HaveOccurred())
			var revisions []reportRevision
			Expect(yml.Unmarshal(data, &revisions)).To(Succeed())
			Expect(revisions).To(HaveLen(2))
			Expect(revisions[0].Number).To(Equal(svn.Revnum(0)))
			Expect(revisions[1].Number).To(Equal(svn.Revnum(1)))
			Expect(revisions[1].Nodes).To(HaveLen(2))
			Expect(revisions[1].Nodes[1].Path).To(Equal("/trunk/a.txt"))
			Expect(revisions[1].Nodes[1].Delta).To(BeTrue())
			Expect(revisions[1].Actions).To(Equal(map[string]int{"add": 2}))
			Expect(strings.Count(string(data), "revision:")).To(Equal(2))

			By("loading the filtered dump into a second repository")
			second := filepath.Join(dir, "second.db")
			Expect(runCommand("create", second, "-q")).To(Succeed())
			Expect(runCommand("load", second, "-q", "--ignore-uuid", "-i", filtered)).To(Succeed())
			repo, err := repos.OpenSQLite(second, nil)
			Expect(err).ToNot(HaveOccurred())
			defer repo.Close()
			root, err := repo.Root(1)
			Expect(err).ToNot(HaveOccurred())
			Expect(root.Contents("/trunk/a.txt")).To(Equal([]byte("a\n")))
			Expect(root.Kind("/branches")).To(Equal(svn.NodeKindNone))
		})
	})
})
