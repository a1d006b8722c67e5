package main

// Functions for processing dump streams: filtering and loading.

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
)

// filter settings.
var (
	filterPattern     bool
	filterDropEmpty   bool
	filterRenumber    bool
	filterPreserve    bool
	filterSkipMissing bool
)

// load settings.
var (
	loadParentDir      string
	loadIgnoreUUID     bool
	loadForceUUID      bool
	loadPreCommitHook  string
	loadPostCommitHook string
)

// countingReader tracks how much of the input has been consumed.
type countingReader struct {
	io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.count += int64(n)
	return n, err
}

func runFilter(args []string) (err error) {
	rules, err := NewRules(rulesFile)
	if err != nil {
		return err
	}
	var mode string
	var prefixes []string
	if len(args) > 0 {
		mode, prefixes = args[0], args[1:]
		if len(prefixes) == 0 {
			return errors.Errorf("%s: no prefixes given", mode)
		}
	}
	if err := rules.ApplyFilterFlags(findCommand("filter").flags, mode, prefixes); err != nil {
		return err
	}
	opts, err := rules.FilterOptions()
	if err != nil {
		return err
	}
	opts.Logger = log

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

	if opts.Mode == svn.Exclude {
		Info("Excluding prefixes:")
	} else {
		Info("Including prefixes:")
	}
	for _, prefix := range opts.Prefixes {
		Info("   '%s'", svn.CanonicalPath(prefix))
	}

	input := &countingReader{Reader: source}
	filter := svn.NewFilter(sink, opts)
	if err := svn.Parse(input, filter); err != nil {
		return err
	}
	if err := filter.Close(); err != nil {
		return err
	}

	reportFilterSummary(filter.Summary(), opts, input.count)
	return nil
}

// reportFilterSummary lists what was dropped and renumbered.
func reportFilterSummary(summary svn.FilterSummary, opts svn.FilterOptions, read int64) {
	Info("Read %s of input", humanize.Bytes(uint64(read)))
	Info("Dropped %s revisions.", humanize.Comma(int64(summary.DroppedRevisions)))

	if opts.RenumberRevisions {
		Info("Revisions renumbered as follows:")
		originals := make([]svn.Revnum, 0, len(summary.Renumbered))
		for rev := range summary.Renumbered {
			originals = append(originals, rev)
		}
		sort.Slice(originals, func(i, j int) bool { return originals[i] < originals[j] })
		for i := len(originals) - 1; i >= 0; i-- {
			rev := originals[i]
			if mapping := summary.Renumbered[rev]; mapping.Dropped {
				Info("   %d => (dropped)", rev)
			} else {
				Info("   %d => %d", rev, mapping.Assigned)
			}
		}
	}

	Info("Dropped %s nodes:", humanize.Comma(int64(len(summary.DroppedNodes))))
	for _, path := range summary.DroppedNodes {
		Log("   '%s'", path)
	}
}

func runLoad(args []string) error {
	rules, err := NewRules(rulesFile)
	if err != nil {
		return err
	}
	if err := rules.ApplyLoadFlags(findCommand("load").flags); err != nil {
		return err
	}
	action, err := rules.UUIDAction()
	if err != nil {
		return err
	}

	repoPath := args[0]
	repo, err := openRepository(repoPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	source, err := svn.OpenDumpSource(inFilename)
	if err != nil {
		return err
	}
	defer source.Close()

	opts := svn.LoaderOptions{
		UUIDAction: action,
		ParentDir:  rules.ParentDir,
		Logger:     log,
	}
	if hook := rules.PreCommitHook; hook != "" {
		opts.PreCommit = func(txn svn.Txn) error {
			return runHook(hook, repoPath, txn.Revision().String())
		}
	}
	if hook := rules.PostCommitHook; hook != "" {
		opts.PostCommit = func(rev svn.Revnum) error {
			return runHook(hook, repoPath, rev.String())
		}
	}

	before, err := repo.Youngest()
	if err != nil {
		return err
	}

	input := &countingReader{Reader: source}
	loader := svn.NewLoader(repo, opts)
	if err := svn.Parse(input, loader); err != nil {
		return err
	}

	after, err := repo.Youngest()
	if err != nil {
		return err
	}
	Info("Loaded %s revisions from %s", humanize.Comma(int64(after-before)), humanize.Bytes(uint64(input.count)))
	return nil
}

// runHook runs a hook command with the repository path and a revision as
// extra arguments. A failing hook reports its output.
func runHook(command string, args ...string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	cmd := exec.Command(fields[0], append(fields[1:], args...)...)
	var output bytes.Buffer
	cmd.Stdout, cmd.Stderr = &output, &output
	cmd.Env = os.Environ()

	Log("running hook: %s %s", command, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "hook %s: %s", fields[0], strings.TrimSpace(output.String()))
	}
	return nil
}
