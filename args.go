package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	svn "github.com/kfsone/svndump/lib"
)

// --verbose: show debug output.
var verbose = new(bool)

// --quiet: only show warnings and errors.
var quiet = new(bool)

// -i/--input and -o/--output: dump streams; "-" or empty is stdin/stdout.
var inFilename, outFilename string

// --rules: optional yaml rules file for filter and load.
var rulesFile string

type command struct {
	name    string
	summary string
	usage   string
	// minArgs is the number of positional arguments required.
	minArgs int
	maxArgs int
	flags   *pflag.FlagSet
	run     func(args []string) error
}

var commands []*command

func newCommand(name, usage, summary string, minArgs, maxArgs int, run func([]string) error) *command {
	cmd := &command{
		name:    name,
		summary: summary,
		usage:   usage,
		minArgs: minArgs,
		maxArgs: maxArgs,
		flags:   pflag.NewFlagSet(name, pflag.ContinueOnError),
		run:     run,
	}
	cmd.flags.BoolVarP(verbose, "verbose", "v", false, "show more output")
	cmd.flags.BoolVarP(quiet, "quiet", "q", false, "suppress informational output")
	cmd.flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: svndump %s %s\n\n%s\n\n", name, usage, summary)
		cmd.flags.PrintDefaults()
	}
	commands = append(commands, cmd)
	return cmd
}

func findCommand(name string) *command {
	if i := svn.IndexFunc(commands, func(c *command) bool { return c.name == name }); i >= 0 {
		return commands[i]
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: svndump <command> [options] [args]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
}

// parseCommandLine selects the subcommand and parses its flags. It returns a
// nil command when only help was asked for.
func parseCommandLine(args []string) (*command, error) {
	registerCommands()

	if len(args) == 0 {
		printUsage()
		return nil, errors.New("missing command")
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil, nil
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		printUsage()
		return nil, errors.Errorf("unknown command %q", args[0])
	}

	if err := cmd.flags.Parse(args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil, nil
		}
		return nil, err
	}

	if *verbose && *quiet {
		return nil, errors.New("--quiet and --verbose are mutually exclusive")
	}

	if n := cmd.flags.NArg(); n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		cmd.flags.Usage()
		return nil, errors.Errorf("%s: wrong number of arguments", cmd.name)
	}

	configureLogging()
	return cmd, nil
}

func registerCommands() {
	if len(commands) > 0 {
		return
	}

	newCommand("create", "REPO", "create an empty repository", 1, 1, runCreate)

	dump := newCommand("dump", "REPO [options]", "write repository revisions as a dump stream", 1, 1, runDump)
	dump.flags.StringVarP(&revisionRange, "revision", "r", "", "revision or range LOWER[:UPPER] to dump")
	dump.flags.BoolVar(&dumpIncremental, "incremental", false, "dump the first revision as a change rather than a full tree")
	dump.flags.BoolVar(&dumpDeltas, "deltas", false, "write file contents and properties as deltas")
	dump.flags.IntVar(&dumpDeltaVersion, "delta-version", 0, "svndiff version of deltas: 0, or 1 for compressed")
	dump.flags.BoolVar(&dumpVerify, "verify", false, "check the repository while dumping")
	dump.flags.StringVarP(&outFilename, "output", "o", "-", "file to write the dump to")

	filter := newCommand("filter", "include|exclude PREFIX... [options]", "filter paths out of a dump stream", 0, -1, runFilter)
	filter.flags.BoolVar(&filterPattern, "pattern", false, "treat prefixes as wildcard patterns")
	filter.flags.BoolVar(&filterDropEmpty, "drop-empty-revs", false, "remove revisions emptied by filtering")
	filter.flags.BoolVar(&filterRenumber, "renumber-revs", false, "renumber revisions left after filtering")
	filter.flags.BoolVar(&filterPreserve, "preserve-revprops", false, "don't filter revision properties of emptied revisions")
	filter.flags.BoolVar(&filterSkipMissing, "skip-missing-merge-sources", false, "skip merge sources that have been filtered out")
	filter.flags.StringVar(&rulesFile, "rules", "", "yaml rules file")
	filter.flags.StringVarP(&inFilename, "input", "i", "-", "dump file to read")
	filter.flags.StringVarP(&outFilename, "output", "o", "-", "file to write the filtered dump to")

	load := newCommand("load", "REPO [options]", "load a dump stream into a repository", 1, 1, runLoad)
	load.flags.StringVar(&loadParentDir, "parent-dir", "", "load paths below this directory")
	load.flags.BoolVar(&loadIgnoreUUID, "ignore-uuid", false, "ignore any repository UUID in the stream")
	load.flags.BoolVar(&loadForceUUID, "force-uuid", false, "always set the repository UUID from the stream")
	load.flags.StringVar(&loadPreCommitHook, "pre-commit-hook", "", "command to run before each commit")
	load.flags.StringVar(&loadPostCommitHook, "post-commit-hook", "", "command to run after each commit")
	load.flags.StringVar(&rulesFile, "rules", "", "yaml rules file")
	load.flags.StringVarP(&inFilename, "input", "i", "-", "dump file to read")

	report := newCommand("report", "[options]", "describe a dump stream as yaml", 0, 0, runReport)
	report.flags.StringVarP(&inFilename, "input", "i", "-", "dump file to read")
	report.flags.StringVarP(&outFilename, "output", "o", "-", "file to write the report to")
	report.flags.BoolVar(&reportDetail, "detail", false, "include every node in the report")
}

// parseRevisionRange reads "N" or "LOWER:UPPER".
func parseRevisionRange(spec string) (start, end svn.Revnum, err error) {
	if spec == "" {
		return 0, svn.InvalidRevnum, nil
	}
	lower, upper, ranged := strings.Cut(spec, ":")
	if start, err = svn.ParseRevnum(lower); err != nil {
		return 0, 0, errors.Wrapf(err, "revision range %q", spec)
	}
	if !ranged {
		return start, start, nil
	}
	if end, err = svn.ParseRevnum(upper); err != nil {
		return 0, 0, errors.Wrapf(err, "revision range %q", spec)
	}
	if end < start {
		return 0, 0, errors.Errorf("revision range %q runs backwards", spec)
	}
	return start, end, nil
}
