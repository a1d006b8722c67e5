package main

// svndump creates, dumps, filters and loads Subversion-style repositories and
// their dump streams.
//
//  svndump create REPO
//  svndump dump REPO [-r LOWER[:UPPER]] [--incremental] [--deltas] [-o FILE]
//  svndump filter include|exclude PREFIX... [-i FILE] [-o FILE]
//  svndump load REPO [--parent-dir DIR] [-i FILE]
//  svndump report [-i FILE] [-o FILE]
//
// Filter and load settings can also come from a yaml rules file:
//
//  # paths to keep, or to drop; only one of the two may be used
//  include:
//    - /Project/Trunk
//  exclude: []
//
//  # treat include/exclude entries as wildcard patterns
//  pattern: false
//
//  renumber-revs: true
//  drop-empty-revs: true
//  preserve-revprops: false
//  skip-missing-merge-sources: false
//
//  # load settings
//  parent-dir: /imported
//  uuid: ignore
//
// Flags given on the command line override the rules file.

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func main() {
	cmd, err := parseCommandLine(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cmd == nil {
		return
	}

	if err := cmd.run(cmd.flags.Args()); err != nil {
		log.Errorf("error: %v", err)
		os.Exit(1)
	}
}

// configureLogging points the logger at stderr, since dumps are often
// written to stdout.
func configureLogging() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case *verbose:
		log.SetLevel(logrus.DebugLevel)
	case *quiet:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func printable(format string, args ...any) string {
	s := fmt.Sprintf("-- "+format, args...)
	s = strings.ReplaceAll(s, "\r", "<cr>")
	s = strings.ReplaceAll(s, "\n", "<lf>")
	return s
}

// Log prints a message if --verbose was specified.
func Log(format string, args ...any) {
	if log.IsLevelEnabled(logrus.DebugLevel) {
		log.Debug(printable(format, args...))
	}
}

// Info prints a message if --quiet was not specified.
func Info(format string, args ...any) {
	if log.IsLevelEnabled(logrus.InfoLevel) {
		log.Info(printable(format, args...))
	}
}
