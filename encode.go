package main

// Functions for creating repositories and dumping them.

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	svn "github.com/kfsone/svndump/lib"
	"github.com/kfsone/svndump/lib/repos"
)

// dump settings.
var (
	revisionRange    string
	dumpIncremental  bool
	dumpDeltas       bool
	dumpDeltaVersion int
	dumpVerify       bool
)

// openRepository opens an existing repository.
func openRepository(path string) (*repos.Repository, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "opening repository")
	}
	return repos.OpenSQLite(path, log)
}

func runCreate(args []string) error {
	repo, err := repos.CreateSQLite(args[0], log)
	if err != nil {
		return err
	}
	defer repo.Close()

	uuid, err := repo.UUID()
	if err != nil {
		return err
	}
	Info("Created repository %s, uuid %s", args[0], uuid)
	return nil
}

func runDump(args []string) (err error) {
	start, end, err := parseRevisionRange(revisionRange)
	if err != nil {
		return err
	}

	repo, err := openRepository(args[0])
	if err != nil {
		return err
	}
	defer repo.Close()

	sink, err := svn.CreateDumpSink(outFilename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sink.Close(); err == nil {
			err = closeErr
		}
	}()

	Info("Dumping %s -> %s", args[0], sink.Path)

	var total int64
	err = svn.Dump(repo, sink, svn.DumpOptions{
		Start:        start,
		End:          end,
		Incremental:  dumpIncremental,
		UseDeltas:    dumpDeltas,
		DeltaVersion: dumpDeltaVersion,
		Verify:       dumpVerify,
		Logger:       log,
		Progress: func(rev svn.Revnum, written int64) {
			total = written
			Log("r%d: %s written", rev, humanize.Bytes(uint64(written)))
		},
	})
	if err != nil {
		return err
	}

	Info("Finished, %s written", humanize.Bytes(uint64(total)))
	return nil
}
