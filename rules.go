package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	yml "gopkg.in/yaml.v3"

	svn "github.com/kfsone/svndump/lib"
)

// Rules captures the yaml description of a filter or load run.
type Rules struct {
	Filename string `yaml:"-"`

	Include                 []string `yaml:"include,omitempty"`
	Exclude                 []string `yaml:"exclude,omitempty"`
	Pattern                 bool     `yaml:"pattern,omitempty"`
	RenumberRevs            bool     `yaml:"renumber-revs,omitempty"`
	DropEmptyRevs           bool     `yaml:"drop-empty-revs,omitempty"`
	PreserveRevprops        bool     `yaml:"preserve-revprops,omitempty"`
	SkipMissingMergeSources bool     `yaml:"skip-missing-merge-sources,omitempty"`

	ParentDir      string `yaml:"parent-dir,omitempty"`
	UUID           string `yaml:"uuid,omitempty"`
	PreCommitHook  string `yaml:"pre-commit-hook,omitempty"`
	PostCommitHook string `yaml:"post-commit-hook,omitempty"`
}

// NewRules returns a Rules object populated from the yaml definition in a
// given file. An empty filename gives an empty ruleset.
func NewRules(filename string) (*Rules, error) {
	rules := &Rules{Filename: filename}
	if filename == "" {
		return rules, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := yml.Unmarshal(data, rules); err != nil {
		return nil, errors.Wrapf(err, "rules file %s", filename)
	}
	rules.Filename = filename

	return rules, nil
}

// ApplyFilterFlags lets command-line settings override the file.
func (r *Rules) ApplyFilterFlags(flags *pflag.FlagSet, mode string, prefixes []string) error {
	switch mode {
	case "":
	case "include":
		r.Include, r.Exclude = prefixes, nil
	case "exclude":
		r.Include, r.Exclude = nil, prefixes
	default:
		return errors.Errorf("filter mode must be include or exclude, not %q", mode)
	}
	override := func(name string, field *bool, value bool) {
		if flags.Changed(name) {
			*field = value
		}
	}
	override("pattern", &r.Pattern, filterPattern)
	override("renumber-revs", &r.RenumberRevs, filterRenumber)
	override("drop-empty-revs", &r.DropEmptyRevs, filterDropEmpty)
	override("preserve-revprops", &r.PreserveRevprops, filterPreserve)
	override("skip-missing-merge-sources", &r.SkipMissingMergeSources, filterSkipMissing)
	return nil
}

// FilterOptions converts the rules into options for a filter run.
func (r *Rules) FilterOptions() (svn.FilterOptions, error) {
	opts := svn.FilterOptions{
		RenumberRevisions:          r.RenumberRevs,
		DropEmptyRevisions:         r.DropEmptyRevs,
		PreserveRevisionProperties: r.PreserveRevprops,
		SkipMissingMergeSources:    r.SkipMissingMergeSources,
	}
	opts.Glob = r.Pattern

	switch {
	case len(r.Include) > 0 && len(r.Exclude) > 0:
		return opts, errors.New("rules may include or exclude paths, not both")
	case len(r.Include) > 0:
		opts.Mode, opts.Prefixes = svn.Include, r.Include
	case len(r.Exclude) > 0:
		opts.Mode, opts.Prefixes = svn.Exclude, r.Exclude
	default:
		return opts, errors.New("no paths to include or exclude")
	}
	return opts, nil
}

// ApplyLoadFlags lets command-line settings override the file.
func (r *Rules) ApplyLoadFlags(flags *pflag.FlagSet) error {
	if loadIgnoreUUID && loadForceUUID {
		return errors.New("--ignore-uuid and --force-uuid are mutually exclusive")
	}
	if flags.Changed("parent-dir") {
		r.ParentDir = loadParentDir
	}
	if loadIgnoreUUID {
		r.UUID = "ignore"
	}
	if loadForceUUID {
		r.UUID = "force"
	}
	if flags.Changed("pre-commit-hook") {
		r.PreCommitHook = loadPreCommitHook
	}
	if flags.Changed("post-commit-hook") {
		r.PostCommitHook = loadPostCommitHook
	}
	return nil
}

// UUIDAction converts the uuid setting.
func (r *Rules) UUIDAction() (svn.UUIDAction, error) {
	switch r.UUID {
	case "", "default":
		return svn.UUIDDefault, nil
	case "ignore":
		return svn.UUIDIgnore, nil
	case "force":
		return svn.UUIDForce, nil
	}
	return svn.UUIDDefault, errors.Errorf("uuid must be default, ignore or force, not %q", r.UUID)
}
