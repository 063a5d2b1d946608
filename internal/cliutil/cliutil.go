// Package cliutil holds the option-handling pieces shared by
// cmd/genpkglist and cmd/gensrclist: the --useful-files family of
// repeatable flags and the redundant-with-bloat / too-many-sources
// checks from spec.md §4.9 and original_source/genpkglist.c.
package cliutil

import (
	"fmt"

	"github.com/alt-tools/genbasedir/internal/pipeline"
)

// UsefulFilesMax is the most --useful-files(-from)/--useful-files0-from
// occurrences a single invocation may supply, mirroring
// original_source/genpkglist.c's USEFUL_FILES_MAX.
const UsefulFilesMax = 8

// UsefulFiles accumulates --useful-files(-from)/--useful-files0-from
// occurrences in command-line order. Its two pflag.Value adapters (Files,
// registered for both --useful-files and --useful-files-from, and
// Files0From) write into the same slice, since
// original_source/genpkglist.c counts all three against one shared
// usefulFilesFrom[] array regardless of which spelling was used.
type UsefulFiles struct {
	Sources []pipeline.UsefulFileSource
}

func (u *UsefulFiles) add(path string, delim byte) {
	u.Sources = append(u.Sources, pipeline.UsefulFileSource{Path: path, Delim: delim})
}

// Files implements pflag.Value for --useful-files/--useful-files-from
// (LF-delimited).
type Files struct{ Target *UsefulFiles }

func (Files) String() string         { return "" }
func (Files) Type() string           { return "string" }
func (f Files) Set(path string) error { f.Target.add(path, '\n'); return nil }

// Files0From implements pflag.Value for --useful-files0-from
// (NUL-delimited).
type Files0From struct{ Target *UsefulFiles }

func (Files0From) String() string         { return "" }
func (Files0From) Type() string           { return "string" }
func (f Files0From) Set(path string) error { f.Target.add(path, 0); return nil }

// Resolve applies spec.md §4.9's "--useful-files before --bloat is
// redundant" rule and the USEFUL_FILES_MAX cap, returning the sources to
// actually feed the pipeline plus a non-empty warning when --bloat wins.
func (u *UsefulFiles) Resolve(bloat bool) (sources []pipeline.UsefulFileSource, warning string, err error) {
	if len(u.Sources) == 0 {
		return nil, "", nil
	}
	if bloat {
		return nil, "--useful-files redundant with --bloat", nil
	}
	if len(u.Sources) > UsefulFilesMax {
		return nil, "", fmt.Errorf("too many --useful-files options")
	}
	return u.Sources, "", nil
}
