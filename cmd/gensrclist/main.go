// Command gensrclist builds a repository component's source package
// list: spec.md §4.9's two-pass header-rewriting pipeline driven over
// the *.src.rpm files of <repo-dir>/SRPMS.<component-name> (or, under
// --flat, <repo-dir> itself), written to
// <repo-dir>/base/srclist.<component-name>.zst.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ogier/pflag"

	"github.com/alt-tools/genbasedir/internal/cliutil"
	"github.com/alt-tools/genbasedir/internal/fatal"
	"github.com/alt-tools/genbasedir/internal/pipeline"
	"github.com/alt-tools/genbasedir/internal/reposcan"
)

const prog = "gensrclist"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet(prog, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [OPTIONS] <repo-dir> <component-name>\n\nOptions:\n", prog)
		fs.PrintDefaults()
	}

	bloat := fs.Bool("bloat", false, "keep full file lists, skip stripping")
	flat := fs.Bool("flat", false, "srpm dir is <repo-dir> itself, not <repo-dir>/SRPMS.<component-name>")
	usePrevOutput := fs.String("use-prev-output", "", "reuse headers from a prior source list (path to its .zst file)")

	var useful cliutil.UsefulFiles
	fs.Var(cliutil.Files{Target: &useful}, "useful-files", "seed the dependency set from `FILE`, LF-delimited")
	fs.Var(cliutil.Files{Target: &useful}, "useful-files-from", "alias for --useful-files")
	fs.Var(cliutil.Files0From{Target: &useful}, "useful-files0-from", "seed the dependency set from `FILE`, NUL-delimited")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fs.Usage()
		return 1
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	repoDir, component := fs.Arg(0), fs.Arg(1)

	sources, warning, err := useful.Resolve(*bloat)
	if warning != "" {
		fatal.Warn(prog, warning)
	}
	if err != nil {
		fatal.Exit(prog, err)
	}

	srpmDir := repoDir
	if !*flat {
		srpmDir = filepath.Join(repoDir, "SRPMS."+component)
	}
	names, err := reposcan.ListSource(srpmDir)
	if err != nil {
		fatal.Exit(prog, err)
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(srpmDir, name)
	}

	var prevReader io.ReadSeeker
	if *usePrevOutput != "" {
		f, err := os.Open(*usePrevOutput)
		if err != nil {
			fatal.Exit(prog, err)
		}
		defer f.Close()
		prevReader = f
	}

	p, err := pipeline.New(pipeline.Options{
		Directory:   filepath.Base(srpmDir),
		Source:      true,
		Bloat:       *bloat,
		UsefulFiles: sources,
		PrevOutput:  prevReader,
	})
	if err != nil {
		fatal.Exit(prog, err)
	}
	defer p.Close()

	outPath := filepath.Join(repoDir, "base", "srclist."+component+".zst")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fatal.Exit(prog, err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		fatal.Exit(prog, err)
	}
	defer out.Close()

	if err := p.Run(context.Background(), paths, out); err != nil {
		fatal.Exit(prog, err)
	}
	return 0
}
