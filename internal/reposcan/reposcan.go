// Package reposcan lists the rpm/srpm files making up a repository
// component, grounded on original_source/gensrclist.c's loadDir: skip
// dotfiles, keep only the right suffix, sort lexicographically.
package reposcan

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ListBinary returns the ".rpm" entries (excluding ".src.rpm") of dir,
// sorted lexicographically by filename.
func ListBinary(dir string) ([]string, error) {
	return list(dir, func(name string) bool {
		return strings.HasSuffix(name, ".rpm") && !strings.HasSuffix(name, ".src.rpm")
	})
}

// ListSource returns the ".src.rpm" entries of dir, sorted
// lexicographically by filename.
func ListSource(dir string) ([]string, error) {
	return list(dir, func(name string) bool {
		return strings.HasSuffix(name, ".src.rpm")
	})
}

func list(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reposcan: %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() || !keep(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
