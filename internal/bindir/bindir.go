// Package bindir classifies directory names, recognising the PATH-like
// system directories whose files must survive file-list stripping
// unconditionally, and the broader "useful file" predicate over a
// (directory, basename) pair. The seed-list reader in internal/depfiles
// does not apply UsefulFile; it fingerprints every path it reads.
//
// Grounded on original_source/depfiles.c's usefulFile1, reimplemented with
// plain string operations rather than that file's hand-rolled byte-offset
// comparisons (see spec.md §9 on untyped-blob arithmetic not being
// essential outside C).
package bindir

import "strings"

// bindirs is the closed set from spec.md §4.1. Order doesn't matter; it's
// checked by direct membership.
var bindirs = map[string]bool{
	"/bin/":              true,
	"/sbin/":             true,
	"/usr/bin/":          true,
	"/usr/sbin/":         true,
	"/usr/games/":        true,
	"/usr/lib/kde3/bin/": true,
	"/usr/lib/kde4/bin/": true,
	"/usr/lib/kf5/bin/":  true,
	"/usr/lib/kf6/bin/":  true,
}

// Is reports whether d (a directory name ending in "/") is one of the nine
// PATH-like directories whose files are kept unconditionally.
func Is(d string) bool {
	return bindirs[d]
}

// UsefulFile reports whether the file d+b is a dependency target worth
// fingerprinting even without a direct Requires/Provides on it: files under
// a bindir, jars under /usr/share/java/, and ttf/otf fonts under
// /usr/share/fonts/. Files under /usr/lib/debug/ or /usr/src/debug/ are
// never useful, even though they may look like bindirs.
func UsefulFile(d, b string) bool {
	if strings.HasPrefix(d, "/usr/lib/debug/") || strings.HasPrefix(d, "/usr/src/debug/") {
		return false
	}
	if Is(d) {
		return true
	}
	const share = "/usr/share/"
	if !strings.HasPrefix(d, share) {
		return false
	}
	rest := d[len(share):]
	switch {
	case strings.HasPrefix(rest, "java/"):
		return strings.HasSuffix(b, ".jar")
	case strings.HasPrefix(rest, "fonts/"):
		return strings.HasSuffix(b, ".ttf") || strings.HasSuffix(b, ".otf")
	default:
		return false
	}
}
