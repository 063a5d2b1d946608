// Package fatal implements spec.md §7's first two error dispositions:
// fatal errors (print and exit 128, "like git" per
// original_source/errexit.h) and warn-and-continue (print, keep going).
package fatal

import (
	"fmt"
	"os"
)

// Exit prints "<prog>: <err>" to stderr and terminates the process with
// exit code 128, mirroring original_source/errexit.h's die().
func Exit(prog string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", prog, err)
	os.Exit(128)
}

// Warn prints "<prog>: <msg>" to stderr without terminating the process,
// mirroring original_source/errexit.h's warn().
func Warn(prog, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", prog, fmt.Sprintf(format, args...))
}
