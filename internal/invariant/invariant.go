// Package invariant implements spec.md §7's third error disposition:
// internal invariant checks. A failed invariant is a bug, not a runtime
// condition, so it panics rather than returning an error or calling
// os.Exit — it should never be reached by correct code, and a panic
// carries a stack trace to the point of failure.
package invariant

import "fmt"

// Check panics with msg (formatted with args) if cond is false.
func Check(cond bool, msg string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(msg, args...))
	}
}
