package threadloop

import (
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
)

// fatal reports an unrecoverable contract violation and terminates the
// process. Continuing past any of these violations risks silently corrupted
// buffered output or a double-released resource, so no error path is
// offered. The diagnostic goes to the structured logger (if any) and to
// stderr before the process exits.
func fatal(logger *logiface.Logger[logiface.Event], invariant, detail string) {
	logger.Crit().
		Str("invariant", invariant).
		Str("detail", detail).
		Log("threadloop: fatal contract violation")
	fmt.Fprintf(os.Stderr, "threadloop: fatal: %s: %s\n", invariant, detail)
	os.Exit(2)
}
