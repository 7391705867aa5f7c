package mmlog

import (
	"os"

	"github.com/mattn/go-isatty"
)

// isTerminal is a best-effort check used only to decide default output
// formatting; a wrong guess here costs nothing but log readability.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}
