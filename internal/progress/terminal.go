package progress

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// EnableANSI turns on escape sequence handling for f where the console
// needs it.
func EnableANSI(f *os.File) {
	enableANSI(f)
}
