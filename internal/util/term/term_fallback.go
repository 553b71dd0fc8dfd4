//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package term

import "os"

// IsTerminal always reports false where termios is unavailable.
func IsTerminal(*os.File) bool { return false }
