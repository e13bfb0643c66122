//go:build windows

package local

import "os"

// syscallSignalZero has no real null-signal equivalent on Windows; Signal
// always returns an error there regardless of liveness, so isStale falls
// back to treating the process as alive unless FindProcess itself fails.
func syscallSignalZero() os.Signal {
	return os.Interrupt
}
