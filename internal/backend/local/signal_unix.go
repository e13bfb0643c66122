//go:build unix

package local

import "syscall"

// syscallSignalZero returns the null signal, used to probe whether a PID is
// still alive without actually signaling it.
func syscallSignalZero() syscall.Signal {
	return syscall.Signal(0)
}
