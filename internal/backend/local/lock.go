package local

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/asuran-archive/asuran/internal/backend"
)

const lockPollInterval = 50 * time.Millisecond

// fileLock wraps a gofrs/flock advisory lock and writes the holder's PID
// into the lock file so a future opener can tell a held-but-abandoned lock
// (process dead) from one genuinely in use.
type fileLock struct {
	fl *flock.Flock
}

func (l *fileLock) Release() error {
	if err := os.WriteFile(l.fl.Path(), nil, 0o600); err != nil {
		// best-effort: clearing the PID marker is not required for
		// correctness, only for faster stale-lock detection later.
		_ = err
	}
	return l.fl.Unlock()
}

// acquireLock blocks (polling) until it wins the advisory lock at path or
// ctx is done. A shared lock may be held by several holders at once; an
// exclusive one by a single holder. If the lock is held but the PID recorded
// inside it belongs to a process that no longer exists, the lock is stolen
// immediately.
func acquireLock(ctx context.Context, path string, shared bool) (backend.Lock, error) {
	fl := flock.New(path)
	tryLock := fl.TryLock
	if shared {
		tryLock = fl.TryRLock
	}
	for {
		ok, err := tryLock()
		if err != nil {
			return nil, fmt.Errorf("local: try lock %s: %w", path, err)
		}
		if ok {
			if err := writePID(path); err != nil {
				_ = fl.Unlock()
				return nil, err
			}
			return &fileLock{fl: fl}, nil
		}

		if stale, err := isStale(path); err == nil && stale {
			if err := stealLock(path); err != nil {
				return nil, err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("local: acquire lock %s: %w", path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

func writePID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// isStale reports whether the PID recorded in the lock file refers to a
// process that is no longer running.
func isStale(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return false, nil
	}
	pid, err := strconv.Atoi(text)
	if err != nil {
		return false, nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true, nil
	}
	// On Windows FindProcess fails for a process that has exited, so a
	// successful lookup already means the holder is alive.
	if runtime.GOOS == "windows" {
		return false, nil
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without actually sending a signal.
	if err := proc.Signal(syscallSignalZero()); err != nil {
		return true, nil
	}
	return false, nil
}

// stealLock removes an abandoned lock file so the next TryLock call can
// succeed cleanly.
func stealLock(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local: steal stale lock %s: %w", path, err)
	}
	return nil
}
