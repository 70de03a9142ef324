package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLockHeld is returned when another committer instance owns the lock.
var ErrLockHeld = fmt.Errorf("another log commit is in progress")

// Locker serializes committer runs on one host. Both the bot's daily job and
// a manual CLI invocation can target the same repository, so the
// fetch→build→push sequence runs under a PID-stamped lock file.
type Locker struct {
	path     string
	acquired bool
}

// NewLocker derives the lock path from the repository path so distinct
// repositories never contend.
func NewLocker(repoPath string) *Locker {
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(repoPath)))[:16]
	return &Locker{path: filepath.Join(os.TempDir(), fmt.Sprintf("meme-scanner-%s.lock", sum))}
}

// Acquire creates the lock file atomically. A lock whose recorded PID no
// longer exists is treated as stale and taken over.
func (l *Locker) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("create lock %s: %w", l.path, err)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return l.Acquire()
		}
		return fmt.Errorf("read lock %s: %w", l.path, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err == nil && pidAlive(pid) {
		return fmt.Errorf("%w (pid %d, lock %s)", ErrLockHeld, pid, l.path)
	}

	// Stale lock: holder is gone or the file is garbage.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale lock %s: %w", l.path, err)
	}
	if err := l.tryCreate(); err != nil {
		if os.IsExist(err) {
			return ErrLockHeld
		}
		return fmt.Errorf("create lock %s: %w", l.path, err)
	}
	return nil
}

func (l *Locker) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		os.Remove(l.path)
		return err
	}
	l.acquired = true
	return nil
}

// Release removes the lock file if this process acquired it.
func (l *Locker) Release() error {
	if !l.acquired {
		return nil
	}
	l.acquired = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// pidAlive reports whether a process with the given PID exists. Signal 0
// performs the permission/liveness check without delivering anything.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
