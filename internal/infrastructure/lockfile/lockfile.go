package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock is a PID lockfile guarding the archive directory against overlapping
// pipeline runs. Acquisition is O_CREATE|O_EXCL; a lock whose recorded PID no
// longer exists is considered stale and taken over.
type Lock struct {
	path string
	held bool
}

func New(path string) *Lock {
	return &Lock{path: path}
}

func (l *Lock) Acquire() error {
	if l.held {
		return fmt.Errorf("lock already held: %s", l.path)
	}

	if err := l.tryCreate(); err == nil {
		l.held = true
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	pid, err := l.readPID()
	if err != nil {
		return fmt.Errorf("lock file exists but is unreadable: %w", err)
	}

	if processAlive(pid) {
		return fmt.Errorf("another run holds the lock (pid %d)", pid)
	}

	// Stale lock from a dead process. Remove and retry once.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		return fmt.Errorf("failed to take over stale lock: %w", err)
	}

	l.held = true
	return nil
}

func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		os.Remove(l.path)
		return err
	}
	return nil
}

func (l *Lock) readPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in lock file: %w", err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
