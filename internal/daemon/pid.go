package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when another hub holds the PID file lock.
var ErrAlreadyRunning = errors.New("hub already running (pid file locked)")

// PIDFile is a flock-guarded PID file; holding the lock means owning the hub.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PIDFile instance for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire creates and locks the PID file and writes the current process ID.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("lock pid file: %w", err)
	}

	if err := writePID(file); err != nil {
		release(file)
		return err
	}

	p.file = file
	return nil
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek pid file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	return file.Sync()
}

// Read returns the PID from the file, or 0 if the file is missing or invalid.
func (p *PIDFile) Read() int {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Release drops the lock and removes the PID file.
func (p *PIDFile) Release() {
	if p.file != nil {
		release(p.file)
		p.file = nil
	}
	_ = os.Remove(p.path)
}

func release(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

// IsProcessRunning sends signal 0 to check that pid is alive.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Alive reports whether the recorded hub process is alive.
func (p *PIDFile) Alive() bool {
	return IsProcessRunning(p.Read())
}

// CleanupStale removes PID and socket files left by a hub that died without
// cleaning up. It reports whether anything was removed.
func (p *PIDFile) CleanupStale(socketPath string) bool {
	if p.Alive() {
		return false
	}
	removed := os.Remove(p.path) == nil
	if socketPath != "" && os.Remove(socketPath) == nil {
		removed = true
	}
	return removed
}
