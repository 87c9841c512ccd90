package sharedstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CurrentFileVersion is the state file format version.
const CurrentFileVersion = 1

// Storage persists a Snapshot for the lifetime of a session.
type Storage interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// fileState is the on-disk form of a session's shared state.
type fileState struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	State     Snapshot  `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStorage keeps the shared state in a JSON file scoped to one session.
// A file written by a different session is ignored, so state never outlives
// the session that produced it.
type FileStorage struct {
	path      string
	sessionID string
}

// NewFileStorage creates a FileStorage for the given session.
func NewFileStorage(path, sessionID string) *FileStorage {
	return &FileStorage{path: path, sessionID: sessionID}
}

// Path returns the state file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Load reads the state file. A missing file, a file from another session,
// or an incompatible version all yield a zero Snapshot. A corrupted file is
// backed up before being replaced.
func (f *FileStorage) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read state file: %w", err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		if backupErr := f.backup(); backupErr != nil {
			slog.Warn("state file corrupted, failed to backup",
				"path", f.path,
				"error", err,
				"backup_error", backupErr)
		} else {
			slog.Warn("state file corrupted, backed up and starting fresh",
				"path", f.path,
				"error", err)
		}
		return Snapshot{}, nil
	}

	if fs.Version != CurrentFileVersion {
		slog.Warn("state file version mismatch, starting fresh",
			"path", f.path,
			"file_version", fs.Version,
			"current_version", CurrentFileVersion)
		return Snapshot{}, nil
	}

	if fs.SessionID != f.sessionID {
		slog.Debug("state file belongs to another session, ignoring",
			"path", f.path,
			"file_session", fs.SessionID)
		return Snapshot{}, nil
	}

	return fs.State.normalize(), nil
}

// Save writes the snapshot atomically (temp file + rename). Every tab of a
// session shares the file, so each save uses its own temp file.
func (f *FileStorage) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(fileState{
		Version:   CurrentFileVersion,
		SessionID: f.sessionID,
		State:     snap,
		UpdatedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0644)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (f *FileStorage) backup() error {
	return os.Rename(f.path, f.path+".backup")
}
