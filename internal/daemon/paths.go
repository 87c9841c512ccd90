package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/tempo/internal/config"
)

// HubInfo is written to hub.json so tabs and CLI commands started from any
// subdirectory of the project can find the running hub.
type HubInfo struct {
	SessionID  string    `json:"session_id"`
	SocketPath string    `json:"socket_path"`
	PIDPath    string    `json:"pid_path"`
	LogPath    string    `json:"log_path"`
	StartTime  time.Time `json:"start_time"`
	PID        int       `json:"pid"`
}

const hubInfoFile = "hub.json"

// projectMarkers are directories that indicate project root.
var projectMarkers = []string{".git", config.ProjectConfigDir}

// ResolvePaths makes relative paths absolute against basePath, or the
// working directory when basePath is empty.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		var err error
		basePath, err = os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(basePath, p)
	}

	return config.PathsConfig{
		State:  resolve(paths.State),
		Log:    resolve(paths.Log),
		Socket: resolve(paths.Socket),
		PID:    resolve(paths.PID),
	}, nil
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// project marker. Without a marker it returns startDir.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "."
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	for dir := absDir; ; {
		for _, marker := range projectMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// HubInfoPath returns where hub.json lives for projectRoot.
func HubInfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.ProjectConfigDir, hubInfoFile)
}

// FindHubInfo locates hub.json for the project containing startDir.
func FindHubInfo(startDir string) (*HubInfo, error) {
	infoPath := HubInfoPath(FindProjectRoot(startDir))
	info, err := ReadHubInfo(infoPath)
	if err != nil {
		return nil, fmt.Errorf("hub info not found (checked %s): %w", infoPath, err)
	}
	return info, nil
}

// WriteHubInfo writes hub connection info to path.
func WriteHubInfo(path string, info *HubInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hub info: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write hub info: %w", err)
	}
	return nil
}

// ReadHubInfo reads hub connection info from path.
func ReadHubInfo(path string) (*HubInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hub info: %w", err)
	}

	var info HubInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal hub info: %w", err)
	}
	return &info, nil
}

// RemoveHubInfo removes hub.json. A missing file is not an error.
func RemoveHubInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove hub info: %w", err)
	}
	return nil
}
