package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/config"
)

func TestResolvePaths(t *testing.T) {
	tmp := t.TempDir()

	resolved, err := ResolvePaths(config.PathsConfig{
		State:  ".tempo/state.json",
		Log:    "/var/log/tempo.log",
		Socket: ".tempo/tempo.sock",
		PID:    "",
	}, tmp)
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}

	tests := []struct {
		name, got, want string
	}{
		{"state", resolved.State, filepath.Join(tmp, ".tempo/state.json")},
		{"log", resolved.Log, "/var/log/tempo.log"},
		{"socket", resolved.Socket, filepath.Join(tmp, ".tempo/tempo.sock")},
		{"pid", resolved.PID, ""},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, tt.got)
		}
	}
}

func TestFindProjectRoot(t *testing.T) {
	for _, marker := range []string{".git", ".tempo"} {
		t.Run(marker, func(t *testing.T) {
			tmp := t.TempDir()
			if err := os.Mkdir(filepath.Join(tmp, marker), 0o755); err != nil {
				t.Fatalf("create marker: %v", err)
			}
			sub := filepath.Join(tmp, "a", "b")
			if err := os.MkdirAll(sub, 0o755); err != nil {
				t.Fatalf("create subdir: %v", err)
			}

			if root := FindProjectRoot(sub); root != tmp {
				t.Errorf("expected root %q, got %q", tmp, root)
			}
		})
	}

	t.Run("no marker", func(t *testing.T) {
		tmp := t.TempDir()
		if root := FindProjectRoot(tmp); root != tmp {
			t.Errorf("expected %q, got %q", tmp, root)
		}
	})
}

func TestHubInfo_RoundTripAndFind(t *testing.T) {
	tmp := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmp, ".git"), 0o755); err != nil {
		t.Fatalf("create .git: %v", err)
	}

	info := &HubInfo{
		SessionID:  "sess-1",
		SocketPath: "/path/to/socket",
		PIDPath:    "/path/to/pid",
		StartTime:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		PID:        12345,
	}
	path := HubInfoPath(tmp)
	if err := WriteHubInfo(path, info); err != nil {
		t.Fatalf("WriteHubInfo() error: %v", err)
	}

	sub := filepath.Join(tmp, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	found, err := FindHubInfo(sub)
	if err != nil {
		t.Fatalf("FindHubInfo() error: %v", err)
	}
	if found.SessionID != "sess-1" || found.PID != 12345 || !found.StartTime.Equal(info.StartTime) {
		t.Errorf("found %+v", found)
	}

	if err := RemoveHubInfo(path); err != nil {
		t.Fatalf("RemoveHubInfo() error: %v", err)
	}
	if err := RemoveHubInfo(path); err != nil {
		t.Errorf("second RemoveHubInfo() error: %v", err)
	}
	if _, err := FindHubInfo(sub); err == nil {
		t.Error("expected error after removal")
	}
}

func TestHubInfoPath(t *testing.T) {
	if got, want := HubInfoPath("/project"), "/project/.tempo/hub.json"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
