package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/api"
)

func TestTempDir_Cleanup(t *testing.T) {
	dir, cleanup := TempDir(t)

	testFile := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	cleanup()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("directory should be removed after cleanup")
	}
}

func TestWriteFile_CreatesSubdirectories(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "a/b/c.txt", "nested")

	if !FileExists(t, path) {
		t.Fatal("file should exist")
	}
	if got := ReadFile(t, path); got != "nested" {
		t.Errorf("content = %q, want %q", got, "nested")
	}
}

func TestSetupProjectDir(t *testing.T) {
	dir := SetupProjectDir(t)

	info, err := os.Stat(filepath.Join(dir, ".tempo"))
	if err != nil || !info.IsDir() {
		t.Fatalf(".tempo should be a directory: %v", err)
	}
}

func TestShortSocketPath(t *testing.T) {
	path := ShortSocketPath(t)

	if len(path) >= 104 {
		t.Errorf("socket path too long (%d): %s", len(path), path)
	}
	if FileExists(t, path) {
		t.Error("socket path should not exist yet")
	}
}

func TestWaitFor(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(30 * time.Millisecond)
		n.Store(1)
	}()

	WaitFor(t, time.Second, func() bool { return n.Load() == 1 }, "flag")
}

func TestFakeLogAPI_RecordsRequests(t *testing.T) {
	fake := &FakeLogAPI{Total: 42}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+api.PathTimerLog, strings.NewReader(`{"activity":"Study"}`))
	req.Header.Set(api.ProfileHeader, "p-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = resp.Body.Close()

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Profile != "p-1" || reqs[0].Body.Activity != "Study" || reqs[0].Method != http.MethodPost {
		t.Errorf("captured = %+v", reqs[0])
	}
}

func TestFakeLogAPI_Status(t *testing.T) {
	srv := httptest.NewServer(&FakeLogAPI{Status: http.StatusBadRequest})
	defer srv.Close()

	resp, err := http.Get(srv.URL + api.PathTimerLog)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
