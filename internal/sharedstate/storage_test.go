package sharedstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileStorage_MissingFile(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "state.json"), "s1")
	snap, err := fs.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !snap.Equal(Snapshot{}) {
		t.Errorf("Load = %+v, want zero", snap)
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	fs := NewFileStorage(path, "s1")

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	want := Snapshot{IsRunning: true, RunningCount: 2, DisplayTime: 30, StartTime: &start}
	if err := fs.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := fs.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after Save, want only the state file", len(entries))
	}
}

func TestFileStorage_ConcurrentSavers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tabs := []*FileStorage{NewFileStorage(path, "s1"), NewFileStorage(path, "s1")}

	var wg sync.WaitGroup
	var failed atomic.Int32
	for i, fs := range tabs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				if err := fs.Save(Snapshot{RunningCount: i + 1}); err != nil {
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if n := failed.Load(); n != 0 {
		t.Errorf("%d saves failed", n)
	}
	got, err := tabs[0].Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.RunningCount != 1 && got.RunningCount != 2 {
		t.Errorf("Load = %+v, want one of the saved snapshots", got)
	}
	if _, err := os.Stat(path + ".backup"); !os.IsNotExist(err) {
		t.Error("state file was torn and backed up")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the state file", len(entries))
	}
}

func TestFileStorage_CorruptedBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFileStorage(path, "s1").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !snap.Equal(Snapshot{}) {
		t.Errorf("Load = %+v, want zero", snap)
	}
	if _, err := os.Stat(path + ".backup"); err != nil {
		t.Errorf("backup not created: %v", err)
	}
}

func TestFileStorage_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data, _ := json.Marshal(fileState{
		Version:   CurrentFileVersion + 1,
		SessionID: "s1",
		State:     Snapshot{RunningCount: 5},
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFileStorage(path, "s1").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.RunningCount != 0 {
		t.Errorf("RunningCount = %d, want 0 for incompatible version", snap.RunningCount)
	}
}
