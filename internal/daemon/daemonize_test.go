package daemon

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/npratt/tempo/internal/testutil"
)

func TestIsDaemonized(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"1", true},
		{"true", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(daemonEnvVar, tt.value)
			if got := IsDaemonized(); got != tt.want {
				t.Errorf("IsDaemonized() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitForSocketReady(t *testing.T) {
	t.Run("listening", func(t *testing.T) {
		sockPath := testutil.ShortSocketPath(t)
		listener, err := net.Listen("unix", sockPath)
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer func() { _ = listener.Close() }()

		if err := waitForSocketReady(sockPath, time.Second); err != nil {
			t.Errorf("waitForSocketReady() error: %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		if err := waitForSocketReady(testutil.ShortSocketPath(t), 200*time.Millisecond); err == nil {
			t.Error("expected timeout error")
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("waited only %v, expected ~200ms", elapsed)
		}
	})
}

// Re-exec is exercised manually; here only the child path is covered.
func TestDaemonize_AlreadyDaemonized(t *testing.T) {
	t.Setenv(daemonEnvVar, "1")

	shouldExit, pid, err := Daemonize("", nil)
	if err != nil {
		t.Errorf("Daemonize() error: %v", err)
	}
	if shouldExit {
		t.Error("shouldExit should be false when already daemonized")
	}
	if pid != os.Getpid() {
		t.Errorf("pid should be current process PID, got %d", pid)
	}
}
