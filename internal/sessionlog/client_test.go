package sessionlog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/npratt/tempo/internal/api"
	"github.com/npratt/tempo/internal/logstore"
	"github.com/npratt/tempo/internal/testutil"
)

func TestClient_SendsProfileHeader(t *testing.T) {
	fake := &testutil.FakeLogAPI{Total: 90000}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "p-7", time.Second)
	total, err := c.DailyTotal(context.Background())
	if err != nil {
		t.Fatalf("DailyTotal failed: %v", err)
	}
	if total != 90*time.Second {
		t.Errorf("total = %v, want 90s", total)
	}

	reqs := fake.Requests()
	if len(reqs) != 1 || reqs[0].Profile != "p-7" || reqs[0].Path != api.PathTimerLog {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrRejected},
		{http.StatusUnauthorized, ErrRejected},
		{http.StatusInternalServerError, ErrTransport},
		{http.StatusBadGateway, ErrTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(&testutil.FakeLogAPI{Status: tt.status})
			defer srv.Close()

			_, err := NewClient(srv.URL, "p", time.Second).Append(context.Background(), api.TimerLogRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tt.status || se.Body != "nope" {
				t.Errorf("StatusError = %+v", se)
			}
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(&testutil.FakeLogAPI{})
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "p", time.Second).Recent(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func TestClient_AgainstLogServer(t *testing.T) {
	ctx := context.Background()
	store, err := logstore.Open(ctx, filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close() //nolint:errcheck
	if err := logstore.ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(logstore.NewServer(store, nil).Handler())
	defer srv.Close()

	c := NewClient(srv.URL, "me", time.Second)
	start := time.Now().Add(-time.Hour)
	ms := int64(1500000)
	if _, err := c.Append(ctx, api.TimerLogRequest{
		StartTime: start.UTC().Format(time.RFC3339Nano),
		EndTime:   start.Add(25 * time.Minute).UTC().Format(time.RFC3339Nano),
		Duration:  &ms,
		Activity:  "Reading",
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	logs, err := c.Recent(ctx)
	if err != nil || len(logs) != 1 || logs[0].Activity != "Reading" {
		t.Fatalf("Recent = %+v, %v", logs, err)
	}

	_, err = c.Append(ctx, api.TimerLogRequest{StartTime: "x"})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("invalid append err = %v, want ErrRejected", err)
	}

	today, _, err := c.Comparison(ctx)
	if err != nil {
		t.Fatalf("Comparison failed: %v", err)
	}
	// The hour-old log may fall on yesterday just after midnight
	if today != 25*time.Minute && today != 0 {
		t.Errorf("today = %v", today)
	}
}
