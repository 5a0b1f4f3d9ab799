package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xtherma_bridge/internal/types"
)

const deviceBody = `{
	"serial_number": "FP-04-123456",
	"settings": [
		{"key": "002", "name": "mode", "value": "1", "unit": "", "input_factor": ""}
	],
	"telemetry": [
		{"key": "tvl", "name": "flow", "value": "221", "unit": "°C", "input_factor": "/10"},
		{"key": "in_hp", "name": "power", "value": "85", "unit": "W", "input_factor": "*10"}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL+"/api/device", "secret-key", "FP-04-123456", 2*time.Second, testLogger())
}

func TestPoll(t *testing.T) {
	var gotPath, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, deviceBody)
	})

	readings, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}

	if gotPath != "/api/device/FP-04-123456" {
		t.Errorf("path = %q, want /api/device/FP-04-123456", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want Bearer secret-key", gotAuth)
	}

	if len(readings) != 3 {
		t.Fatalf("len(readings) = %d, want 3", len(readings))
	}
	if readings[0].Key != "002" {
		t.Errorf("readings[0].Key = %q, want settings first", readings[0].Key)
	}
	if readings[1] != (types.Reading{Key: "tvl", Value: "221", Factor: "/10"}) {
		t.Errorf("readings[1] = %+v", readings[1])
	}
}

func TestPollErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check:  func(err error) bool { return errors.Is(err, types.ErrRateLimited) },
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(err error) bool {
				var apiErr *types.RestAPIError
				return errors.As(err, &apiErr) && apiErr.Code == 401
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(err error) bool {
				var apiErr *types.RestAPIError
				return errors.As(err, &apiErr) && apiErr.Code == 500
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   "{not json",
			check:  func(err error) bool { return errors.Is(err, types.ErrGeneral) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.Poll(context.Background())
			if err == nil || !tt.check(err) {
				t.Errorf("Poll error = %v", err)
			}
		})
	}
}

func TestPollTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, "k", "s", 50*time.Millisecond, testLogger())

	_, err := c.Poll(context.Background())
	if !errors.Is(err, types.ErrTimeout) {
		t.Errorf("Poll error = %v, want ErrTimeout", err)
	}
}

func TestPollUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAPIClient(url, "k", "s", time.Second, testLogger())
	_, err := c.Poll(context.Background())
	if !errors.Is(err, types.ErrGeneral) {
		t.Errorf("Poll error = %v, want ErrGeneral", err)
	}
}

func TestWriteReadOnly(t *testing.T) {
	c := NewAPIClient("", "k", "s", time.Second, testLogger())
	if err := c.Write(context.Background(), "501", 50); !errors.Is(err, types.ErrReadOnly) {
		t.Errorf("Write error = %v, want ErrReadOnly", err)
	}
	if c.UpdateInterval() != 61*time.Second {
		t.Errorf("UpdateInterval = %v, want 61s", c.UpdateInterval())
	}
	if c.MinPollSpacing() != 61*time.Second {
		t.Errorf("MinPollSpacing = %v, want 61s", c.MinPollSpacing())
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
}
