package pulse

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/delvicier/fixagent/pkg/models"
)

// Tests for the Checker interface and HTTPChecker implementation.
//
// Testing Strategy:
//  - HTTPChecker against httptest servers: success, error status, redirect,
//    slow handler, closed port and malformed candidates
//  - mockChecker: reusable test double for the monitor tests

// mockChecker answers from a per-candidate table and counts calls.
type mockChecker struct {
	mu        sync.Mutex
	reachable map[string]bool
	calls     []string
}

func newMockChecker(reachable ...string) *mockChecker {
	m := &mockChecker{reachable: make(map[string]bool)}
	for _, r := range reachable {
		m.reachable[r] = true
	}
	return m
}

func (m *mockChecker) set(candidate string, up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reachable[candidate] = up
}

func (m *mockChecker) Check(_ context.Context, candidate string) *models.ProbeResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, candidate)
	return &models.ProbeResult{
		CandidateURL: candidate,
		Reachable:    m.reachable[candidate],
		CheckedAt:    time.Now().UTC(),
	}
}

func (m *mockChecker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Compile-time interface guards.
var (
	_ Checker = (*mockChecker)(nil)
	_ Checker = (*HTTPChecker)(nil)
)

func TestNewHTTPChecker_HealthPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "default", path: "", want: "/api"},
		{name: "leading slash", path: "/health", want: "/health"},
		{name: "no leading slash", path: "status", want: "/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHTTPChecker(time.Second, tt.path)
			if c.healthPath != tt.want {
				t.Errorf("healthPath = %q, want %q", c.healthPath, tt.want)
			}
			if c.Timeout() != time.Second {
				t.Errorf("Timeout() = %v, want 1s", c.Timeout())
			}
		})
	}
}

func TestHTTPChecker_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "ok", status: http.StatusOK, want: true},
		{name: "no content", status: http.StatusNoContent, want: true},
		{name: "not modified", status: http.StatusNotModified, want: true},
		{name: "unauthorized", status: http.StatusUnauthorized, want: false},
		{name: "not found", status: http.StatusNotFound, want: false},
		{name: "server error", status: http.StatusInternalServerError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewHTTPChecker(time.Second, "")
			res := c.Check(context.Background(), srv.URL+"/")

			if res.Reachable != tt.want {
				t.Errorf("Reachable = %v, want %v (result %+v)", res.Reachable, tt.want, res)
			}
			if res.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.status)
			}
			if gotPath != "/api" {
				t.Errorf("probed path = %q, want /api", gotPath)
			}
			if res.CandidateURL != srv.URL+"/" {
				t.Errorf("CandidateURL = %q, want %q", res.CandidateURL, srv.URL+"/")
			}
		})
	}
}

func TestHTTPChecker_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>docs</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if !NewHTTPChecker(time.Second, "").Probe(context.Background(), srv.URL) {
		t.Error("Probe() = false for redirecting health route, want true")
	}
}

func TestHTTPChecker_ClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := NewHTTPChecker(500*time.Millisecond, "")
	start := time.Now()
	res := c.Check(context.Background(), "http://"+addr)
	elapsed := time.Since(start)

	if res.Reachable {
		t.Error("Reachable = true for closed port")
	}
	if res.Error == "" {
		t.Error("Error is empty for closed port")
	}
	if elapsed > 2*time.Second {
		t.Errorf("closed port check took %v, want well under the timeout bound", elapsed)
	}
}

func TestHTTPChecker_SlowServerTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	timeout := 200 * time.Millisecond
	c := NewHTTPChecker(timeout, "")

	start := time.Now()
	ok := c.Probe(context.Background(), srv.URL)
	elapsed := time.Since(start)

	if ok {
		t.Error("Probe() = true for a server slower than the timeout")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Probe() took %v, want bounded by the timeout", elapsed)
	}
}

func TestHTTPChecker_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if NewHTTPChecker(time.Second, "").Probe(ctx, srv.URL) {
		t.Error("Probe() with cancelled context = true, want false")
	}
}

func TestHTTPChecker_MalformedCandidate(t *testing.T) {
	c := NewHTTPChecker(time.Second, "")
	for _, candidate := range []string{"", "://nohost", "http://[::1"} {
		res := c.Check(context.Background(), candidate)
		if res.Reachable {
			t.Errorf("Check(%q).Reachable = true, want false", candidate)
		}
		if res.Error == "" {
			t.Errorf("Check(%q).Error is empty", candidate)
		}
	}
}

func TestHTTPChecker_UserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer srv.Close()

	NewHTTPChecker(time.Second, "", WithUserAgent("fixagent/test")).Probe(context.Background(), srv.URL)
	if ua != "fixagent/test" {
		t.Errorf("User-Agent = %q, want fixagent/test", ua)
	}
}
