package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/internal/pulse"
	"github.com/delvicier/fixagent/internal/recon"
	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/internal/settings"
	"github.com/delvicier/fixagent/internal/testutil"
	"github.com/delvicier/fixagent/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeScanner struct {
	mu       sync.Mutex
	active   bool
	scanned  chan recon.Mode
	connect  func(raw string) (*recon.Outcome, error)
	canceled int
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{scanned: make(chan recon.Mode, 16)}
}

// TryStart claims the active slot and leaves the scan running.
func (f *fakeScanner) TryStart(ctx context.Context, mode recon.Mode, done func(*recon.Outcome, error)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return "", fmt.Errorf("%w: s-active", recon.ErrScanActive)
	}
	f.active = true
	f.scanned <- mode
	return "s1", nil
}

func (f *fakeScanner) Connect(ctx context.Context, raw string) (*recon.Outcome, error) {
	return f.connect(raw)
}

func (f *fakeScanner) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return false
	}
	f.active = false
	f.canceled++
	return true
}

func (f *fakeScanner) Active() (string, recon.Mode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return "", "", false
	}
	return "s-active", recon.ModeFast, true
}

func (f *fakeScanner) setActive(v bool) {
	f.mu.Lock()
	f.active = v
	f.mu.Unlock()
}

type fakeMonitor struct{ status pulse.Status }

func (f fakeMonitor) Status() pulse.Status { return f.status }

type testEnv struct {
	srv     *Server
	scanner *fakeScanner
	store   *settings.Store
	history services.ScanRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := settings.Open(ctx, testutil.NewSettingsRepo(t), testutil.Logger())
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	history := testutil.NewScanRepo(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetConnectionUp(true)

	sc := newFakeScanner()
	srv := New("127.0.0.1:0", Deps{
		Scanner:  sc,
		Settings: store,
		Monitor:  fakeMonitor{status: pulse.Status{State: pulse.StateUp, BaseURL: "http://10.0.2.2:4000"}},
		History:  history,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, testutil.Logger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, scanner: sc, store: store, history: history}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want problem+json", ct)
	}
	var p Problem
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["service"] != "fixagent" {
		t.Errorf("service = %v, want fixagent", body["service"])
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestHandleStatus_RedactsCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.SetBaseURL(ctx, "http://10.0.2.2:4000"); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SetToken(ctx, "super-secret-token"); err != nil {
		t.Fatal(err)
	}
	env.scanner.setActive(true)

	w := env.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	raw := w.Body.String()
	if strings.Contains(raw, "super-secret-token") {
		t.Fatalf("status leaked token: %s", raw)
	}

	var resp statusResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Configured || resp.Connection.BaseURL != "http://10.0.2.2:4000" {
		t.Errorf("connection = %+v", resp.Connection)
	}
	if resp.Connection.Token != "[redacted]" {
		t.Errorf("token = %q, want [redacted]", resp.Connection.Token)
	}
	if resp.Monitor == nil || resp.Monitor.State != pulse.StateUp {
		t.Errorf("monitor = %+v", resp.Monitor)
	}
	if resp.Scan == nil || resp.Scan.SessionID != "s-active" {
		t.Errorf("active scan = %+v", resp.Scan)
	}
}

func TestHandleStartScan(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMode recon.Mode
	}{
		{"default fast", "", http.StatusAccepted, recon.ModeFast},
		{"deep", `{"mode":"deep"}`, http.StatusAccepted, recon.ModeDeep},
		{"manual rejected", `{"mode":"manual"}`, http.StatusBadRequest, ""},
		{"unknown", `{"mode":"slow"}`, http.StatusBadRequest, ""},
		{"bad json", `{`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, http.MethodPost, "/api/v1/scan", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantMode == "" {
				return
			}
			select {
			case got := <-env.scanner.scanned:
				if got != tt.wantMode {
					t.Errorf("scanned mode = %q, want %q", got, tt.wantMode)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("background scan never started")
			}
		})
	}
}

func TestHandleStartScan_Conflict(t *testing.T) {
	env := newTestEnv(t)
	env.scanner.setActive(true)

	w := env.do(t, http.MethodPost, "/api/v1/scan", `{"mode":"fast"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if p := decodeProblem(t, w); p.Type != ProblemTypeConflict {
		t.Errorf("type = %q", p.Type)
	}
}

func TestHandleStartScan_ConcurrentRequestsStartOneScan(t *testing.T) {
	env := newTestEnv(t)

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- env.do(t, http.MethodPost, "/api/v1/scan", `{"mode":"deep"}`).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	if counts[http.StatusAccepted] != 1 || counts[http.StatusConflict] != n-1 {
		t.Errorf("status counts = %v, want one 202 and %d 409", counts, n-1)
	}
	if got := len(env.scanner.scanned); got != 1 {
		t.Errorf("scans started = %d, want 1", got)
	}
}

func TestHandleCancelScan(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/api/v1/scan", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("no scan: status = %d, want 404", w.Code)
	}

	env.scanner.setActive(true)
	w = env.do(t, http.MethodDelete, "/api/v1/scan", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("active scan: status = %d, want 204", w.Code)
	}
	if env.scanner.canceled != 1 {
		t.Errorf("canceled = %d, want 1", env.scanner.canceled)
	}
}

func TestHandleSetBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		connect  func(string) (*recon.Outcome, error)
		wantCode int
		wantType string
	}{
		{
			name: "connected",
			body: `{"url":"http://192.168.1.20:4000/"}`,
			connect: func(raw string) (*recon.Outcome, error) {
				return &recon.Outcome{Mode: recon.ModeManual, Status: recon.StatusConnected, FoundURL: recon.NormalizeManualURL(raw)}, nil
			},
			wantCode: http.StatusOK,
		},
		{
			name: "invalid",
			body: `{"url":"ftp://x"}`,
			connect: func(raw string) (*recon.Outcome, error) {
				return nil, fmt.Errorf("%w: %q", recon.ErrInvalidURL, raw)
			},
			wantCode: http.StatusBadRequest,
			wantType: ProblemTypeBadRequest,
		},
		{
			name: "unreachable",
			body: `{"url":"http://192.168.1.99:4000"}`,
			connect: func(raw string) (*recon.Outcome, error) {
				return &recon.Outcome{Status: recon.StatusNotFound}, fmt.Errorf("%w: %s", recon.ErrUnreachable, raw)
			},
			wantCode: http.StatusBadGateway,
			wantType: ProblemTypeUnreachable,
		},
		{
			name:     "bad json",
			body:     `nope`,
			wantCode: http.StatusBadRequest,
			wantType: ProblemTypeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.scanner.connect = tt.connect
			w := env.do(t, http.MethodPut, "/api/v1/settings/base-url", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantType != "" {
				if p := decodeProblem(t, w); p.Type != tt.wantType {
					t.Errorf("type = %q, want %q", p.Type, tt.wantType)
				}
				return
			}
			var out recon.Outcome
			json.NewDecoder(w.Body).Decode(&out)
			if out.FoundURL != "http://192.168.1.20:4000" {
				t.Errorf("found = %q", out.FoundURL)
			}
		})
	}
}

func TestHandleScans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scan := &models.ScanSession{Mode: "fast", Status: "running", Total: 509, StartedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := env.history.Create(ctx, scan); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/scans?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list services.ListResult[models.ScanSession]
	json.NewDecoder(w.Body).Decode(&list)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != scan.ID {
		t.Errorf("list = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scans/"+scan.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scans/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/scans?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "fixagent_") {
		t.Errorf("metrics body missing fixagent_ series")
	}
}
