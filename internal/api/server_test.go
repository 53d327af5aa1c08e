package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/led"
	"github.com/smazurov/statuslight/internal/metrics"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
	"github.com/smazurov/statuslight/internal/systemd"
)

type testSurface struct {
	mu    sync.Mutex
	pixel color.Color
	err   error
}

func (s *testSurface) SetAll(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixel = c
}

func (s *testSurface) Clear() { s.SetAll(color.Black) }

func (s *testSurface) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *testSurface) Info() led.Info {
	return led.Info{Driver: "test", Target: "memory"}
}

func (s *testSurface) Pixels() []color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []color.Color{s.pixel}
}

type fakeService struct {
	restarts int
	err      error
}

func (f *fakeService) Unit() string { return systemd.DefaultUnit }

func (f *fakeService) Status(context.Context) (systemd.UnitStatus, error) {
	return systemd.UnitStatus{Unit: systemd.DefaultUnit, ActiveState: "active", SubState: "running"}, f.err
}

func (f *fakeService) Restart(context.Context) error {
	f.restarts++
	return f.err
}

type testEnv struct {
	ts      *httptest.Server
	status  *status.Arbitrator
	sync    *syncbus.Bus
	surface *testSurface
	service *fakeService
	bus     *events.Bus
}

const testUser, testPass = "test", "test"

func newTestEnv(t *testing.T, busOpts ...syncbus.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		surface: &testSurface{},
		service: &fakeService{},
		bus:     events.New(),
	}

	arb, err := status.New(env.surface, status.WithEventBus(env.bus))
	if err != nil {
		t.Fatalf("status.New() error = %v", err)
	}
	env.status = arb

	busOpts = append([]syncbus.Option{syncbus.WithEventBus(env.bus)}, busOpts...)
	sb, err := syncbus.New(arb, busOpts...)
	if err != nil {
		t.Fatalf("syncbus.New() error = %v", err)
	}
	env.sync = sb

	server := NewServer(&Options{
		AuthUsername:   testUser,
		AuthPassword:   testPass,
		Status:         arb,
		Sync:           sb,
		LEDs:           env.surface,
		Systemd:        env.service,
		EventBus:       env.bus,
		MetricsHandler: metrics.Handler(),
	})
	env.ts = httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		env.ts.Close()
		_ = sb.Close()
		_ = arb.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.SetBasicAuth(testUser, testPass)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func authQuery(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		auth func(*http.Request)
		want int
	}{
		{"health is public", "/api/health", nil, http.StatusOK},
		{"version is public", "/api/version", nil, http.StatusOK},
		{"missing credentials", "/api/status", nil, http.StatusUnauthorized},
		{"wrong password", "/api/status", func(r *http.Request) { r.SetBasicAuth(testUser, "nope") }, http.StatusUnauthorized},
		{"basic auth header", "/api/status", func(r *http.Request) { r.SetBasicAuth(testUser, testPass) }, http.StatusOK},
		{"auth query param", "/api/status?auth=" + authQuery(testUser, testPass), nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.ts.URL+tt.path, nil)
			if tt.auth != nil {
				tt.auth(req)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") != authRealm {
				t.Errorf("WWW-Authenticate = %q, want %q", resp.Header.Get("WWW-Authenticate"), authRealm)
			}
		})
	}
}

func TestStatusRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/status = %d: %s", code, body)
	}
	if got := decode[map[string]any](t, body); got["status"] != "off" || got["global_brightness"] != float64(128) {
		t.Errorf("initial status = %v", got)
	}

	code, body = env.do(t, http.MethodPut, "/api/status", `{"status":"error","animation":"blinking","priority":"error"}`)
	if code != http.StatusOK {
		t.Fatalf("PUT error = %d: %s", code, body)
	}
	set := decode[struct {
		Accepted bool           `json:"accepted"`
		Current  map[string]any `json:"current"`
	}](t, body)
	if !set.Accepted || set.Current["status"] != "error" || set.Current["animation"] != "blinking" {
		t.Errorf("PUT error response = %+v", set)
	}

	// Lower priority loses to the displayed error.
	code, body = env.do(t, http.MethodPut, "/api/status", `{"status":"playing","priority":"function"}`)
	if code != http.StatusOK {
		t.Fatalf("PUT playing = %d: %s", code, body)
	}
	set = decode[struct {
		Accepted bool           `json:"accepted"`
		Current  map[string]any `json:"current"`
	}](t, body)
	if set.Accepted || set.Current["status"] != "error" {
		t.Errorf("PUT playing response = %+v, want rejected with error displayed", set)
	}

	// Clear is a normal-priority request and is gated the same way.
	if code, _ = env.do(t, http.MethodDelete, "/api/status", ""); code != http.StatusOK {
		t.Fatalf("DELETE = %d", code)
	}
	if got := env.status.Current(); got != status.Error {
		t.Errorf("Current() after clear = %v, want error", got)
	}

	code, body = env.do(t, http.MethodPut, "/api/status/brightness", `{"brightness":64}`)
	if code != http.StatusOK {
		t.Fatalf("PUT brightness = %d: %s", code, body)
	}
	if got := env.status.Snapshot().GlobalBrightness; got != 64 {
		t.Errorf("GlobalBrightness = %d, want 64", got)
	}

	if code, _ = env.do(t, http.MethodPut, "/api/status/auto-brightness", `{"enabled":true}`); code != http.StatusOK {
		t.Fatalf("PUT auto-brightness = %d", code)
	}
	if !env.status.Snapshot().AutoBrightness {
		t.Error("AutoBrightness = false, want true")
	}
}

func TestStatusRoutes_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown status", "/api/status", `{"status":"party"}`},
		{"unknown animation", "/api/status", `{"status":"normal","animation":"strobe"}`},
		{"unknown priority", "/api/status", `{"status":"normal","priority":"urgent"}`},
		{"negative duration", "/api/status", `{"status":"normal","duration_ms":-5}`},
		{"brightness too high", "/api/status/brightness", `{"brightness":300}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPut, tt.path, tt.body)
			if code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422: %s", code, body)
			}
		})
	}
}

func TestStatusRefresh(t *testing.T) {
	env := newTestEnv(t)

	if code, body := env.do(t, http.MethodPut, "/api/status", `{"status":"config"}`); code != http.StatusOK {
		t.Fatalf("PUT config = %d: %s", code, body)
	}
	if code, body := env.do(t, http.MethodPost, "/api/status/refresh", ""); code != http.StatusOK {
		t.Fatalf("POST refresh = %d: %s", code, body)
	}

	code, body := env.do(t, http.MethodGet, "/api/leds", "")
	if code != http.StatusOK {
		t.Fatalf("GET /api/leds = %d: %s", code, body)
	}
	leds := decode[struct {
		Driver map[string]any `json:"driver"`
		Pixels []string       `json:"pixels"`
	}](t, body)
	if len(leds.Pixels) != 1 || leds.Pixels[0] != "#000080" {
		t.Errorf("pixels = %v, want [#000080]", leds.Pixels)
	}

	env.surface.mu.Lock()
	env.surface.err = io.ErrClosedPipe
	env.surface.mu.Unlock()
	if code, _ := env.do(t, http.MethodPost, "/api/status/refresh", ""); code != http.StatusInternalServerError {
		t.Errorf("POST refresh with failing LED = %d, want 500", code)
	}
}

func TestStatusRoutes_Closed(t *testing.T) {
	env := newTestEnv(t)
	_ = env.status.Close()

	if code, _ := env.do(t, http.MethodPut, "/api/status", `{"status":"warning"}`); code != http.StatusServiceUnavailable {
		t.Errorf("PUT after close = %d, want 503", code)
	}
}

func TestSyncRoutes(t *testing.T) {
	env := newTestEnv(t, syncbus.WithQueueSize(1), syncbus.WithSendTimeout(10*time.Millisecond))

	code, body := env.do(t, http.MethodPost, "/api/sync/events", `{"type":"wifi-connected"}`)
	if code != http.StatusOK {
		t.Fatalf("POST event = %d: %s", code, body)
	}
	sent := decode[map[string]any](t, body)
	if sent["queued"] != true || sent["queue_length"] != float64(1) {
		t.Errorf("POST event response = %v", sent)
	}

	// Nothing consumes the queue, so the second event times out.
	if code, _ = env.do(t, http.MethodPost, "/api/sync/battery", `{"level":10,"charging":false}`); code != http.StatusTooManyRequests {
		t.Errorf("POST battery with full queue = %d, want 429", code)
	}

	if code, _ = env.do(t, http.MethodPost, "/api/sync/events", `{"type":"meteor-strike"}`); code != http.StatusUnprocessableEntity {
		t.Errorf("POST unknown event = %d, want 422", code)
	}

	code, body = env.do(t, http.MethodPut, "/api/sync/auto", `{"enabled":false}`)
	if code != http.StatusOK {
		t.Fatalf("PUT auto = %d: %s", code, body)
	}
	settings := decode[map[string]any](t, body)
	if settings["auto_sync"] != false || settings["queue_capacity"] != float64(1) {
		t.Errorf("PUT auto response = %v", settings)
	}

	code, body = env.do(t, http.MethodPut, "/api/sync/feedback", `{"brightness":90,"duration_ms":150}`)
	if code != http.StatusOK {
		t.Fatalf("PUT feedback = %d: %s", code, body)
	}
	if b, d := env.sync.Feedback(); b != 90 || d != 150*time.Millisecond {
		t.Errorf("Feedback() = %d, %v", b, d)
	}

	code, body = env.do(t, http.MethodGet, "/api/sync/auto", "")
	if code != http.StatusOK {
		t.Fatalf("GET auto = %d", code)
	}
	if got := decode[map[string]any](t, body); got["feedback_duration_ms"] != float64(150) {
		t.Errorf("GET auto = %v", got)
	}
}

func TestSystemdRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/system/service", "")
	if code != http.StatusOK {
		t.Fatalf("GET service = %d: %s", code, body)
	}
	if got := decode[map[string]any](t, body); got["active_state"] != "active" {
		t.Errorf("service status = %v", got)
	}

	code, body = env.do(t, http.MethodPost, "/api/system/restart", "")
	if code != http.StatusOK || env.service.restarts != 1 {
		t.Fatalf("POST restart = %d (%d restarts): %s", code, env.service.restarts, body)
	}

	env.service.err = io.ErrUnexpectedEOF
	if code, _ = env.do(t, http.MethodPost, "/api/system/restart", ""); code != http.StatusInternalServerError {
		t.Errorf("POST restart with dbus error = %d, want 500", code)
	}
}

func TestLogRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPut, "/api/logs/level", `{"module":"status","level":"debug"}`)
	if code != http.StatusOK {
		t.Fatalf("PUT level = %d: %s", code, body)
	}
	levels := decode[struct {
		Levels map[string]string `json:"levels"`
	}](t, body)
	if levels.Levels["status"] != "debug" {
		t.Errorf("levels = %v", levels.Levels)
	}

	if code, _ = env.do(t, http.MethodPut, "/api/logs/level", `{"level":"loud"}`); code != http.StatusUnprocessableEntity {
		t.Errorf("PUT bad level = %d, want 422", code)
	}

	if code, body = env.do(t, http.MethodGet, "/api/logs?limit=5", ""); code != http.StatusOK {
		t.Errorf("GET logs = %d: %s", code, body)
	}
}

func TestMetricsAndCORS(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "statuslight_") {
		t.Errorf("GET /metrics = %d, missing statuslight metrics", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/api/status", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("OPTIONS = %d, allow-origin %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
