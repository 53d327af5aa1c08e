package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/status"
)

// readSSE collects data lines from an event stream.
func readSSE(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				lines <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	return lines
}

func waitFor(t *testing.T, lines <-chan string, contains string) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", contains)
			}
			if strings.Contains(line, contains) {
				return line
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %q", contains)
		}
	}
}

func openSSE(t *testing.T, env *testEnv, path string) <-chan string {
	t.Helper()
	url := fmt.Sprintf("%s%s?auth=%s", env.ts.URL, path, authQuery(testUser, testPass))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}
	return readSSE(t, resp)
}

func TestSSEStatusEvents(t *testing.T) {
	env := newTestEnv(t)
	lines := openSSE(t, env, "/api/events")

	// The current status is sent on connect.
	first := waitFor(t, lines, `"status"`)
	if !strings.Contains(first, `"status":"off"`) {
		t.Errorf("initial event = %s, want status off", first)
	}

	if code, body := env.do(t, http.MethodPut, "/api/status", `{"status":"warning","animation":"blinking","priority":"warning"}`); code != http.StatusOK {
		t.Fatalf("PUT warning = %d: %s", code, body)
	}
	changed := waitFor(t, lines, `"status":"warning"`)
	var ev struct {
		Animation string `json:"animation"`
		Color     string `json:"color"`
	}
	if err := json.Unmarshal([]byte(changed), &ev); err != nil {
		t.Fatalf("decode %s: %v", changed, err)
	}
	if ev.Animation != "blinking" || ev.Color != "#ffff00" {
		t.Errorf("status-changed = %+v", ev)
	}

	if code, _ := env.do(t, http.MethodPut, "/api/status", `{"status":"playing"}`); code != http.StatusOK {
		t.Fatalf("PUT playing = %d", code)
	}
	waitFor(t, lines, `"current_status":"warning"`)

	if code, _ := env.do(t, http.MethodPut, "/api/status/brightness", `{"brightness":200}`); code != http.StatusOK {
		t.Fatalf("PUT brightness = %d", code)
	}
	waitFor(t, lines, `"brightness":200`)
}

func TestSSESyncEvents(t *testing.T) {
	env := newTestEnv(t)
	lines := openSSE(t, env, "/api/events")
	waitFor(t, lines, `"status"`)

	if err := env.sync.SetAutoSync(false); err != nil {
		t.Fatalf("SetAutoSync() error = %v", err)
	}
	ctx := t.Context()
	go func() { _ = env.sync.Run(ctx) }()

	if code, body := env.do(t, http.MethodPost, "/api/sync/events", `{"type":"wifi_connected"}`); code != http.StatusOK {
		t.Fatalf("POST event = %d: %s", code, body)
	}
	line := waitFor(t, lines, `"action":"dropped"`)
	if !strings.Contains(line, `"event_type":"wifi-connected"`) {
		t.Errorf("sync event = %s", line)
	}
}

func TestSSEAuthFailure(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}

	resp, err = http.Get(env.ts.URL + "/api/events?auth=" + authQuery("wrong", "creds"))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 for wrong auth, got %d", resp.StatusCode)
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/ws?auth=" + authQuery(testUser, testPass)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, contains string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", contains, err)
		}
		if strings.Contains(string(data), contains) {
			return string(data)
		}
	}
}

func TestWebsocket(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sync","event":"button-pressed","payload":"AQ=="}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	reply := readWS(t, conn, `"type":"sync"`)
	if !strings.Contains(reply, `"ok":true`) {
		t.Errorf("sync reply = %s", reply)
	}
	// websocket-connected from the handshake plus button-pressed.
	if got := env.sync.QueueLen(); got != 2 {
		t.Errorf("QueueLen() = %d, want 2", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"sync","event":"bogus"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if reply = readWS(t, conn, `"type":"sync"`); !strings.Contains(reply, `"ok":false`) {
		t.Errorf("bogus sync reply = %s", reply)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	readWS(t, conn, `"type":"text"`)

	if _, err := env.status.TrySet(status.Recording, anim.None, status.PriorityFunction, 0); err != nil {
		t.Fatalf("TrySet() error = %v", err)
	}
	push := readWS(t, conn, `"type":"status-changed"`)
	if !strings.Contains(push, `"status":"recording"`) {
		t.Errorf("push = %s", push)
	}
}

func TestWebsocketAuth(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without credentials succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}
}
