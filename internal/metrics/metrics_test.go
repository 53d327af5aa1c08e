package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStatusChange(t *testing.T) {
	RecordStatusChange("", "normal")
	RecordStatusChange("normal", "warning")

	if got := testutil.ToFloat64(currentStatus.WithLabelValues("warning")); got != 1 {
		t.Errorf("current{warning} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(currentStatus.WithLabelValues("normal")); got != 0 {
		t.Errorf("current{normal} = %v, want 0", got)
	}
}

func TestRecordSyncEvent(t *testing.T) {
	before := testutil.ToFloat64(syncEvents.WithLabelValues("battery-low", "dropped"))
	RecordSyncEvent("battery-low", "dropped")
	RecordSyncEvent("battery-low", "dropped")

	if got := testutil.ToFloat64(syncEvents.WithLabelValues("battery-low", "dropped")); got != before+2 {
		t.Errorf("events_total = %v, want %v", got, before+2)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordFrame(500 * time.Microsecond)
	SetGlobalBrightness(128)
	SetSyncQueueDepth(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"statuslight_status_frames_rendered_total",
		"statuslight_led_transmit_duration_seconds",
		"statuslight_status_global_brightness 128",
		"statuslight_sync_queue_depth 3",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("scrape output missing %q", name)
		}
	}
}
