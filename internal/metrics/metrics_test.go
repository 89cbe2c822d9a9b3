package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLaunch(t *testing.T) {
	m := New()
	m.ObserveLaunch(OutcomeConnected)
	m.ObserveLaunch(OutcomeConnected)
	m.ObserveLaunch(OutcomeTimedOut)

	if got := testutil.ToFloat64(m.LaunchAttempts.WithLabelValues(OutcomeConnected)); got != 2 {
		t.Errorf("connected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LaunchAttempts.WithLabelValues(OutcomeTimedOut)); got != 1 {
		t.Errorf("timed_out = %v, want 1", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveLaunch(OutcomeDaemonError)
	m.SetDevices(3)
	m.ObserveFetch(0.2)
	m.PromptCancelled()
}

func TestHandlerServesCollectors(t *testing.T) {
	m := New()
	m.SetDevices(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "lazyflutter_devices_connected 2") {
		t.Errorf("metrics output missing device gauge:\n%s", body)
	}
}
