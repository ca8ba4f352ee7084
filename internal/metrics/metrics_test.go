package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Reconnect()
	m.Frame("message")
	m.Reconciled("id")
	m.ReceiptSent()
	m.NotificationShown()
	m.SendFailed("throttled")
	m.SocketOpened()
	m.SocketClosed()
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Frame("message")
	m.Frame("message")
	m.Frame("typing")
	m.Reconciled("temp_id")
	m.SocketOpened()
	m.SocketOpened()
	m.SocketClosed()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"message frames", testutil.ToFloat64(m.frames.WithLabelValues("message")), 2},
		{"typing frames", testutil.ToFloat64(m.frames.WithLabelValues("typing")), 1},
		{"temp_id merges", testutil.ToFloat64(m.reconciled.WithLabelValues("temp_id")), 1},
		{"open sockets", testutil.ToFloat64(m.openSockets), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ReceiptSent()

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pulse_read_receipts_sent_total 1") {
		t.Error("receipt counter missing from exposition")
	}
}
