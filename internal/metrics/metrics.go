// Package metrics exposes Prometheus counters for the conversation client.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "pulse"

// Metrics groups the client counters.
type Metrics struct {
	registry *prometheus.Registry

	reconnects    prometheus.Counter
	frames        *prometheus.CounterVec
	reconciled    *prometheus.CounterVec
	receiptsSent  prometheus.Counter
	notifications prometheus.Counter
	sendFailures  *prometheus.CounterVec
	openSockets   prometheus.Gauge
}

// New registers the client counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled socket reconnect attempts.",
		}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Inbound frames by classification.",
		}, []string{"kind"}),
		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_messages_total",
			Help:      "Message upserts by matching rule.",
		}, []string{"rule"}),
		receiptsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_receipts_sent_total",
			Help:      "Read receipts written to the socket.",
		}),
		notifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_shown_total",
			Help:      "Desktop notifications shown.",
		}),
		sendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outgoing messages that could not be sent.",
		}, []string{"reason"}),
		openSockets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sockets",
			Help:      "Conversation sockets currently open.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) Frame(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reconciled(rule string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(rule).Inc()
}

func (m *Metrics) ReceiptSent() {
	if m == nil {
		return
	}
	m.receiptsSent.Inc()
}

func (m *Metrics) NotificationShown() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) SendFailed(reason string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(reason).Inc()
}

// SocketOpened and SocketClosed track the open socket gauge.
func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.openSockets.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.openSockets.Dec()
}

// Server serves /metrics for the registry.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds a metrics HTTP server bound to addr.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
