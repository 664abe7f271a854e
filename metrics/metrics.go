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

const namespace = "stt_relay"

// Reasons a session detaches from its remote connection.
const (
	ReasonRemoteError    = "remote_error"
	ReasonRemoteClose    = "remote_close"
	ReasonConnectTimeout = "connect_timeout"
	ReasonQueueFull      = "queue_full"
)

// Reasons a producer frame is dropped without being forwarded.
const (
	DropDetached  = "detached"
	DropDiscarded = "discarded"
	DropSend      = "send_failed"
)

// Metrics contains all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Remote connection metrics
	RemoteConnects *prometheus.CounterVec
	RemoteErrors   *prometheus.CounterVec
	Detaches       *prometheus.CounterVec

	// Audio frame metrics
	FramesReceived  prometheus.Counter
	FramesQueued    prometheus.Counter
	FramesForwarded prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	FlushSize       prometheus.Histogram

	// Transcript metrics
	MessagesForwarded prometheus.Counter
}

// New creates and registers all relay metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Current number of connected producers",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of producer sessions accepted",
		}),

		RemoteConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_connects_total",
			Help:      "Total number of remote transcription connections opened",
		}, []string{"backend"}),
		RemoteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Total number of errors reported by remote connections",
		}, []string{"backend"}),
		Detaches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_detaches_total",
			Help:      "Total number of sessions detached from their remote connection",
		}, []string{"reason"}),

		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of binary audio frames received from producers",
		}),
		FramesQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_queued_total",
			Help:      "Total number of frames queued while a remote connection was opening",
		}),
		FramesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_forwarded_total",
			Help:      "Total number of frames sent to remote connections",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames that were never sent to a remote connection",
		}, []string{"reason"}),
		FlushSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_frames",
			Help:      "Number of queued frames flushed when a remote connection opens",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11), // 1 to 1024
		}),

		MessagesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_forwarded_total",
			Help:      "Total number of remote messages forwarded to producers",
		}),
	}
}

// Registry returns the registry holding the relay metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionStarted records a newly accepted producer
func (m *Metrics) SessionStarted() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionEnded records a producer leaving
func (m *Metrics) SessionEnded() {
	m.SessionsActive.Dec()
}

// RecordRemoteConnect increments remote connects for the backend
func (m *Metrics) RecordRemoteConnect(backend string) {
	m.RemoteConnects.WithLabelValues(backend).Inc()
}

// RecordRemoteError increments remote errors for the backend
func (m *Metrics) RecordRemoteError(backend string) {
	m.RemoteErrors.WithLabelValues(backend).Inc()
}

// RecordDetach increments session detaches for the reason
func (m *Metrics) RecordDetach(reason string) {
	m.Detaches.WithLabelValues(reason).Inc()
}

// RecordFrameReceived increments the frames received counter
func (m *Metrics) RecordFrameReceived() {
	m.FramesReceived.Inc()
}

// RecordFrameQueued increments the frames queued counter
func (m *Metrics) RecordFrameQueued() {
	m.FramesQueued.Inc()
}

// RecordFrameForwarded increments the frames forwarded counter
func (m *Metrics) RecordFrameForwarded() {
	m.FramesForwarded.Inc()
}

// RecordFramesDropped adds n dropped frames for the reason
func (m *Metrics) RecordFramesDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordFlush observes the size of a pending queue flush
func (m *Metrics) RecordFlush(frames int) {
	m.FlushSize.Observe(float64(frames))
}

// RecordMessageForwarded increments the messages forwarded counter
func (m *Metrics) RecordMessageForwarded() {
	m.MessagesForwarded.Inc()
}

// Handler returns an HTTP handler exposing the relay metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Server serves the relay metrics on a separate listener.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer creates a metrics listener on addr serving /metrics.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger,
	}
}

// Start runs the listener in the background.
func (s *Server) Start() {
	go func() {
		s.log.Info("Starting metrics server", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server error", zap.Error(err))
		}
	}()
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
