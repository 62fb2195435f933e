package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Acquisition metrics
	RecordsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "endolog_records_written_total",
			Help: "Total rows durably appended to log files",
		},
	)

	WriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "endolog_write_failures_total",
			Help: "Total row writes that faulted the logging session",
		},
	)

	LoggingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "endolog_logging_active",
			Help: "Whether a logging session is currently active (0 or 1)",
		},
	)

	MessagesFramed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endolog_messages_framed_total",
			Help: "Total complete messages extracted from the byte stream",
		},
		[]string{"numeric"},
	)

	// Auth metrics
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endolog_login_attempts_total",
			Help: "Total login attempts by result",
		},
		[]string{"result"},
	)

	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "endolog_sessions_expired_total",
			Help: "Total sessions invalidated by inactivity timeout",
		},
	)

	PermissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endolog_permission_denials_total",
			Help: "Total permission checks that were denied",
		},
		[]string{"action"},
	)

	// Device metrics
	ConnectionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endolog_connection_events_total",
			Help: "Device link connection transitions",
		},
		[]string{"state"},
	)

	// Credential persistence metrics
	CredentialWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "endolog_credential_write_failures_total",
			Help: "Total credential store writes that failed after an account mutation",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RecordsWritten,
		WriteFailures,
		LoggingActive,
		MessagesFramed,
		LoginAttempts,
		SessionsExpired,
		PermissionDenials,
		ConnectionEvents,
		CredentialWriteFailures,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
