// Package device owns the serial device link: detection of candidate ports,
// opening the link, and pumping raw bytes into the framing layer.
package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goodtune/endolog/internal/config"
	"github.com/goodtune/endolog/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNoDevice is returned when detection finds no candidate port.
var ErrNoDevice = errors.New("no serial device detected")

// Stream receives the raw byte flow and link transitions from the manager.
type Stream interface {
	Feed(p []byte)
	ConnectionChanged(connected bool)
}

// Config holds device manager settings and test seams.
type Config struct {
	// Port, when set, is used directly and detection is skipped.
	Port string

	// PortPatterns are glob patterns scanned by Detect.
	PortPatterns []string

	// ReadBuffer is the byte batch size for each read from the link.
	ReadBuffer int

	// Open opens the device node. Defaults to os.Open.
	Open func(path string) (io.ReadCloser, error)
}

// Manager opens one device link at a time and feeds its bytes to the stream.
// There is no automatic reconnection: when the link drops, the stream is told
// and the manager goes back to disconnected until Connect is called again.
type Manager struct {
	cfg    Config
	stream Stream
	logger zerolog.Logger

	mu      sync.Mutex
	link    io.ReadCloser
	port    string
	closing bool
	wg      sync.WaitGroup
}

// NewManager creates a disconnected manager.
func NewManager(cfg Config, stream Stream, logger zerolog.Logger) *Manager {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 256
	}
	if cfg.Open == nil {
		cfg.Open = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}

	return &Manager{
		cfg:    cfg,
		stream: stream,
		logger: logger.With().Str("component", "device").Logger(),
	}
}

// FromConfig builds manager settings from the application configuration.
func FromConfig(cfg config.DeviceConfig) Config {
	return Config{
		Port:         cfg.Port,
		PortPatterns: cfg.PortPatterns,
		ReadBuffer:   cfg.ReadBuffer,
	}
}

// Detect returns candidate device ports. A configured explicit port wins;
// otherwise every pattern is expanded and the matches are returned sorted.
func (m *Manager) Detect() ([]string, error) {
	if m.cfg.Port != "" {
		return []string{m.cfg.Port}, nil
	}

	var ports []string
	for _, pattern := range m.cfg.PortPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid port pattern %q: %w", pattern, err)
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)

	if len(ports) == 0 {
		return nil, ErrNoDevice
	}
	return ports, nil
}

// Connect opens the given port and starts the read pump. Connecting while a
// link is already open is an error; call Disconnect first.
func (m *Manager) Connect(port string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link != nil {
		return fmt.Errorf("already connected to %s", m.port)
	}

	link, err := m.cfg.Open(port)
	if err != nil {
		return fmt.Errorf("failed to open device %s: %w", port, err)
	}

	m.link = link
	m.port = port
	m.closing = false

	m.logger.Info().Str("port", port).Msg("Device connected")
	metrics.ConnectionEvents.WithLabelValues("connected").Inc()
	m.stream.ConnectionChanged(true)

	m.wg.Add(1)
	go m.readPump(link)

	return nil
}

// Connected reports whether a link is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link != nil
}

// Port returns the port of the current or most recent link.
func (m *Manager) Port() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// Disconnect closes the link deliberately and waits for the pump to drain.
// Disconnecting while disconnected is a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.link == nil {
		m.mu.Unlock()
		return
	}
	m.closing = true
	_ = m.link.Close()
	m.mu.Unlock()

	m.wg.Wait()
}

// readPump reads byte batches until the link fails or is closed. It runs on
// its own goroutine; every batch goes to the stream in arrival order.
func (m *Manager) readPump(link io.ReadCloser) {
	defer m.wg.Done()

	buf := make([]byte, m.cfg.ReadBuffer)
	for {
		n, err := link.Read(buf)
		if n > 0 {
			m.stream.Feed(buf[:n])
		}
		if err != nil {
			m.handleLinkDown(err)
			return
		}
	}
}

// handleLinkDown settles the manager after the pump exits. A deliberate
// Disconnect logs quietly; anything else is a lost link.
func (m *Manager) handleLinkDown(err error) {
	m.mu.Lock()
	deliberate := m.closing
	port := m.port
	if m.link != nil {
		_ = m.link.Close()
		m.link = nil
	}
	m.mu.Unlock()

	if deliberate {
		m.logger.Info().Str("port", port).Msg("Device disconnected")
	} else {
		m.logger.Warn().Err(err).Str("port", port).Msg("Device link lost")
	}

	metrics.ConnectionEvents.WithLabelValues("disconnected").Inc()
	m.stream.ConnectionChanged(false)
}
