// Package recorder gates framed device messages into a durable CSV log. It
// implements a reusable Idle/Active/Faulted state machine; every accepted
// row is flushed to stable storage before the append returns.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goodtune/endolog/internal/auth"
	"github.com/goodtune/endolog/internal/events"
	"github.com/goodtune/endolog/internal/metrics"
	"github.com/goodtune/endolog/internal/storage"
	"github.com/rs/zerolog"
)

// State is the logging session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFaulted
)

// String returns the display form of the state.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFaulted:
		return "faulted"
	default:
		return "idle"
	}
}

// Stop reasons recorded in the run history and reported to listeners.
const (
	ReasonStopped        = "stopped"
	ReasonConnectionLost = "connection lost"
	ReasonFault          = "fault"
	ReasonShutdown       = "shutdown"
)

const (
	headerRow       = "timestamp,data"
	timestampLayout = "2006-01-02 15:04:05.000"
)

// Sink is the durable destination for log rows. Sync must not return until
// written data has reached stable storage.
type Sink interface {
	io.WriteCloser
	Sync() error
}

// Authority is the slice of the session authority the recorder needs.
type Authority interface {
	Touch()
	RequirePermission(action auth.Action) error
	CurrentUsername() string
}

// Naming supplies the destination path for a new logging session.
type Naming interface {
	Validate() error
	FullPath() string
	OutputFolder() string
}

// Config holds recorder configuration and injected collaborators.
type Config struct {
	// ConfirmOverwrite is consulted when the destination file already
	// exists. A nil confirmer declines every overwrite.
	ConfirmOverwrite func(path string) bool

	// OpenSink opens the destination for durable append. Defaults to
	// creating/truncating a file on disk.
	OpenSink func(path string) (Sink, error)

	Clock auth.Clock
}

// Controller is the logging state machine. All state transitions and row
// appends are serialized through one mutex, so a row can never be written
// against a half-opened or half-closed sink.
type Controller struct {
	authority Authority
	naming    Naming
	runs      storage.RunStore
	notifier  events.Listener
	clock     auth.Clock
	confirm   func(path string) bool
	openSink  func(path string) (Sink, error)
	logger    zerolog.Logger

	mu          sync.Mutex
	state       State
	sink        Sink
	path        string
	startedAt   time.Time
	recordCount uint64
	connected   bool
}

// New creates an idle controller.
func New(authority Authority, naming Naming, runs storage.RunStore, cfg Config, notifier events.Listener, logger zerolog.Logger) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = auth.RealClock{}
	}
	if cfg.OpenSink == nil {
		cfg.OpenSink = openFileSink
	}
	if notifier == nil {
		notifier = events.Nop{}
	}

	return &Controller{
		authority: authority,
		naming:    naming,
		runs:      runs,
		notifier:  notifier,
		clock:     cfg.Clock,
		confirm:   cfg.ConfirmOverwrite,
		openSink:  cfg.OpenSink,
		logger:    logger.With().Str("component", "recorder").Logger(),
	}
}

func openFileSink(path string) (Sink, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RecordCount returns the number of rows accepted in the current or most
// recent session.
func (c *Controller) RecordCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordCount
}

// Path returns the destination of the current or most recent session.
func (c *Controller) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Start opens a logging session. Preconditions are checked in order,
// short-circuiting on the first failure: record permission, device link,
// naming fields, destination directory, overwrite confirmation. Any failure
// leaves the controller Idle.
func (c *Controller) Start(ctx context.Context) error {
	c.authority.Touch()
	if err := c.authority.RequirePermission(auth.ActionRecord); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive {
		return fmt.Errorf("logging already active on %s", c.path)
	}
	if !c.connected {
		return &DeviceError{Err: errors.New("no device detected")}
	}

	if err := c.naming.Validate(); err != nil {
		return err
	}

	folder := c.naming.OutputFolder()
	if err := storage.EnsureDir(folder); err != nil {
		return &PersistenceError{Op: "create directory", Path: folder, Err: err}
	}

	path := c.naming.FullPath()
	if _, err := os.Stat(path); err == nil {
		if c.confirm == nil || !c.confirm(path) {
			return ErrOverwriteDeclined
		}
	} else if !os.IsNotExist(err) {
		return &PersistenceError{Op: "stat", Path: path, Err: err}
	}

	sink, err := c.openSink(path)
	if err != nil {
		return &PersistenceError{Op: "open", Path: path, Err: err}
	}

	if err := writeDurable(sink, headerRow+"\n"); err != nil {
		_ = sink.Close()
		return &PersistenceError{Op: "write header", Path: path, Err: err}
	}

	c.sink = sink
	c.path = path
	c.startedAt = c.clock.Now()
	c.recordCount = 0
	c.state = StateActive

	metrics.LoggingActive.Set(1)
	c.logger.Info().
		Str("path", path).
		Str("username", c.authority.CurrentUsername()).
		Msg("Logging started")
	c.notifier.LoggingStarted(path)

	return nil
}

// OnMessage appends one timestamped row for a framed message. It is a no-op
// unless the session is Active. The row is flushed durably before the call
// returns; a failed write faults the session and the count does not advance.
func (c *Controller) OnMessage(message string, isNumericTuple bool) {
	c.mu.Lock()

	if c.state != StateActive {
		c.mu.Unlock()
		return
	}

	timestamp := c.clock.Now().Format(timestampLayout)
	row := timestamp + "," + message + "\n"

	if err := writeDurable(c.sink, row); err != nil {
		perr := &PersistenceError{Op: "append", Path: c.path, Err: err}
		c.faultLocked(perr)
		c.mu.Unlock()
		c.notifier.LoggingFaulted(perr)
		return
	}

	c.recordCount++
	count := c.recordCount
	c.mu.Unlock()

	metrics.RecordsWritten.Inc()
	c.notifier.RecordCount(count)
}

// writeDurable is the atomic append unit: the row either fully reaches
// stable storage or the session faults.
func writeDurable(sink Sink, row string) error {
	if _, err := io.WriteString(sink, row); err != nil {
		return err
	}
	return sink.Sync()
}

// faultLocked handles a mid-session persistence failure: Active → Faulted,
// close what can be closed, then settle in Idle so the controller stays
// reusable. The caller holds the lock.
func (c *Controller) faultLocked(perr *PersistenceError) {
	c.state = StateFaulted
	metrics.WriteFailures.Inc()
	c.logger.Error().Err(perr).Str("path", c.path).Msg("Logging faulted")

	if c.sink != nil {
		_ = c.sink.Close()
		c.sink = nil
	}

	c.recordRunLocked(ReasonFault)
	c.state = StateIdle
	metrics.LoggingActive.Set(0)
}

// Stop ends the session normally and reports the final record count.
// Stopping an idle controller is a no-op.
func (c *Controller) Stop() uint64 {
	c.authority.Touch()
	return c.stop(ReasonStopped)
}

// ConnectionChanged reacts to device link transitions. Losing the link while
// Active forces the stop path; the reason distinguishes it from a user stop.
func (c *Controller) ConnectionChanged(connected bool) {
	c.mu.Lock()
	c.connected = connected
	active := c.state == StateActive
	c.mu.Unlock()

	if !connected && active {
		c.logger.Warn().Msg("Device link lost while logging, forcing stop")
		c.stop(ReasonConnectionLost)
	}
}

// Shutdown force-stops an active session before process termination. No log
// file may be left open.
func (c *Controller) Shutdown() {
	c.stop(ReasonShutdown)
}

func (c *Controller) stop(reason string) uint64 {
	c.mu.Lock()

	if c.state != StateActive {
		count := c.recordCount
		c.mu.Unlock()
		return count
	}

	if err := c.sink.Sync(); err != nil {
		c.logger.Error().Err(err).Str("path", c.path).Msg("Final flush failed")
	}
	if err := c.sink.Close(); err != nil {
		c.logger.Error().Err(err).Str("path", c.path).Msg("Close failed")
	}
	c.sink = nil
	c.state = StateIdle

	count := c.recordCount
	path := c.path
	c.recordRunLocked(reason)
	c.mu.Unlock()

	metrics.LoggingActive.Set(0)
	c.logger.Info().
		Str("path", path).
		Uint64("records", count).
		Str("reason", reason).
		Msg("Logging stopped")
	c.notifier.LoggingStopped(count, reason)

	return count
}

// recordRunLocked appends the completed run to the history store. History is
// bookkeeping: a failure is logged, never propagated. The caller holds the
// lock.
func (c *Controller) recordRunLocked(reason string) {
	if c.runs == nil {
		return
	}

	run := storage.Run{
		Path:      c.path,
		Username:  c.authority.CurrentUsername(),
		StartedAt: c.startedAt,
		StoppedAt: c.clock.Now(),
		Records:   c.recordCount,
		Reason:    reason,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.runs.Add(ctx, run); err != nil {
		c.logger.Error().Err(err).Msg("Failed to record run history")
	}
}
