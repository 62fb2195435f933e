package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/endolog/internal/auth"
	"github.com/goodtune/endolog/internal/events"
	"github.com/goodtune/endolog/internal/storage"
)

type fakeAuthority struct {
	username string
	denied   error
	touches  int
}

func (f *fakeAuthority) Touch() { f.touches++ }

func (f *fakeAuthority) RequirePermission(action auth.Action) error {
	return f.denied
}

func (f *fakeAuthority) CurrentUsername() string { return f.username }

type fakeNaming struct {
	folder      string
	filename    string
	validateErr error
}

func (f *fakeNaming) Validate() error      { return f.validateErr }
func (f *fakeNaming) FullPath() string     { return filepath.Join(f.folder, f.filename) }
func (f *fakeNaming) OutputFolder() string { return f.folder }

type memRunStore struct {
	runs []storage.Run
}

func (m *memRunStore) Add(ctx context.Context, run storage.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRunStore) List(ctx context.Context, limit int) ([]storage.Run, error) {
	return m.runs, nil
}

func (m *memRunStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type captureListener struct {
	events.Nop

	started []string
	stopped []string
	faulted []error
	counts  []uint64
}

func (c *captureListener) LoggingStarted(path string)              { c.started = append(c.started, path) }
func (c *captureListener) LoggingStopped(count uint64, reason string) { c.stopped = append(c.stopped, reason) }
func (c *captureListener) LoggingFaulted(err error)                { c.faulted = append(c.faulted, err) }
func (c *captureListener) RecordCount(n uint64)                    { c.counts = append(c.counts, n) }

// failingSink accepts writes until armed, then fails every write.
type failingSink struct {
	file *os.File
	fail bool
}

func (s *failingSink) Write(p []byte) (int, error) {
	if s.fail {
		return 0, errors.New("disk full")
	}
	return s.file.Write(p)
}

func (s *failingSink) Sync() error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.file.Sync()
}

func (s *failingSink) Close() error { return s.file.Close() }

type fixture struct {
	controller *Controller
	authority  *fakeAuthority
	naming     *fakeNaming
	runs       *memRunStore
	listener   *captureListener
	clock      *auth.TestClock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	authority := &fakeAuthority{username: "tech"}
	naming := &fakeNaming{folder: t.TempDir(), filename: "CRB1Y1E01S1T1.csv"}
	runs := &memRunStore{}
	listener := &captureListener{}
	clock := &auth.TestClock{CurrentTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	if cfg.Clock == nil {
		cfg.Clock = clock
	}
	if cfg.ConfirmOverwrite == nil {
		cfg.ConfirmOverwrite = func(string) bool { return true }
	}

	c := New(authority, naming, runs, cfg, listener, zerolog.Nop())
	return &fixture{
		controller: c,
		authority:  authority,
		naming:     naming,
		runs:       runs,
		listener:   listener,
		clock:      clock,
	}
}

func readRows(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func TestStartDeniedWithoutRecordPermission(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.authority.denied = &auth.PermissionError{Action: auth.ActionRecord, Role: auth.RoleGuest}
	fx.controller.ConnectionChanged(true)

	err := fx.controller.Start(context.Background())
	var permErr *auth.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if fx.controller.State() != StateIdle {
		t.Error("expected controller to stay idle")
	}
	if fx.authority.touches != 1 {
		t.Errorf("expected activity touch before the permission check, got %d", fx.authority.touches)
	}
}

func TestStartRequiresDeviceLink(t *testing.T) {
	fx := newFixture(t, Config{})

	err := fx.controller.Start(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError when disconnected, got %v", err)
	}
}

func TestStartRequiresValidNaming(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)
	fx.naming.validateErr = errors.New("year must not be empty")

	if err := fx.controller.Start(context.Background()); err == nil {
		t.Fatal("expected naming validation failure")
	}
	if fx.controller.State() != StateIdle {
		t.Error("expected controller to stay idle")
	}
}

func TestStartDeclinedOverwriteLeavesFileIntact(t *testing.T) {
	fx := newFixture(t, Config{ConfirmOverwrite: func(string) bool { return false }})
	fx.controller.ConnectionChanged(true)

	path := fx.naming.FullPath()
	if err := os.WriteFile(path, []byte("precious\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := fx.controller.Start(context.Background()); !errors.Is(err, ErrOverwriteDeclined) {
		t.Fatalf("expected ErrOverwriteDeclined, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "precious\n" {
		t.Errorf("expected existing file untouched, got %q, %v", data, err)
	}
}

func TestStartWhileActiveFails(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := fx.controller.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while active")
	}
}

func TestRecordingWritesHeaderAndRows(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fx.controller.OnMessage("1.5,2.5", true)
	fx.clock.Advance(time.Second)
	fx.controller.OnMessage("3.5,4.5", true)
	fx.controller.OnMessage("READY", false)

	count := fx.controller.Stop()
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}

	rows := readRows(t, fx.naming.FullPath())
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d rows", len(rows))
	}
	if rows[0] != "timestamp,data" {
		t.Errorf("expected CSV header, got %q", rows[0])
	}
	if rows[1] != "2026-03-14 09:00:00.000,1.5,2.5" {
		t.Errorf("unexpected first row %q", rows[1])
	}
	if rows[2] != "2026-03-14 09:00:01.000,3.5,4.5" {
		t.Errorf("unexpected second row %q", rows[2])
	}
	if !strings.HasSuffix(rows[3], ",READY") {
		t.Errorf("expected non-numeric message recorded verbatim, got %q", rows[3])
	}

	if len(fx.listener.counts) != 3 || fx.listener.counts[2] != 3 {
		t.Errorf("expected record count notifications 1..3, got %v", fx.listener.counts)
	}
	if len(fx.listener.stopped) != 1 || fx.listener.stopped[0] != ReasonStopped {
		t.Errorf("expected one %q stop notification, got %v", ReasonStopped, fx.listener.stopped)
	}
}

func TestMessagesIgnoredWhileIdle(t *testing.T) {
	fx := newFixture(t, Config{})

	fx.controller.OnMessage("1,2", true)
	if fx.controller.RecordCount() != 0 {
		t.Error("expected no records while idle")
	}
}

func TestWriteFailureFaultsSession(t *testing.T) {
	sink := &failingSink{}
	fx := newFixture(t, Config{
		OpenSink: func(path string) (Sink, error) {
			file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return nil, err
			}
			sink.file = file
			return sink, nil
		},
	})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.controller.OnMessage("1,2", true)

	sink.fail = true
	fx.controller.OnMessage("3,4", true)

	if fx.controller.State() != StateIdle {
		t.Errorf("expected controller back in idle after fault, got %v", fx.controller.State())
	}
	if fx.controller.RecordCount() != 1 {
		t.Errorf("expected count unchanged by the failed row, got %d", fx.controller.RecordCount())
	}

	if len(fx.listener.faulted) != 1 {
		t.Fatalf("expected one fault notification, got %d", len(fx.listener.faulted))
	}
	var perr *PersistenceError
	if !errors.As(fx.listener.faulted[0], &perr) {
		t.Errorf("expected PersistenceError, got %v", fx.listener.faulted[0])
	}

	if len(fx.runs.runs) != 1 || fx.runs.runs[0].Reason != ReasonFault {
		t.Errorf("expected fault run recorded, got %+v", fx.runs.runs)
	}
}

func TestConnectionLossForcesStop(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.controller.OnMessage("1,2", true)

	fx.controller.ConnectionChanged(false)

	if fx.controller.State() != StateIdle {
		t.Errorf("expected idle after link loss, got %v", fx.controller.State())
	}
	if len(fx.listener.stopped) != 1 || fx.listener.stopped[0] != ReasonConnectionLost {
		t.Errorf("expected %q stop reason, got %v", ReasonConnectionLost, fx.listener.stopped)
	}
	if len(fx.runs.runs) != 1 || fx.runs.runs[0].Reason != ReasonConnectionLost {
		t.Errorf("expected connection-loss run recorded, got %+v", fx.runs.runs)
	}
}

func TestShutdownClosesActiveSession(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.controller.OnMessage("1,2", true)
	fx.controller.Shutdown()

	if fx.controller.State() != StateIdle {
		t.Errorf("expected idle after shutdown, got %v", fx.controller.State())
	}
	rows := readRows(t, fx.naming.FullPath())
	if len(rows) != 2 {
		t.Errorf("expected flushed header and row, got %d rows", len(rows))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.controller.OnMessage("1,2", true)

	if count := fx.controller.Stop(); count != 1 {
		t.Fatalf("Stop() = %d, want 1", count)
	}
	if count := fx.controller.Stop(); count != 1 {
		t.Errorf("second Stop() = %d, want the final count again", count)
	}
	if len(fx.listener.stopped) != 1 {
		t.Errorf("expected a single stop notification, got %d", len(fx.listener.stopped))
	}
}

func TestRunHistoryCapturesSession(t *testing.T) {
	fx := newFixture(t, Config{})
	fx.controller.ConnectionChanged(true)

	if err := fx.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.controller.OnMessage("1,2", true)
	fx.clock.Advance(time.Minute)
	fx.controller.Stop()

	if len(fx.runs.runs) != 1 {
		t.Fatalf("expected 1 run recorded, got %d", len(fx.runs.runs))
	}
	run := fx.runs.runs[0]
	if run.Username != "tech" || run.Records != 1 || run.Reason != ReasonStopped {
		t.Errorf("unexpected run %+v", run)
	}
	if !run.StoppedAt.After(run.StartedAt) {
		t.Errorf("expected StoppedAt after StartedAt, got %v / %v", run.StartedAt, run.StoppedAt)
	}
}
