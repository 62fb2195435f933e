package device

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureStream struct {
	mu    sync.Mutex
	bytes []byte
	links []bool
}

func (c *captureStream) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes = append(c.bytes, p...)
}

func (c *captureStream) ConnectionChanged(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, connected)
}

func (c *captureStream) snapshot() (string, []bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.bytes), append([]bool(nil), c.links...)
}

func (c *captureStream) waitLinks(t *testing.T, want int) []bool {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, links := c.snapshot()
		if len(links) >= want {
			return links
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, links := c.snapshot()
	t.Fatalf("timed out waiting for %d link transitions, got %v", want, links)
	return nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestDetectScansPatterns(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "ttyUSB0"))
	touch(t, filepath.Join(dir, "ttyUSB1"))
	touch(t, filepath.Join(dir, "ttyS0"))

	m := NewManager(Config{
		PortPatterns: []string{filepath.Join(dir, "ttyUSB*")},
	}, &captureStream{}, zerolog.Nop())

	ports, err := m.Detect()
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []string{filepath.Join(dir, "ttyUSB0"), filepath.Join(dir, "ttyUSB1")}
	if len(ports) != 2 || ports[0] != want[0] || ports[1] != want[1] {
		t.Errorf("Detect() = %v, want %v", ports, want)
	}
}

func TestDetectExplicitPortSkipsPatterns(t *testing.T) {
	m := NewManager(Config{
		Port:         "/dev/ttyCUSTOM",
		PortPatterns: []string{"/nonexistent/tty*"},
	}, &captureStream{}, zerolog.Nop())

	ports, err := m.Detect()
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(ports) != 1 || ports[0] != "/dev/ttyCUSTOM" {
		t.Errorf("Detect() = %v, want the explicit port only", ports)
	}
}

func TestDetectNoMatches(t *testing.T) {
	m := NewManager(Config{
		PortPatterns: []string{filepath.Join(t.TempDir(), "tty*")},
	}, &captureStream{}, zerolog.Nop())

	if _, err := m.Detect(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}

func TestConnectPumpsBytesAndDisconnects(t *testing.T) {
	reader, writer := io.Pipe()
	stream := &captureStream{}
	m := NewManager(Config{
		ReadBuffer: 8,
		Open: func(path string) (io.ReadCloser, error) {
			return reader, nil
		},
	}, stream, zerolog.Nop())

	if err := m.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.Connected() || m.Port() != "/dev/ttyUSB0" {
		t.Fatalf("expected connected to /dev/ttyUSB0, got %v %q", m.Connected(), m.Port())
	}

	if _, err := writer.Write([]byte("1.5,2.5\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, _ := stream.snapshot()
		if data == "1.5,2.5\n" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for bytes, got %q", data)
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Disconnect()
	if m.Connected() {
		t.Error("expected disconnected after Disconnect")
	}

	links := stream.waitLinks(t, 2)
	if !links[0] || links[len(links)-1] {
		t.Errorf("expected connect then disconnect transitions, got %v", links)
	}
}

func TestLinkLossReportsDisconnect(t *testing.T) {
	reader, writer := io.Pipe()
	stream := &captureStream{}
	m := NewManager(Config{
		Open: func(path string) (io.ReadCloser, error) {
			return reader, nil
		},
	}, stream, zerolog.Nop())

	if err := m.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The device side goes away mid-session.
	_ = writer.CloseWithError(errors.New("device unplugged"))

	links := stream.waitLinks(t, 2)
	if links[len(links)-1] {
		t.Errorf("expected trailing disconnect transition, got %v", links)
	}
	if m.Connected() {
		t.Error("expected manager to settle disconnected")
	}
}

func TestConnectWhileConnectedFails(t *testing.T) {
	reader, _ := io.Pipe()
	m := NewManager(Config{
		Open: func(path string) (io.ReadCloser, error) {
			return reader, nil
		},
	}, &captureStream{}, zerolog.Nop())

	if err := m.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	if err := m.Connect("/dev/ttyUSB1"); err == nil {
		t.Error("expected second Connect to fail")
	}
}
