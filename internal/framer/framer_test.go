package framer

import (
	"testing"

	"github.com/rs/zerolog"
)

type captureSubscriber struct {
	messages []string
	tuples   []bool
	links    []bool
}

func (c *captureSubscriber) OnMessage(message string, isNumericTuple bool) {
	c.messages = append(c.messages, message)
	c.tuples = append(c.tuples, isNumericTuple)
}

func (c *captureSubscriber) ConnectionChanged(connected bool) {
	c.links = append(c.links, connected)
}

func newTestFramer(t *testing.T) (*Framer, *captureSubscriber) {
	t.Helper()

	f := New("\n", ",", zerolog.Nop())
	sub := &captureSubscriber{}
	f.Subscribe(sub)
	return f, sub
}

func TestFeedSplitAcrossBatches(t *testing.T) {
	f, sub := newTestFramer(t)

	// One message arrives in four separate byte batches.
	f.Feed([]byte("12"))
	f.Feed([]byte(".5,"))
	f.Feed([]byte("7.25"))
	if len(sub.messages) != 0 {
		t.Fatalf("expected no message before terminator, got %v", sub.messages)
	}

	f.Feed([]byte("\n"))
	if len(sub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sub.messages))
	}
	if sub.messages[0] != "12.5,7.25" {
		t.Errorf("expected message %q, got %q", "12.5,7.25", sub.messages[0])
	}
	if !sub.tuples[0] {
		t.Error("expected numeric tuple classification")
	}
}

func TestFeedMultipleMessagesInOneBatch(t *testing.T) {
	f, sub := newTestFramer(t)

	f.Feed([]byte("1,2\n3,4\npartial"))
	if len(sub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sub.messages))
	}
	if sub.messages[0] != "1,2" || sub.messages[1] != "3,4" {
		t.Errorf("expected ordered delivery, got %v", sub.messages)
	}

	// The partial tail completes later.
	f.Feed([]byte(",5\n"))
	if len(sub.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sub.messages))
	}
	if sub.messages[2] != "partial,5" {
		t.Errorf("expected %q, got %q", "partial,5", sub.messages[2])
	}
}

func TestFeedTrimsAndSkipsBlankLines(t *testing.T) {
	f, sub := newTestFramer(t)

	f.Feed([]byte("  1.0,2.0  \r\n\n\n9,9\n"))
	if len(sub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", sub.messages)
	}
	if sub.messages[0] != "1.0,2.0" {
		t.Errorf("expected trimmed message, got %q", sub.messages[0])
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"1.5,2.5", true},
		{"1,2,3", true},
		{"12,abc,34", true},
		{"abc,1.5", false},
		{"hello world", false},
		{"READY", false},
		{"-3.5, 7", true},
		{"1e3,2e-2", true},
	}

	f, _ := newTestFramer(t)
	for _, tt := range tests {
		if got := f.classify(tt.message); got != tt.want {
			t.Errorf("classify(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestConnectionChangedBroadcastAndBufferDrop(t *testing.T) {
	f, sub := newTestFramer(t)

	f.Feed([]byte("dangling"))
	f.ConnectionChanged(false)
	f.ConnectionChanged(true)

	if len(sub.links) != 2 || sub.links[0] || !sub.links[1] {
		t.Fatalf("expected [false true] transitions, got %v", sub.links)
	}

	// The pre-disconnect partial must not leak into the next line.
	f.Feed([]byte("1,2\n"))
	if len(sub.messages) != 1 || sub.messages[0] != "1,2" {
		t.Fatalf("expected clean buffer after disconnect, got %v", sub.messages)
	}
}

func TestFanoutOrderAcrossSubscribers(t *testing.T) {
	f := New("\n", ",", zerolog.Nop())
	first := &captureSubscriber{}
	second := &captureSubscriber{}
	f.Subscribe(first)
	f.Subscribe(second)

	f.Feed([]byte("1,2\n3,4\n"))

	for _, sub := range []*captureSubscriber{first, second} {
		if len(sub.messages) != 2 {
			t.Fatalf("expected both subscribers to receive 2 messages, got %d", len(sub.messages))
		}
		if sub.messages[0] != "1,2" || sub.messages[1] != "3,4" {
			t.Errorf("expected ordered delivery, got %v", sub.messages)
		}
	}
}
