// Package framer turns an arbitrary byte arrival stream into discrete
// terminated messages and fans them out to subscribers.
package framer

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/goodtune/endolog/internal/metrics"
	"github.com/rs/zerolog"
)

// Subscriber consumes framed messages and connection transitions.
// Deliveries happen synchronously on the byte-arrival goroutine, in exact
// arrival order.
type Subscriber interface {
	OnMessage(message string, isNumericTuple bool)
	ConnectionChanged(connected bool)
}

// Framer extracts terminator-delimited messages from byte batches. A message
// may arrive split across any number of batches; partial content persists in
// the buffer until its terminator shows up.
type Framer struct {
	terminator []byte
	separator  string
	logger     zerolog.Logger

	mu          sync.Mutex
	buf         bytes.Buffer
	subscribers []Subscriber
}

// New creates a framer for the given line terminator and field separator.
func New(terminator, separator string, logger zerolog.Logger) *Framer {
	return &Framer{
		terminator: []byte(terminator),
		separator:  separator,
		logger:     logger.With().Str("component", "framer").Logger(),
	}
}

// Subscribe registers a subscriber. Registration must happen before the
// byte pump starts.
func (f *Framer) Subscribe(s Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, s)
}

// Feed appends a batch of arrived bytes and emits every complete message it
// finishes, in order. Each message is emitted exactly once.
func (f *Framer) Feed(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf.Write(p)

	for {
		idx := bytes.Index(f.buf.Bytes(), f.terminator)
		if idx < 0 {
			return
		}

		line := string(f.buf.Bytes()[:idx])
		f.buf.Next(idx + len(f.terminator))

		message := strings.TrimSpace(line)
		if message == "" {
			continue
		}

		isTuple := f.classify(message)
		metrics.MessagesFramed.WithLabelValues(strconv.FormatBool(isTuple)).Inc()

		for _, s := range f.subscribers {
			s.OnMessage(message, isTuple)
		}
	}
}

// ConnectionChanged broadcasts a device link transition to subscribers. It
// is driven by the link owner, never derived from byte content. A closing
// link drops any unterminated partial content.
func (f *Framer) ConnectionChanged(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !connected {
		f.buf.Reset()
	}

	f.logger.Debug().Bool("connected", connected).Msg("Connection transition")
	for _, s := range f.subscribers {
		s.ConnectionChanged(connected)
	}
}

// classify reports whether a message is a numeric tuple: split on the
// separator, it must contain at least two fields that parse as floats.
func (f *Framer) classify(message string) bool {
	numeric := 0
	for _, field := range strings.Split(message, f.separator) {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
			numeric++
			if numeric >= 2 {
				return true
			}
		}
	}
	return false
}
