// Package readings keeps a bounded in-memory window of recent numeric
// readings from the device, independent of whether logging is active.
package readings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/endolog/internal/auth"
)

// Reading is one parsed numeric tuple with its arrival time.
type Reading struct {
	At     time.Time
	Values []float64
	Raw    string
}

// Buffer retains the most recent numeric readings in arrival order. Once the
// capacity is reached, the oldest reading is evicted. Non-numeric messages
// are ignored.
type Buffer struct {
	separator string
	clock     auth.Clock
	logger    zerolog.Logger

	mu    sync.Mutex
	seq   uint64
	cache *lru.Cache[uint64, Reading]
}

// NewBuffer creates a buffer holding at most size readings.
func NewBuffer(size int, separator string, clock auth.Clock, logger zerolog.Logger) (*Buffer, error) {
	cache, err := lru.New[uint64, Reading](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create readings buffer: %w", err)
	}
	if clock == nil {
		clock = auth.RealClock{}
	}

	return &Buffer{
		separator: separator,
		clock:     clock,
		logger:    logger.With().Str("component", "readings").Logger(),
		cache:     cache,
	}, nil
}

// OnMessage ingests a framed message. Only numeric tuples are retained.
func (b *Buffer) OnMessage(message string, isNumericTuple bool) {
	if !isNumericTuple {
		return
	}

	values := parseValues(message, b.separator)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.cache.Add(b.seq, Reading{
		At:     b.clock.Now(),
		Values: values,
		Raw:    message,
	})
}

// ConnectionChanged is part of the framer subscriber contract. Readings
// survive a link drop so the last values stay visible.
func (b *Buffer) ConnectionChanged(connected bool) {
	if !connected {
		b.logger.Debug().Msg("Link down, retaining buffered readings")
	}
}

// Recent returns up to n readings, newest first.
func (b *Buffer) Recent(n int) []Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := b.cache.Keys()
	if n > len(keys) {
		n = len(keys)
	}

	out := make([]Reading, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if reading, ok := b.cache.Peek(keys[i]); ok {
			out = append(out, reading)
		}
	}
	return out
}

// Latest returns the newest reading, if any.
func (b *Buffer) Latest() (Reading, bool) {
	recent := b.Recent(1)
	if len(recent) == 0 {
		return Reading{}, false
	}
	return recent[0], true
}

// Len returns the number of buffered readings.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}

// parseValues extracts the float fields of a tuple, skipping any field that
// does not parse.
func parseValues(message, separator string) []float64 {
	fields := strings.Split(message, separator)
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		if v, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
			values = append(values, v)
		}
	}
	return values
}
