// Package events carries state-change notifications from the acquisition
// core to the UI shell. The core never renders anything itself; listeners
// consume these callbacks for display only.
package events

import "sync"

// Listener receives state-change notifications from the core.
type Listener interface {
	RoleChanged(username, role string)
	SessionExpired(username string)
	LoggingStarted(path string)
	LoggingStopped(records uint64, reason string)
	LoggingFaulted(err error)
	RecordCount(n uint64)
	ConnectionChanged(connected bool)
}

// Fanout delivers every notification to all registered listeners, in
// registration order.
type Fanout struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewFanout creates an empty fanout.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Register adds a listener. Listeners must be registered before the
// acquisition pipeline starts delivering.
func (f *Fanout) Register(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *Fanout) each(fn func(Listener)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.listeners {
		fn(l)
	}
}

func (f *Fanout) RoleChanged(username, role string) {
	f.each(func(l Listener) { l.RoleChanged(username, role) })
}

func (f *Fanout) SessionExpired(username string) {
	f.each(func(l Listener) { l.SessionExpired(username) })
}

func (f *Fanout) LoggingStarted(path string) {
	f.each(func(l Listener) { l.LoggingStarted(path) })
}

func (f *Fanout) LoggingStopped(records uint64, reason string) {
	f.each(func(l Listener) { l.LoggingStopped(records, reason) })
}

func (f *Fanout) LoggingFaulted(err error) {
	f.each(func(l Listener) { l.LoggingFaulted(err) })
}

func (f *Fanout) RecordCount(n uint64) {
	f.each(func(l Listener) { l.RecordCount(n) })
}

func (f *Fanout) ConnectionChanged(connected bool) {
	f.each(func(l Listener) { l.ConnectionChanged(connected) })
}

// Nop is a Listener that ignores every notification. Embed it to implement
// only the callbacks a listener cares about.
type Nop struct{}

func (Nop) RoleChanged(string, string)     {}
func (Nop) SessionExpired(string)          {}
func (Nop) LoggingStarted(string)          {}
func (Nop) LoggingStopped(uint64, string)  {}
func (Nop) LoggingFaulted(error)           {}
func (Nop) RecordCount(uint64)             {}
func (Nop) ConnectionChanged(bool)         {}
