// Package transport carries pipeline messages to the visual layer and other
// observers. Every transport is fire-and-forget: a slow consumer loses
// messages, it never stalls the analysis tick.
package transport

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not block the caller for
// longer than a tick.
type Transport interface {
	Send(data any) error
	Close() error
}

// Multi fans each message out to several transports.
type Multi struct {
	mu         sync.Mutex
	transports []Transport
}

// NewMulti returns a fan-out over ts. Nil entries are skipped.
func NewMulti(ts ...Transport) *Multi {
	m := &Multi{}
	for _, t := range ts {
		if t != nil {
			m.transports = append(m.transports, t)
		}
	}
	return m
}

// Add appends t to the fan-out.
func (m *Multi) Add(t Transport) {
	if t == nil {
		return
	}
	m.mu.Lock()
	m.transports = append(m.transports, t)
	m.mu.Unlock()
}

// Len returns the number of transports.
func (m *Multi) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transports)
}

// Send delivers data to every transport and joins their errors. A failing
// transport does not prevent delivery to the others.
func (m *Multi) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, t := range m.transports {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, t := range m.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.transports = nil
	return errors.Join(errs...)
}

var _ Transport = (*Multi)(nil)
