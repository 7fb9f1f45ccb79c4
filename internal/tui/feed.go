package tui

import (
	"sync"

	"beatsense/internal/transport"
)

// Feed hands pipeline messages to the monitor without ever blocking the
// pipeline. When the UI falls behind, the newest message is dropped.
type Feed struct {
	ch        chan transport.Message
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewFeed returns a feed buffering up to size messages.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 64
	}
	return &Feed{ch: make(chan transport.Message, size)}
}

// Publish queues m. It is safe to pass as pipeline.Options.OnMessage.
func (f *Feed) Publish(m transport.Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- m:
	default:
	}
}

// Close ends the feed; the monitor shows the source as finished.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.ch)
		f.mu.Unlock()
	})
}

// C is the receive side.
func (f *Feed) C() <-chan transport.Message { return f.ch }
