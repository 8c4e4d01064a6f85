// Package chardev provides the character-stream backends a serial device
// exchanges bytes with: an in-memory pipe, the host terminal in raw mode,
// and a TCP listener. A device hands its Handlers to a Backend; the backend
// delivers inbound bytes through them, honoring the device's flow control.
package chardev

import "sync"

// Event is a backend lifecycle notification.
type Event int

const (
	// EventOpened reports that the backend's peer became available
	// (for example, a TCP client connected).
	EventOpened Event = iota
	// EventClosed reports that the peer went away.
	EventClosed
)

// Handlers is the receive-path capability a device registers with its
// backend. CanRead gates delivery: the backend consults it before every
// Read call and holds input back while it reports false, retrying when the
// device calls AcceptInput. Any field may be nil.
type Handlers struct {
	CanRead func() bool
	Read    func(b byte)
	Event   func(e Event)
}

// Backend is a character-stream endpoint.
type Backend interface {
	// SetHandlers registers the device's receive-path callbacks,
	// replacing any previous registration. A device must call this again
	// whenever the backend is swapped or reset underneath it.
	SetHandlers(h Handlers)

	// Write sends device output to the backend's peer. It does not
	// buffer on behalf of the device; failures follow the peer's own
	// contract.
	Write(p []byte) (int, error)

	// AcceptInput tells the backend the device can take more input,
	// reopening the flow-control gate after CanRead had reported false.
	AcceptInput()

	Close() error
}

// inflow carries inbound bytes through Handlers. Bytes that arrive while
// CanRead reports false are held and delivered once the device accepts
// input again, so the device never sees more than it agreed to take.
type inflow struct {
	mu      sync.Mutex
	h       Handlers
	pending []byte
}

func (f *inflow) setHandlers(h Handlers) {
	f.mu.Lock()
	f.h = h
	f.mu.Unlock()
	f.drain()
}

// offer queues p for delivery and delivers as much as the device allows.
func (f *inflow) offer(p []byte) {
	f.mu.Lock()
	f.pending = append(f.pending, p...)
	f.mu.Unlock()
	f.drain()
}

// accept retries delivery of held bytes.
func (f *inflow) accept() { f.drain() }

func (f *inflow) drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) > 0 {
		if f.h.CanRead == nil || f.h.Read == nil || !f.h.CanRead() {
			return
		}
		b := f.pending[0]
		f.pending = f.pending[1:]
		f.h.Read(b)
	}
}

func (f *inflow) event(e Event) {
	f.mu.Lock()
	fn := f.h.Event
	f.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}
