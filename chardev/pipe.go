package chardev

import (
	"bytes"
	"sync"
)

// Pipe is an in-memory backend for tests and scripted runs. Bytes passed to
// Send appear at the device as input, subject to the device's flow control;
// device output accumulates and can be inspected with Output.
type Pipe struct {
	in inflow

	mu  sync.Mutex
	out bytes.Buffer
}

func NewPipe() *Pipe { return &Pipe{} }

func (p *Pipe) SetHandlers(h Handlers) { p.in.setHandlers(h) }

// Send queues data as input for the device.
func (p *Pipe) Send(data []byte) { p.in.offer(data) }

func (p *Pipe) AcceptInput() { p.in.accept() }

func (p *Pipe) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(data)
}

// Output returns a copy of everything the device has written so far.
func (p *Pipe) Output() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.out.Bytes()...)
}

// Pending reports how many input bytes are held back by flow control.
func (p *Pipe) Pending() int {
	p.in.mu.Lock()
	defer p.in.mu.Unlock()
	return len(p.in.pending)
}

func (p *Pipe) Close() error {
	p.in.event(EventClosed)
	return nil
}
