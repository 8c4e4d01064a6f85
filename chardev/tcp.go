package chardev

import (
	"errors"
	"log"
	"net"
	"sync"
)

// TCP serves the device's serial port on a network listener, one connection
// at a time, the way a serial console server would. Connect and disconnect
// are reported to the device as events. Output written while no client is
// connected is discarded.
type TCP struct {
	in  inflow
	lis net.Listener

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// ListenTCP starts a backend listening on addr (for example "localhost:5555").
func ListenTCP(addr string) (*TCP, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &TCP{lis: lis}
	go t.serve()
	return t, nil
}

// Addr returns the listener's address.
func (t *TCP) Addr() net.Addr { return t.lis.Addr() }

func (t *TCP) serve() {
	for {
		conn, err := t.lis.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				log.Printf("chardev: accept: %v", err)
			}
			return
		}
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.in.event(EventOpened)

		var b [512]byte
		for {
			n, err := conn.Read(b[:])
			if n > 0 {
				t.in.offer(b[:n])
			}
			if err != nil {
				break
			}
		}

		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		conn.Close()
		t.in.event(EventClosed)
	}
}

func (t *TCP) SetHandlers(h Handlers) { t.in.setHandlers(h) }

func (t *TCP) AcceptInput() { t.in.accept() }

func (t *TCP) Write(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return len(p), nil
	}
	return conn.Write(p)
}

func (t *TCP) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.mu.Unlock()
	err := t.lis.Close()
	if conn != nil {
		if cerr := conn.Close(); err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	return err
}
