package chardev

import (
	"bytes"
	"testing"
)

// sink collects delivered bytes behind a capacity gate, standing in for a
// device receive fifo.
type sink struct {
	cap int
	got []byte
	evs []Event
}

func (s *sink) handlers() Handlers {
	return Handlers{
		CanRead: func() bool { return len(s.got) < s.cap },
		Read:    func(b byte) { s.got = append(s.got, b) },
		Event:   func(e Event) { s.evs = append(s.evs, e) },
	}
}

func TestPipeDelivery(t *testing.T) {
	var (
		p = NewPipe()
		s = &sink{cap: 4}
	)
	p.SetHandlers(s.handlers())
	p.Send([]byte("ab"))
	p.Send([]byte{0x00, 0xff})

	if want := []byte{'a', 'b', 0x00, 0xff}; !bytes.Equal(s.got, want) {
		t.Errorf("delivered %v, want %v", s.got, want)
	}
	if n := p.Pending(); n != 0 {
		t.Errorf("%d bytes pending, want 0", n)
	}
}

func TestPipeFlowControl(t *testing.T) {
	var (
		p = NewPipe()
		s = &sink{cap: 2}
	)
	p.SetHandlers(s.handlers())
	p.Send([]byte("abcde"))

	// The gate closes after two bytes; the rest is held, not dropped.
	if want := []byte("ab"); !bytes.Equal(s.got, want) {
		t.Fatalf("delivered %q, want %q", s.got, want)
	}
	if n := p.Pending(); n != 3 {
		t.Fatalf("%d bytes pending, want 3", n)
	}

	// Consuming a byte and accepting input delivers exactly one more,
	// in order.
	s.got = s.got[1:]
	p.AcceptInput()
	if want := []byte("bc"); !bytes.Equal(s.got, want) {
		t.Errorf("after accept: delivered %q, want %q", s.got, want)
	}
	if n := p.Pending(); n != 2 {
		t.Errorf("after accept: %d bytes pending, want 2", n)
	}
}

func TestPipeSendBeforeHandlers(t *testing.T) {
	var (
		p = NewPipe()
		s = &sink{cap: 8}
	)
	p.Send([]byte("early"))
	if len(s.got) != 0 {
		t.Fatalf("delivered %q before handlers registered", s.got)
	}

	// Registration drains what arrived beforehand; so does re-registration
	// after a backend change.
	p.SetHandlers(s.handlers())
	if want := []byte("early"); !bytes.Equal(s.got, want) {
		t.Errorf("delivered %q, want %q", s.got, want)
	}
}

func TestPipeOutput(t *testing.T) {
	p := NewPipe()
	for _, b := range []byte{0x5a, 'h', 'i'} {
		if _, err := p.Write([]byte{b}); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := p.Output(), []byte{0x5a, 'h', 'i'}; !bytes.Equal(got, want) {
		t.Errorf("Output() == %v, want %v", got, want)
	}
}

func TestPipeCloseEvent(t *testing.T) {
	var (
		p = NewPipe()
		s = &sink{cap: 1}
	)
	p.SetHandlers(s.handlers())
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if len(s.evs) != 1 || s.evs[0] != EventClosed {
		t.Errorf("events == %v, want [EventClosed]", s.evs)
	}
}
