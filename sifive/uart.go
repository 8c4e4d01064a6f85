// Package sifive models the UART found on the SiFive E300 and U500 series
// SOCs, as seen by software through its memory-mapped register window.
//
// Not modeled, matching the hardware features the register file stores but
// never acts on: the transmit fifo (writes transmit synchronously, one byte
// at a time), watermark-threshold interrupts for either direction, and
// divisor-paced timing.
package sifive

import (
	"fmt"
	"log"
	"sync"

	"github.com/shlevy/riscv-qemu/bus"
	"github.com/shlevy/riscv-qemu/chardev"
)

// Register offsets within the UART's window.
const (
	RegTxFifo = 0x00
	RegRxFifo = 0x04
	RegTxCtrl = 0x08
	RegRxCtrl = 0x0c
	RegIE     = 0x10
	RegIP     = 0x14
	RegDiv    = 0x18

	// WindowSize is the span of the register window, rounded up past DIV.
	WindowSize = 0x20
)

// Interrupt enable and pending bits. Only the receive watermark is active;
// the transmit watermark enable is stored but never raises the line.
const (
	IETxWatermark = 0x1
	IERxWatermark = 0x2

	IPRxWatermark = 0x2
)

// RxEmpty is returned by a RXFIFO read when no data is buffered.
const RxEmpty = 0x80000000

// rxFifoDepth is the receive fifo capacity of the modeled hardware.
const rxFifoDepth = 8

// AccessError reports a register access outside the UART's map. It signals
// a caller bug, not a data condition, so hosts treat it as fatal.
type AccessError struct {
	Offset uint32
	Write  bool
	Val    uint32
}

func (e AccessError) Error() string {
	if e.Write {
		return fmt.Sprintf("uart: bad write: addr=%#x v=%#x", e.Offset, e.Val)
	}
	return fmt.Sprintf("uart: bad read: addr=%#x", e.Offset)
}

// UART is the device state. All mutation goes through Read32/Write32 and
// the receive handlers registered with the backend; the mutex makes each
// access one atomic unit of buffer mutation plus interrupt recomputation,
// since register accesses and backend deliveries arrive on independent
// paths.
type UART struct {
	irq bus.Line
	be  chardev.Backend

	mu     sync.Mutex
	rx     [rxFifoDepth]byte // ring buffer: rxLen bytes starting at rxHead
	rxHead int
	rxLen  int
	ie     uint32
	txctrl uint32
	rxctrl uint32
	div    uint32
}

// New creates a UART, maps its register window at base in as, and attaches
// its receive handlers to be. The interrupt line stays deasserted until
// software enables the receive interrupt and data arrives.
func New(as *bus.AddressSpace, base uint32, be chardev.Backend, irq bus.Line) (*UART, error) {
	u := &UART{irq: irq, be: be}
	if err := as.Map(base, WindowSize, u); err != nil {
		return nil, err
	}
	u.attach()
	return u, nil
}

func (u *UART) attach() {
	u.be.SetHandlers(chardev.Handlers{
		CanRead: u.canReceive,
		Read:    u.receive,
		Event:   u.backendEvent,
	})
}

// BackendChanged re-registers the receive handlers so a backend that was
// swapped or reset observes the device's current flow-control state.
func (u *UART) BackendChanged() { u.attach() }

// Read32 implements bus.Device.
func (u *UART) Read32(off uint32) (uint32, error) {
	u.mu.Lock()
	switch off {
	case RegRxFifo:
		if u.rxLen == 0 {
			u.mu.Unlock()
			return RxEmpty, nil
		}
		b := u.rx[u.rxHead]
		u.rxHead = (u.rxHead + 1) % rxFifoDepth
		u.rxLen--
		u.updateIRQ()
		u.mu.Unlock()
		// The freed slot reopens the backend's flow-control gate.
		// Delivery may re-enter receive, so the lock is already released.
		u.be.AcceptInput()
		return uint32(b), nil
	case RegTxFifo:
		// Transmit-full is not modeled; the fifo always reports space.
		u.mu.Unlock()
		return 0, nil
	case RegIE:
		v := u.ie
		u.mu.Unlock()
		return v, nil
	case RegIP:
		var v uint32
		if u.rxLen > 0 {
			v = IPRxWatermark
		}
		u.mu.Unlock()
		return v, nil
	case RegTxCtrl:
		v := u.txctrl
		u.mu.Unlock()
		return v, nil
	case RegRxCtrl:
		v := u.rxctrl
		u.mu.Unlock()
		return v, nil
	case RegDiv:
		v := u.div
		u.mu.Unlock()
		return v, nil
	}
	u.mu.Unlock()
	return 0, AccessError{Offset: off}
}

// Write32 implements bus.Device.
func (u *UART) Write32(off, val uint32) error {
	switch off {
	case RegTxFifo:
		// Synchronous, unbuffered transmit: the low byte goes straight
		// to the backend. Failures are the backend's contract; the
		// device neither retries nor buffers.
		if _, err := u.be.Write([]byte{byte(val)}); err != nil {
			log.Printf("uart: tx: %v", err)
		}
		return nil
	case RegIE:
		u.mu.Lock()
		u.ie = val
		u.updateIRQ()
		u.mu.Unlock()
		return nil
	case RegTxCtrl:
		u.mu.Lock()
		u.txctrl = val
		u.mu.Unlock()
		return nil
	case RegRxCtrl:
		u.mu.Lock()
		u.rxctrl = val
		u.mu.Unlock()
		return nil
	case RegDiv:
		u.mu.Lock()
		u.div = val
		u.mu.Unlock()
		return nil
	}
	return AccessError{Offset: off, Write: true, Val: val}
}

// canReceive is the backend's sole admission check.
func (u *UART) canReceive() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rxLen < rxFifoDepth
}

// receive appends one inbound byte to the fifo. A byte arriving while the
// fifo is full is lost, as on real hardware under overrun.
func (u *UART) receive(b byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.rxLen == rxFifoDepth {
		log.Printf("uart: rx overrun: dropped %#.2x", b)
		return
	}
	u.rx[(u.rxHead+u.rxLen)%rxFifoDepth] = b
	u.rxLen++
	u.updateIRQ()
}

// backendEvent observes open/close notifications. They change no device
// state.
func (u *UART) backendEvent(chardev.Event) {}

// updateIRQ applies the level implied by current state: asserted exactly
// when the receive watermark interrupt is enabled and the fifo is
// non-empty. Idempotent. Callers hold u.mu.
func (u *UART) updateIRQ() {
	if u.ie&IERxWatermark != 0 && u.rxLen > 0 {
		u.irq.Assert()
	} else {
		u.irq.Deassert()
	}
}
