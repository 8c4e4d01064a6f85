// Package bus models the memory and interrupt fabric of an emulated
// machine: an AddressSpace that routes word-sized MMIO accesses to the
// devices mapped into it, and the level-triggered interrupt lines those
// devices drive.
package bus

import "fmt"

// Device is a peripheral mapped into an AddressSpace. Offsets are relative
// to the device's window. Accesses are always four bytes wide and four-byte
// aligned; narrower accesses are a caller bug and have no representation
// here.
type Device interface {
	Read32(off uint32) (uint32, error)
	Write32(off, val uint32) error
}

// DecodeError reports an access to an address that no mapped window covers.
// It signals a misbehaving caller rather than a device condition, so hosts
// treat it as fatal.
type DecodeError struct {
	Addr  uint32
	Write bool
	Val   uint32
}

func (e DecodeError) Error() string {
	if e.Write {
		return fmt.Sprintf("bus: bad write: addr=%#x v=%#x", e.Addr, e.Val)
	}
	return fmt.Sprintf("bus: bad read: addr=%#x", e.Addr)
}

type window struct {
	base, size uint32
	dev        Device
}

// AddressSpace routes reads and writes to the devices mapped into it.
// The zero value is an empty address space ready for use.
type AddressSpace struct {
	windows []window
}

// Map registers dev over the addresses [base, base+size).
// Overlapping an existing window is an error.
func (as *AddressSpace) Map(base, size uint32, dev Device) error {
	for _, w := range as.windows {
		if base < w.base+w.size && w.base < base+size {
			return fmt.Errorf("bus: window %#x+%#x overlaps %#x+%#x",
				base, size, w.base, w.size)
		}
	}
	as.windows = append(as.windows, window{base, size, dev})
	return nil
}

func (as *AddressSpace) find(addr uint32) *window {
	for i := range as.windows {
		w := &as.windows[i]
		if addr >= w.base && addr < w.base+w.size {
			return w
		}
	}
	return nil
}

// Read32 reads the word at addr from the owning device.
func (as *AddressSpace) Read32(addr uint32) (uint32, error) {
	w := as.find(addr)
	if w == nil {
		return 0, DecodeError{Addr: addr}
	}
	return w.dev.Read32(addr - w.base)
}

// Write32 writes the word val at addr through the owning device.
func (as *AddressSpace) Write32(addr, val uint32) error {
	w := as.find(addr)
	if w == nil {
		return DecodeError{Addr: addr, Write: true, Val: val}
	}
	return w.dev.Write32(addr-w.base, val)
}
