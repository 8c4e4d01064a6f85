package bus

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// wordDevice is a Device backed by a map of word offsets.
type wordDevice map[uint32]uint32

func (d wordDevice) Read32(off uint32) (uint32, error) {
	return d[off], nil
}

func (d wordDevice) Write32(off, val uint32) error {
	d[off] = val
	return nil
}

func TestAddressSpaceDecode(t *testing.T) {
	var (
		as AddressSpace
		a  = wordDevice{}
		b  = wordDevice{}
	)
	if err := as.Map(0x1000, 0x20, a); err != nil {
		t.Fatal(err)
	}
	if err := as.Map(0x2000, 0x100, b); err != nil {
		t.Fatal(err)
	}

	if err := as.Write32(0x1018, 0xdead); err != nil {
		t.Fatal(err)
	}
	if err := as.Write32(0x2004, 0xbeef); err != nil {
		t.Fatal(err)
	}
	if g, w := a[0x18], uint32(0xdead); g != w {
		t.Errorf("a[0x18] == %#x, want %#x", g, w)
	}
	if g, w := b[0x04], uint32(0xbeef); g != w {
		t.Errorf("b[0x04] == %#x, want %#x", g, w)
	}
	got, err := as.Read32(0x1018)
	if err != nil {
		t.Fatal(err)
	}
	if want := uint32(0xdead); got != want {
		t.Errorf("Read32(0x1018) == %#x, want %#x", got, want)
	}
}

func TestAddressSpaceOverlap(t *testing.T) {
	var as AddressSpace
	if err := as.Map(0x1000, 0x20, wordDevice{}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		base, size uint32
	}{
		{0x1000, 0x20},
		{0x101c, 0x4},
		{0x0ffc, 0x8},
		{0x0800, 0x1000},
	} {
		if err := as.Map(c.base, c.size, wordDevice{}); err == nil {
			t.Errorf("Map(%#x, %#x) succeeded, want overlap error", c.base, c.size)
		}
	}
	// Adjacent windows are fine.
	if err := as.Map(0x1020, 0x20, wordDevice{}); err != nil {
		t.Errorf("Map(0x1020, 0x20): %v", err)
	}
}

func TestAddressSpaceUnmapped(t *testing.T) {
	var as AddressSpace
	if err := as.Map(0x1000, 0x20, wordDevice{}); err != nil {
		t.Fatal(err)
	}

	_, err := as.Read32(0x1020)
	var de DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Read32(0x1020) error %v, want DecodeError", err)
	}
	if de.Addr != 0x1020 || de.Write {
		t.Errorf("DecodeError == %+v, want read at 0x1020", de)
	}

	err = as.Write32(0x0ffc, 0x55)
	if !errors.As(err, &de) {
		t.Fatalf("Write32(0x0ffc) error %v, want DecodeError", err)
	}
	if de.Addr != 0x0ffc || !de.Write || de.Val != 0x55 {
		t.Errorf("DecodeError == %+v, want write of 0x55 at 0x0ffc", de)
	}
	for _, want := range []string{fmt.Sprintf("%#x", uint32(0x0ffc)), "0x55"} {
		if s := de.Error(); !strings.Contains(s, want) {
			t.Errorf("DecodeError %q does not mention %s", s, want)
		}
	}
}

func TestPinTransitions(t *testing.T) {
	var got []bool
	p := NewPin(func(level bool) { got = append(got, level) })

	if p.Level() {
		t.Error("new pin is asserted")
	}
	p.Assert()
	p.Assert() // re-applied level must not toggle
	if !p.Level() {
		t.Error("pin not asserted after Assert")
	}
	p.Deassert()
	p.Deassert()
	p.Assert()

	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("change callback fired %d times, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d == %v, want %v", i, got[i], want[i])
		}
	}
}
