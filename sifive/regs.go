package sifive

// Registers lists the register window in offset order, with the names used
// by driver scripts and the monitor.
var Registers = []struct {
	Name   string
	Offset uint32
}{
	{"txfifo", RegTxFifo},
	{"rxfifo", RegRxFifo},
	{"txctrl", RegTxCtrl},
	{"rxctrl", RegRxCtrl},
	{"ie", RegIE},
	{"ip", RegIP},
	{"div", RegDiv},
}

// LookupReg resolves a register name to its window offset.
func LookupReg(name string) (off uint32, ok bool) {
	for _, r := range Registers {
		if r.Name == name {
			return r.Offset, true
		}
	}
	return 0, false
}

// RegName returns the name of the register at off, or "" if off is outside
// the map.
func RegName(off uint32) string {
	for _, r := range Registers {
		if r.Offset == off {
			return r.Name
		}
	}
	return ""
}

// Snapshot is a side-effect-free view of the device for monitors and tests:
// reading it pops nothing and recomputes nothing.
type Snapshot struct {
	IE     uint32
	IP     uint32
	TxCtrl uint32
	RxCtrl uint32
	Div    uint32
	Rx     []byte
}

// Snapshot reports current register and fifo state.
func (u *UART) Snapshot() Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	s := Snapshot{
		IE:     u.ie,
		TxCtrl: u.txctrl,
		RxCtrl: u.rxctrl,
		Div:    u.div,
		Rx:     make([]byte, u.rxLen),
	}
	if u.rxLen > 0 {
		s.IP = IPRxWatermark
	}
	for i := 0; i < u.rxLen; i++ {
		s.Rx[i] = u.rx[(u.rxHead+i)%rxFifoDepth]
	}
	return s
}
