package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shlevy/riscv-qemu/sifive"
)

// Driver scripts stand in for the guest software that would normally be
// poking the UART's registers. One operation per line, '#' comments:
//
//	w <reg> <val>   write a register (0x-hex or decimal values)
//	r <reg>         read a register and log the value
//	tx <byte>       shorthand for w txfifo
//	rx              read RXFIFO once
//	drain           read RXFIFO until the empty sentinel
//	expect <byte>   read RXFIFO; fail unless it returns that byte
//	irq <0|1>       fail unless the interrupt line has that level
//	in <bytes>      feed host bytes to the device (pipe backend only);
//	                either byte values ("in 0x41 0x42") or a quoted string
//	wait <dur>      sleep, giving asynchronous input time to land
type step struct {
	line int
	op   string
	reg  uint32
	val  uint32
	data []byte
	dur  time.Duration
}

type script struct {
	name  string
	steps []step
}

func parseScriptFile(path string) (*script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScript(path, f)
}

func parseScript(name string, r io.Reader) (*script, error) {
	sc := &script{name: name}
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		st, err := parseStep(fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", name, line, err)
		}
		st.line = line
		sc.steps = append(sc.steps, st)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sc, nil
}

func parseStep(fields []string) (step, error) {
	st := step{op: fields[0]}
	args := fields[1:]
	argc := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s: want %d argument(s), have %d", st.op, n, len(args))
		}
		return nil
	}
	switch st.op {
	case "w":
		if err := argc(2); err != nil {
			return st, err
		}
		off, ok := sifive.LookupReg(args[0])
		if !ok {
			return st, fmt.Errorf("unknown register %q", args[0])
		}
		v, err := parseVal(args[1], 32)
		if err != nil {
			return st, err
		}
		st.reg, st.val = off, v
	case "r":
		if err := argc(1); err != nil {
			return st, err
		}
		off, ok := sifive.LookupReg(args[0])
		if !ok {
			return st, fmt.Errorf("unknown register %q", args[0])
		}
		st.reg = off
	case "tx", "expect":
		if err := argc(1); err != nil {
			return st, err
		}
		v, err := parseVal(args[0], 8)
		if err != nil {
			return st, err
		}
		st.val = v
	case "rx", "drain":
		if err := argc(0); err != nil {
			return st, err
		}
	case "irq":
		if err := argc(1); err != nil {
			return st, err
		}
		v, err := parseVal(args[0], 1)
		if err != nil {
			return st, err
		}
		st.val = v
	case "in":
		if len(args) == 0 {
			return st, fmt.Errorf("in: want bytes or a quoted string")
		}
		if strings.HasPrefix(args[0], `"`) {
			s, err := strconv.Unquote(strings.Join(args, " "))
			if err != nil {
				return st, fmt.Errorf("in: %v", err)
			}
			st.data = []byte(s)
			break
		}
		for _, a := range args {
			v, err := parseVal(a, 8)
			if err != nil {
				return st, err
			}
			st.data = append(st.data, byte(v))
		}
	case "wait":
		if err := argc(1); err != nil {
			return st, err
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return st, err
		}
		st.dur = d
	default:
		return st, fmt.Errorf("unknown operation %q", st.op)
	}
	return st, nil
}

func parseVal(s string, bits int) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	return uint32(v), nil
}

// run executes the script against m, logging each access through logf.
// The first failing step aborts the run with a diagnostic naming its line.
func (sc *script) run(m *machine, logf func(format string, args ...any)) error {
	for _, st := range sc.steps {
		if err := m.exec(st, logf); err != nil {
			return fmt.Errorf("%s:%d: %v", sc.name, st.line, err)
		}
	}
	return nil
}

func (m *machine) exec(st step, logf func(format string, args ...any)) error {
	switch st.op {
	case "w":
		if err := m.as.Write32(m.base+st.reg, st.val); err != nil {
			return err
		}
		logf("w %-6s %#x", sifive.RegName(st.reg), st.val)
	case "r":
		v, err := m.as.Read32(m.base + st.reg)
		if err != nil {
			return err
		}
		logf("r %-6s -> %#x", sifive.RegName(st.reg), v)
	case "tx":
		if err := m.as.Write32(m.base+sifive.RegTxFifo, st.val); err != nil {
			return err
		}
		logf("tx %#.2x", st.val)
	case "rx":
		v, err := m.as.Read32(m.base + sifive.RegRxFifo)
		if err != nil {
			return err
		}
		if v == sifive.RxEmpty {
			logf("rx -> empty")
		} else {
			logf("rx -> %#.2x", v)
		}
	case "drain":
		var got []byte
		for {
			v, err := m.as.Read32(m.base + sifive.RegRxFifo)
			if err != nil {
				return err
			}
			if v == sifive.RxEmpty {
				break
			}
			got = append(got, byte(v))
		}
		logf("drain -> % x", got)
	case "expect":
		v, err := m.as.Read32(m.base + sifive.RegRxFifo)
		if err != nil {
			return err
		}
		if v == sifive.RxEmpty {
			return fmt.Errorf("expect %#.2x: fifo empty", st.val)
		}
		if v != st.val {
			return fmt.Errorf("expect %#.2x: got %#.2x", st.val, v)
		}
		logf("expect %#.2x ok", st.val)
	case "irq":
		want := st.val != 0
		if got := m.pin.Level(); got != want {
			return fmt.Errorf("irq: line is %v, want %v", got, want)
		}
		logf("irq %d ok", st.val)
	case "in":
		if err := m.send(st.data); err != nil {
			return err
		}
		logf("in % x", st.data)
	case "wait":
		time.Sleep(st.dur)
		logf("wait %v", st.dur)
	}
	return nil
}
