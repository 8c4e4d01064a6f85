// Command riscv-qemu models the memory-mapped UART of SiFive RISC-V SOCs
// and drives it from register-access scripts or an interactive monitor.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shlevy/riscv-qemu/bus"
	"github.com/shlevy/riscv-qemu/chardev"
	"github.com/shlevy/riscv-qemu/sifive"
)

// defaultBase is UART0 on the FE310.
const defaultBase = 0x10013000

func main() {
	log.SetPrefix("riscv-qemu: ")
	log.SetFlags(0)

	var (
		debugFlag   = flag.Bool("debug", false, "start the interactive monitor")
		devFlag     = flag.Bool("dev", false, "watch the driver script and replay it on every change (implies the monitor UI)")
		backendFlag = flag.String("backend", "pipe", "character backend: pipe, stdio, or tcp")
		listenFlag  = flag.String("listen", "localhost:5511", "listen address for the tcp backend")
		baseFlag    = flag.Uint("base", defaultBase, "bus address of the UART register window")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <script.uart>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -debug [flags] [script.uart]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 1 || (flag.NArg() == 0 && !*debugFlag) {
		flag.Usage()
		os.Exit(2)
	}
	base := uint32(*baseFlag)

	if *devFlag {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(2)
		}
		if err := devMode(flag.Arg(0), base); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *debugFlag {
		if err := debugMode(flag.Arg(0), base, *backendFlag, *listenFlag); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := run(flag.Arg(0), base, *backendFlag, *listenFlag); err != nil {
		log.Fatal(err)
	}
}

func run(scriptFile string, base uint32, backend, listen string) error {
	sc, err := parseScriptFile(scriptFile)
	if err != nil {
		return err
	}
	be, host, err := newBackend(backend, listen)
	if err != nil {
		return err
	}
	defer be.Close()

	m, err := newMachine(base, be, nil)
	if err != nil {
		return err
	}
	m.host = host
	if err := sc.run(m, log.Printf); err != nil {
		return err
	}
	if host != nil {
		os.Stdout.Write(host.Output())
	}
	return nil
}

// newBackend builds the requested backend. For a pipe it also returns the
// host side, through which script "in" steps inject input.
func newBackend(kind, listen string) (chardev.Backend, *chardev.Pipe, error) {
	switch kind {
	case "pipe":
		p := chardev.NewPipe()
		return p, p, nil
	case "stdio":
		s, err := chardev.NewStdio()
		return s, nil, err
	case "tcp":
		t, err := chardev.ListenTCP(listen)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("serial on %v", t.Addr())
		return t, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", kind)
}

// machine is the minimal host environment around the UART: one address
// space, one interrupt pin, one character backend.
type machine struct {
	as   bus.AddressSpace
	pin  *bus.Pin
	be   chardev.Backend
	host *chardev.Pipe // host side of a pipe backend, nil otherwise
	uart *sifive.UART
	base uint32
}

// newMachine maps a UART at base and wires it to be. onIRQ, if non-nil,
// observes interrupt line transitions.
func newMachine(base uint32, be chardev.Backend, onIRQ func(level bool)) (*machine, error) {
	m := &machine{be: be, base: base}
	m.pin = bus.NewPin(onIRQ)
	uart, err := sifive.New(&m.as, base, be, m.pin)
	if err != nil {
		return nil, err
	}
	m.uart = uart
	return m, nil
}

// send feeds host-side bytes to the device, for script "in" steps.
func (m *machine) send(data []byte) error {
	if m.host == nil {
		return fmt.Errorf("in: backend has no host side")
	}
	m.host.Send(data)
	return nil
}
