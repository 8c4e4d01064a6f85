package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/shlevy/riscv-qemu/chardev"
	"github.com/shlevy/riscv-qemu/sifive"
)

// monitor is the interactive bench UI: a log pane fed by the standard
// logger, a watch pane showing register and fifo state, a status bar for
// the interrupt line, and a command input that accepts the same operations
// driver scripts use, plus "reset" and "exit".
type monitor struct {
	get   func() *machine
	reset func()

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application
}

func newMonitor() *monitor {
	d := &monitor{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 24, 0, false).
		AddItem(d.log, 0, 1, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 1, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if cmd, arg, ok := strings.Cut(t, " "); ok {
			switch cmd {
			case "r", "w":
				for _, reg := range sifive.Registers {
					if strings.HasPrefix(reg.Name, arg) {
						entries = append(entries, cmd+" "+reg.Name)
					}
				}
			}
		}
		return
	})
	d.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			d.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := d.input.GetText()
		if cmd == "" {
			return
		}
		d.input.SetText("")
		switch cmd {
		case "exit":
			d.app.Stop()
			return
		case "reset":
			if d.reset != nil {
				d.reset()
			}
			return
		}
		st, err := parseStep(strings.Fields(cmd))
		if err != nil {
			log.Printf("%v", err)
			return
		}
		m := d.get()
		if m == nil {
			log.Print("no machine")
			return
		}
		if err := m.exec(st, log.Printf); err != nil {
			log.Printf("%v", err)
		}
		d.update()
	})
	return d
}

func (d *monitor) Run() error { return d.app.Run() }

// update redraws the watch and state panes. UI goroutine only; other
// goroutines use refresh.
func (d *monitor) update() {
	m := d.get()
	if m == nil {
		return
	}
	s := m.uart.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "ie     %08x\n", s.IE)
	fmt.Fprintf(&b, "ip     %08x\n", s.IP)
	fmt.Fprintf(&b, "txctrl %08x\n", s.TxCtrl)
	fmt.Fprintf(&b, "rxctrl %08x\n", s.RxCtrl)
	fmt.Fprintf(&b, "div    %08x\n", s.Div)
	fmt.Fprintf(&b, "rx    [% x]", s.Rx)
	d.watch.SetText(b.String())

	if m.pin.Level() {
		d.state.SetTextColor(tcell.ColorWhite)
		d.state.SetBackgroundColor(tcell.ColorDarkRed)
		d.state.SetText(fmt.Sprintf(" irq asserted  rx %d/8", len(s.Rx)))
	} else {
		d.state.SetTextColor(tcell.ColorBlack)
		d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		d.state.SetText(fmt.Sprintf(" irq low       rx %d/8", len(s.Rx)))
	}
}

// refresh schedules a pane update. Interrupt and delivery callbacks can
// fire on the UI goroutine itself (a command writing IE, say), where
// QueueUpdateDraw would block, so the queueing runs on a fresh goroutine.
func (d *monitor) refresh() { go d.app.QueueUpdateDraw(d.update) }

// notifyBackend wraps a Backend so the monitor hears about bytes reaching
// the device through it.
type notifyBackend struct {
	chardev.Backend
	notify func()
}

func (n *notifyBackend) SetHandlers(h chardev.Handlers) {
	if read := h.Read; read != nil {
		h.Read = func(b byte) {
			read(b)
			n.notify()
		}
	}
	n.Backend.SetHandlers(h)
}

// debugMode runs the monitor against a single machine. If scriptFile is
// non-empty the script runs once at startup and after each "reset".
func debugMode(scriptFile string, base uint32, backend, listen string) error {
	if backend == "stdio" {
		return fmt.Errorf("the stdio backend cannot share the terminal with the monitor")
	}
	var sc *script
	if scriptFile != "" {
		var err error
		sc, err = parseScriptFile(scriptFile)
		if err != nil {
			return err
		}
	}

	mon := newMonitor()
	var (
		mu  sync.Mutex
		cur *machine
	)
	mon.get = func() *machine {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	mon.reset = func() {
		mu.Lock()
		old := cur
		cur = nil
		mu.Unlock()
		if old != nil {
			old.be.Close()
		}
		be, host, err := newBackend(backend, listen)
		if err != nil {
			log.Printf("reset: %v", err)
			return
		}
		m, err := newMachine(base, &notifyBackend{Backend: be, notify: mon.refresh},
			func(bool) { mon.refresh() })
		if err != nil {
			log.Printf("reset: %v", err)
			be.Close()
			return
		}
		m.host = host
		mu.Lock()
		cur = m
		mu.Unlock()
		if sc != nil {
			go func() {
				if err := sc.run(m, log.Printf); err != nil {
					log.Printf("%v", err)
				}
				mon.refresh()
			}()
		}
		mon.refresh()
	}

	log.SetPrefix("")
	log.SetOutput(mon.log)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("riscv-qemu: ")
	}()

	mon.reset()
	err := mon.Run()
	if m := mon.get(); m != nil {
		m.be.Close()
	}
	return err
}
