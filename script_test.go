package main

import (
	"strings"
	"testing"
)

func discardf(format string, args ...any) {}

func newTestMachine(t *testing.T) *machine {
	t.Helper()
	be, host, err := newBackend("pipe", "")
	if err != nil {
		t.Fatal(err)
	}
	m, err := newMachine(defaultBase, be, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.host = host
	return m
}

func TestParseScript(t *testing.T) {
	const src = `
# enable the receive interrupt, feed a byte, check the line
w ie 0x2
in 0x41 0x42
irq 1
expect 0x41   # trailing comments work too
rx
drain
tx 90
in "hi there"
wait 10ms
r div
`
	sc, err := parseScript("test", strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.steps) != 10 {
		t.Fatalf("parsed %d steps, want 10", len(sc.steps))
	}
	if st := sc.steps[1]; string(st.data) != "AB" {
		t.Errorf(`step "in 0x41 0x42" data == %q`, st.data)
	}
	if st := sc.steps[7]; string(st.data) != "hi there" {
		t.Errorf("quoted in step data == %q", st.data)
	}
	if st := sc.steps[8]; st.dur.Milliseconds() != 10 {
		t.Errorf("wait step duration == %v", st.dur)
	}
}

func TestParseScriptErrors(t *testing.T) {
	for _, c := range []struct {
		src  string
		want string
	}{
		{"boop", `unknown operation "boop"`},
		{"w lcr 1", `unknown register "lcr"`},
		{"w ie", "want 2 argument"},
		{"tx 0x100", `bad value "0x100"`},
		{"irq 2", `bad value "2"`},
		{"in", "want bytes"},
		{`in "unterminated`, "in:"},
		{"wait soon", "soon"},
	} {
		_, err := parseScript("test", strings.NewReader("# hi\n"+c.src))
		if err == nil {
			t.Errorf("%q: parsed, want error", c.src)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%q: error %q does not contain %q", c.src, err, c.want)
		}
		if !strings.Contains(err.Error(), "test:2") {
			t.Errorf("%q: error %q does not name line 2", c.src, err)
		}
	}
}

func TestScriptRun(t *testing.T) {
	const src = `
w ie 0x2
irq 0
in "AB"
irq 1
expect 0x41
expect 0x42
irq 0
rx            # empty now; rx logs the sentinel but does not fail
tx 0x5a
w div 0x8a
r div
`
	sc, err := parseScript("test", strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	m := newTestMachine(t)
	var lines []string
	if err := sc.run(m, func(format string, args ...any) {
		lines = append(lines, strings.TrimSpace(strings.ReplaceAll(format, "%", "")))
	}); err != nil {
		t.Fatal(err)
	}
	if got := m.host.Output(); string(got) != "\x5a" {
		t.Errorf("backend output == %q, want %q", got, "\x5a")
	}
	if s := m.uart.Snapshot(); s.Div != 0x8a {
		t.Errorf("div == %#x, want 0x8a", s.Div)
	}
	if len(lines) != 11 {
		t.Errorf("logged %d steps, want 11", len(lines))
	}
}

func TestScriptRunFailures(t *testing.T) {
	for _, c := range []struct {
		src  string
		want string
	}{
		{"expect 0x41", "fifo empty"},
		{"in 0x41\nexpect 0x42", "got 0x41"},
		{"irq 1", "line is false"},
		{"w ie 2\nin 1\nw ie 0\nirq 1", "line is false"},
	} {
		sc, err := parseScript("test", strings.NewReader(c.src))
		if err != nil {
			t.Fatal(err)
		}
		err = sc.run(newTestMachine(t), discardf)
		if err == nil {
			t.Errorf("%q: ran clean, want error", c.src)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%q: error %q does not contain %q", c.src, err, c.want)
		}
	}
}
