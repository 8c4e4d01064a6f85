package chardev

import (
	"io"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// Stdio connects the device to the host terminal. The terminal is switched
// to raw mode (echo and canonical processing off, 8-bit characters) for the
// lifetime of the backend and restored on Close, so every keystroke reaches
// the device as it is typed.
type Stdio struct {
	in      inflow
	restore *unix.Termios
}

// NewStdio puts the terminal in raw mode and starts reading stdin.
func NewStdio() (*Stdio, error) {
	fd := int(os.Stdin.Fd())
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	raw := *saved
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.INLCR | unix.ICRNL
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}

	s := &Stdio{restore: saved}
	go s.read()
	return s, nil
}

func (s *Stdio) read() {
	var b [1]byte
	for {
		n, err := os.Stdin.Read(b[:])
		if n > 0 {
			s.in.offer(b[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("chardev: stdin: %v", err)
			}
			s.in.event(EventClosed)
			return
		}
	}
}

func (s *Stdio) SetHandlers(h Handlers) { s.in.setHandlers(h) }

func (s *Stdio) AcceptInput() { s.in.accept() }

func (s *Stdio) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// Close restores the terminal state saved by NewStdio.
func (s *Stdio) Close() error {
	return unix.IoctlSetTermios(int(os.Stdin.Fd()), unix.TCSETS, s.restore)
}
