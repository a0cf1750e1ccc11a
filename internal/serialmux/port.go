package serialmux

import (
	"io"
	"os"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// StdioPort adapts a reader/writer pair (usually the process stdin/stdout)
// into a SerialPorter so the operator console can run on a terminal.
type StdioPort struct {
	io.Reader
	io.Writer
}

// NewStdioPort returns a StdioPort reading from stdin and writing to stdout.
func NewStdioPort() *StdioPort {
	return &StdioPort{Reader: os.Stdin, Writer: os.Stdout}
}

// Close is a no-op; the process owns stdin and stdout.
func (p *StdioPort) Close() error { return nil }
