package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// NewRealSerialMux opens the UART at path with the given framing.
func NewRealSerialMux(path string, opts PortOptions, options ...Option) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s at %s: %w", path, opts, err)
	}

	return NewSerialMux[serial.Port](port, options...), nil
}
