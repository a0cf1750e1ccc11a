package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is what the operator console and the sensor board both run
// at unless the robot config says otherwise.
const DefaultBaudRate = 115200

// PortOptions is the framing of one UART. The robot opens two: the operator
// console (operator_serial) and the sensor board (board_serial). A zero value
// means 115200 8N1 on either.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// parities maps every accepted spelling onto its one-letter form.
var parities = map[string]string{
	"":     "N",
	"N":    "N",
	"NONE": "N",
	"E":    "E",
	"EVEN": "E",
	"O":    "O",
	"ODD":  "O",
}

// serial.StopBits is an enum, not a count: OneStopBit is zero.
var serialStopBits = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

var serialParity = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// Normalize fills unset fields with 8N1 at DefaultBaudRate and rejects framing
// neither UART can be configured for.
func (o PortOptions) Normalize() (PortOptions, error) {
	out := o
	if out.BaudRate <= 0 {
		out.BaudRate = DefaultBaudRate
	}
	if out.DataBits == 0 {
		out.DataBits = 8
	}
	if out.StopBits == 0 {
		out.StopBits = 1
	}

	switch {
	case out.DataBits < 5 || out.DataBits > 8:
		return out, fmt.Errorf("invalid data bits %d: must be between 5 and 8", out.DataBits)
	case out.StopBits > 2 || out.StopBits < 1:
		return out, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", out.StopBits)
	}

	p, ok := parities[strings.ToUpper(strings.TrimSpace(out.Parity))]
	if !ok {
		return out, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	out.Parity = p
	return out, nil
}

// String renders the framing the way a terminal program would, e.g.
// "115200 8N1".
func (o PortOptions) String() string {
	n, err := o.Normalize()
	if err != nil {
		return "invalid framing"
	}
	return fmt.Sprintf("%d %d%s%d", n.BaudRate, n.DataBits, n.Parity, n.StopBits)
}

// SerialMode is the go.bug.st/serial mode NewRealSerialMux opens a port with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		StopBits: serialStopBits[n.StopBits],
		Parity:   serialParity[n.Parity],
	}, nil
}
