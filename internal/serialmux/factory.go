package serialmux

import (
	"go.bug.st/serial"
)

// RealSerialPortFactory opens ports with go.bug.st/serial.
type RealSerialPortFactory struct{}

// NewRealSerialPortFactory returns a factory for hardware serial ports.
func NewRealSerialPortFactory() *RealSerialPortFactory {
	return &RealSerialPortFactory{}
}

// Open opens the port at path. A nil mode uses DefaultSerialPortMode.
func (RealSerialPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	if mode == nil {
		mode = DefaultSerialPortMode()
	}
	return serial.Open(path, mode.serialMode())
}

func (m *SerialPortMode) serialMode() *serial.Mode {
	out := &serial.Mode{BaudRate: m.BaudRate, DataBits: m.DataBits}
	switch m.Parity {
	case OddParity:
		out.Parity = serial.OddParity
	case EvenParity:
		out.Parity = serial.EvenParity
	default:
		out.Parity = serial.NoParity
	}
	if m.StopBits == TwoStopBits {
		out.StopBits = serial.TwoStopBits
	} else {
		out.StopBits = serial.OneStopBit
	}
	return out
}

// NewSerialMuxFromFactory opens path through factory and wraps it in a mux.
func NewSerialMuxFromFactory(factory SerialPortFactory, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	n, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &SerialPortMode{BaudRate: n.BaudRate, DataBits: n.DataBits, StopBits: OneStopBit}
	if n.StopBits == 2 {
		mode.StopBits = TwoStopBits
	}
	switch n.Parity {
	case "E":
		mode.Parity = EvenParity
	case "O":
		mode.Parity = OddParity
	}

	port, err := factory.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return NewSerialMux[SerialPorter](port), nil
}
