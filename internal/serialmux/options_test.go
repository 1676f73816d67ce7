package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want %d", got.BaudRate, DefaultBaudRate)
	}
	if got.DataBits != 8 || got.StopBits != 1 || got.Parity != "N" {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestPortOptions_NormalizeErrors(t *testing.T) {
	tests := []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	}
	for _, opts := range tests {
		if _, err := opts.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) expected error", opts)
		}
	}
}

func TestPortOptions_ParityAliases(t *testing.T) {
	tests := map[string]string{"none": "N", "Even": "E", " o ": "O"}
	for in, want := range tests {
		got, err := PortOptions{Parity: in}.Normalize()
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", in, err)
		}
		if got.Parity != want {
			t.Errorf("Parity(%q) = %q, want %q", in, got.Parity, want)
		}
	}
}

func TestSerialPortMode_Conversion(t *testing.T) {
	m := DefaultSerialPortMode().serialMode()
	if m.BaudRate != DefaultBaudRate || m.Parity != serial.NoParity || m.StopBits != serial.OneStopBit {
		t.Errorf("unexpected default mode: %+v", m)
	}
	m = (&SerialPortMode{BaudRate: 9600, DataBits: 7, Parity: OddParity, StopBits: TwoStopBits}).serialMode()
	if m.Parity != serial.OddParity || m.StopBits != serial.TwoStopBits || m.DataBits != 7 {
		t.Errorf("unexpected custom mode: %+v", m)
	}
}

func TestNewSerialMuxFromFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	mux, err := NewSerialMuxFromFactory(factory, "/dev/ttyRANGE0", PortOptions{Parity: "O", StopBits: 2})
	if err != nil {
		t.Fatalf("NewSerialMuxFromFactory failed: %v", err)
	}
	if mux == nil {
		t.Fatal("expected mux")
	}
	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyRANGE0" {
		t.Fatalf("unexpected open call: %+v", call)
	}
	if call.Mode.Parity != OddParity || call.Mode.StopBits != TwoStopBits || call.Mode.BaudRate != DefaultBaudRate {
		t.Errorf("unexpected mode: %+v", call.Mode)
	}

	if _, err := NewSerialMuxFromFactory(factory, "/dev/x", PortOptions{DataBits: 4}); err == nil {
		t.Error("expected error for invalid options")
	}
}
