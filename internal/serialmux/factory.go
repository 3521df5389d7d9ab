package serialmux

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DataReadTimeout bounds a single read on the binary data port so a quiet
// sensor cannot block shutdown. On timeout the port returns (0, nil) and the
// frame reader polls again.
const DataReadTimeout = 100 * time.Millisecond

// NewRealSerialMux opens the sensor's line-based command port at path and
// wraps it in a mux.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port), nil
}

// OpenDataPort opens the sensor's binary frame stream port at path with a
// bounded read timeout.
func OpenDataPort(path string, opts PortOptions) (serial.Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(DataReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set data port read timeout: %w", err)
	}

	return port, nil
}
