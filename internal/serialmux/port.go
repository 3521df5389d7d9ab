package serialmux

import (
	"io"
	"time"
)

// SerialPorter is the minimal interface the mux needs from a serial port.
// The abstraction enables unit testing without sensor hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with a read timeout. The data port
// must implement it: frame reads poll with a bounded timeout so shutdown can
// interleave with a stalled stream.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}
