// Package serialio defines the external collaborators the ASH/EZSP core
// depends on (a raw byte-oriented UART driver and a single-shot timer
// provider), plus concrete implementations backed by go.bug.st/serial
// and time.AfterFunc. Neither the UART device nor the timer's own
// semantics are part of the core; only these interfaces are.
package serialio

// UartDriver is the raw serial transport the core writes frames to and
// reads frames from. Write must be safe to call from the same goroutine
// that owns the core's state; a driver that performs asynchronous writes
// internally must still preserve write ordering.
type UartDriver interface {
	// Write sends buf to the wire, returning the number of bytes written.
	// A negative or error return means the write failed.
	Write(buf []byte) (int, error)

	// SetIncomingDataHandler registers the function invoked for every
	// burst of bytes read from the wire. There is exactly one handler at
	// a time; registering a new one replaces the previous.
	SetIncomingDataHandler(handler func(data []byte))
}
