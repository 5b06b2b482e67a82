package serialio

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// SerialUart implements UartDriver over a real serial port: open the
// port, assert DTR/RTS for USB CDC ACM adapters, and run a background
// read loop that hands bytes to the registered handler via an
// EventLoop so the core only ever sees calls from one goroutine.
type SerialUart struct {
	port   serial.Port
	loop   *EventLoop
	logger *slog.Logger

	mu      sync.Mutex
	handler func([]byte)

	done chan struct{}
}

// OpenSerialUart opens portName at baud and starts its read loop. Reads
// are posted to loop so they interleave correctly with timer fires.
func OpenSerialUart(portName string, baud int, loop *EventLoop, logger *slog.Logger) (*SerialUart, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", portName, err)
	}
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	u := &SerialUart{
		port:   port,
		loop:   loop,
		logger: logger,
		done:   make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *SerialUart) readLoop() {
	reader := bufio.NewReaderSize(u.port, 256)
	buf := make([]byte, 256)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			u.loop.Post(func() {
				u.mu.Lock()
				h := u.handler
				u.mu.Unlock()
				if h != nil {
					h(chunk)
				}
			})
		}
		if err != nil {
			select {
			case <-u.done:
				return
			default:
			}
			if err != io.EOF {
				u.logger.Error("serialio read error", "err", err)
			}
			return
		}
	}
}

func (u *SerialUart) Write(buf []byte) (int, error) {
	return u.port.Write(buf)
}

func (u *SerialUart) SetIncomingDataHandler(handler func(data []byte)) {
	u.mu.Lock()
	u.handler = handler
	u.mu.Unlock()
}

// Close stops the read loop and closes the underlying port.
func (u *SerialUart) Close() error {
	close(u.done)
	return u.port.Close()
}
