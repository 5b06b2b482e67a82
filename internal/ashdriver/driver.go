// Package ashdriver implements the ASH Driver (C3): it couples an
// ash.Codec to a raw UART and a single retransmit timer, exactly the
// way the original AshDriver wires ashCodec.setAckTimeoutCancelFunc to
// stop its own timer and restarts that timer on every RST or DATA send.
package ashdriver

import (
	"log/slog"
	"time"

	"goezsp/internal/ash"
	"goezsp/internal/serialio"
)

// Timeouts, named and valued after the original driver's T_RX_ACK_*
// and T_ACK_ASH_RESET constants (all in milliseconds there).
const (
	RxAckMin    = 400 * time.Millisecond
	RxAckInit   = 1600 * time.Millisecond
	RxAckMax    = 3200 * time.Millisecond
	AckAshReset = 5000 * time.Millisecond
)

// Driver is the ASH Driver: it owns the retransmit timer and forwards
// forged frames to the UART, and feeds bytes read from the UART into
// the codec, reacting to the codec's ack-cancel and NAK-request
// callbacks.
type Driver struct {
	codec  *ash.Codec
	uart   serialio.UartDriver
	timer  serialio.Timer
	logger *slog.Logger
}

// New returns a Driver wiring codec to uart via a timer from builder.
// It registers itself with the codec for ack-cancel and NAK-request
// callbacks, matching the original AshDriver constructor. It does not
// register itself as the UART's incoming data handler: the dongle
// dispatcher (C4) owns that registration so it can route bytes to
// whichever decoder matches the current adapter mode, and forwards
// bytes here via Decode.
func New(codec *ash.Codec, uart serialio.UartDriver, builder serialio.TimerBuilder, logger *slog.Logger) *Driver {
	d := &Driver{
		codec:  codec,
		uart:   uart,
		timer:  builder.Create(),
		logger: logger,
	}
	codec.SetAckTimeoutCancelFunc(func() { d.timer.Stop() })
	codec.SetNakRequestFunc(func() {
		d.timer.Stop()
		d.write(codec.ForgeNakFrame())
	})
	return d
}

func (d *Driver) write(frame []byte) {
	if _, err := d.uart.Write(frame); err != nil {
		d.logger.Error("ashdriver: write failed", "err", err)
	}
}

// Decode feeds raw bytes read off the wire into the codec while ASH is
// the active decoder, returning any EZSP payloads the frames carried.
func (d *Driver) Decode(data []byte) [][]byte {
	return d.codec.AppendIncoming(data)
}

// SendResetNCPFrame forges and sends an RST frame, then arms the
// T_ACK_ASH_RESET retransmit timer, mirroring
// AshDriver::sendResetNCPFrame.
func (d *Driver) SendResetNCPFrame() {
	d.timer.Stop()
	d.write(d.codec.ForgeResetFrame())
	d.timer.Start(AckAshReset, d)
}

// SendAckFrame forges and sends an ACK for the last accepted DATA
// frame. ACKs are not themselves retransmitted, so no timer is armed.
func (d *Driver) SendAckFrame() {
	d.timer.Stop()
	d.write(d.codec.ForgeAckFrame())
}

// SendDataFrame forges and sends a DATA frame carrying payload, then
// arms the T_RX_ACK_INIT retransmit timer, mirroring
// AshDriver::sendDataFrame.
func (d *Driver) SendDataFrame(payload []byte) error {
	frame, err := d.codec.ForgeDataFrame(payload)
	if err != nil {
		return err
	}
	d.timer.Stop()
	d.write(frame)
	d.timer.Start(RxAckInit, d)
	return nil
}

// IsConnected reports whether the underlying codec has completed its
// handshake.
func (d *Driver) IsConnected() bool {
	return d.codec.IsConnected()
}

// RegisterObserver forwards to the underlying codec so callers only
// need to hold the Driver, not both the driver and its codec.
func (d *Driver) RegisterObserver(o ash.Observer) (unregister func()) {
	return d.codec.RegisterObserver(o)
}

// Trigger implements serialio.TimerOwner: the retransmit timer expired
// without an ACK/RSTACK arriving. The original driver's trigger()
// distinguishes a failed reset attempt (not yet connected) from a
// stalled, already-connected session: the former is reported to
// observers as ASH_RESET_FAILED, the latter only logged.
func (d *Driver) Trigger(serialio.Timer) {
	if !d.codec.IsConnected() {
		d.logger.Warn("ashdriver: reset handshake timed out")
		d.codec.EmitResetFailed()
		return
	}
	d.logger.Warn("ashdriver: ack timeout while connected")
}
