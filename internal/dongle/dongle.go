// Package dongle implements the Dongle Dispatcher (C4): it owns the
// single adapter-mode decision and is the only component that
// registers itself against the UART's incoming-byte stream, routing
// bytes to either the ASH codec or the bootloader prompt parser
// according to its own Mode field rather than trusting each decoder's
// internal enabled flag. It also owns the single-outstanding-request
// EZSP command queue and response correlation.
package dongle

import (
	"fmt"
	"log/slog"

	"goezsp/internal/ash"
	"goezsp/internal/ashdriver"
	"goezsp/internal/blp"
	"goezsp/internal/serialio"
)

// CmdLaunchStandaloneBootloader is the EZSP command ID for
// launchStandaloneBootloader. Sending it reboots the NCP directly into
// the bootloader, so it never produces an ordinary EZSP response and
// is excluded from the normal ACK/dequeue bookkeeping.
const CmdLaunchStandaloneBootloader byte = 0x8F

// Mode is the adapter-mode state machine: which decoder is currently
// attached to the shared incoming byte stream, and if it is the
// bootloader, what the dispatcher plans to do once the menu prompt
// appears.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeEzspNcp
	ModeBootloaderExitToEzspNcp
	ModeBootloaderFirmwareUpgrade
)

func (m Mode) String() string {
	switch m {
	case ModeEzspNcp:
		return "EZSP_NCP"
	case ModeBootloaderExitToEzspNcp:
		return "BOOTLOADER_EXIT_TO_EZSP_NCP"
	case ModeBootloaderFirmwareUpgrade:
		return "BOOTLOADER_FIRMWARE_UPGRADE"
	default:
		return "UNKNOWN"
	}
}

// Event types emitted on the dispatcher's bus.
const (
	EventDongleReady             = "dongle_ready"
	EventDongleRemove            = "dongle_remove"
	EventDongleVersionRetrieved  = "dongle_version_retrieved"
	EventDongleNotResponding     = "dongle_not_responding"
	EventBootloaderPrompt        = "bootloader_prompt"
	EventFirmwareReadyToTransfer = "firmware_ready_to_transfer"
	EventEzspReceived            = "ezsp_received"
)

// Event carries a dispatcher notification. CmdID and Payload are only
// meaningful for EventEzspReceived.
type Event struct {
	Type    string
	CmdID   byte
	Payload []byte
}

// Handler receives dispatcher events. A panicking handler is recovered
// and logged, matching the coordinator event bus's behavior.
type Handler func(Event)

type outgoingMsg struct {
	cmdID   byte
	payload []byte
}

// Dispatcher is the Dongle Dispatcher. Like the rest of the driver
// core, it is not safe for concurrent use: all of its methods, and the
// UART/timer callbacks that invoke them, are expected to run on a
// single EventLoop goroutine.
type Dispatcher struct {
	uart   serialio.UartDriver
	ash    *ashdriver.Driver
	blp    *blp.Parser
	logger *slog.Logger

	mode                 Mode
	firstStartup         bool
	forceFirmwareUpgrade bool

	queue   []outgoingMsg
	waiting bool
	ezspSeq byte

	handlers      map[string]map[int]Handler
	allHandlers   map[int]Handler
	nextHandlerID int
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithBootloaderOptions forwards functional options to the underlying
// blp.Parser, letting callers override banner text and menu keys for a
// specific bootloader generation.
func WithBootloaderOptions(opts ...blp.Option) Option {
	return func(d *Dispatcher) {
		d.blp = blp.NewParser(d.uart, opts...)
	}
}

// New returns a Dispatcher wiring its own ASH driver and bootloader
// parser around uart, and registers itself as the UART's sole incoming
// data handler.
func New(uart serialio.UartDriver, timerBuilder serialio.TimerBuilder, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		uart:         uart,
		ash:          ashdriver.New(ash.NewCodec(), uart, timerBuilder, logger),
		blp:          blp.NewParser(uart),
		logger:       logger,
		mode:         ModeUnknown,
		firstStartup: true,
		handlers:     make(map[string]map[int]Handler),
		allHandlers:  make(map[int]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ash.RegisterObserver(d.onAshInfo)
	d.blp.RegisterPromptDetectCallback(d.onBootloaderPrompt)
	uart.SetIncomingDataHandler(d.onIncoming)
	return d
}

// On registers a handler for a specific event type and returns an
// unsubscribe function.
func (d *Dispatcher) On(eventType string, h Handler) func() {
	id := d.nextHandlerID
	d.nextHandlerID++
	if d.handlers[eventType] == nil {
		d.handlers[eventType] = make(map[int]Handler)
	}
	d.handlers[eventType][id] = h
	return func() { delete(d.handlers[eventType], id) }
}

// OnAll registers a handler that receives every event.
func (d *Dispatcher) OnAll(h Handler) func() {
	id := d.nextHandlerID
	d.nextHandlerID++
	d.allHandlers[id] = h
	return func() { delete(d.allHandlers, id) }
}

func (d *Dispatcher) notify(ev Event) {
	for _, h := range d.handlers[ev.Type] {
		d.safeCall(h, ev)
	}
	for _, h := range d.allHandlers {
		d.safeCall(h, ev)
	}
}

func (d *Dispatcher) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dongle: event handler panic", "type", ev.Type, "panic", r)
		}
	}()
	h(ev)
}

// Mode returns the dispatcher's current adapter mode.
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// ForceFirmwareUpgradeOnInitTimeout arranges that, if the very first
// reset handshake after startup fails, the dispatcher heads into
// firmware upgrade mode instead of simply trying to exit back to normal
// EZSP operation.
func (d *Dispatcher) ForceFirmwareUpgradeOnInitTimeout() {
	d.forceFirmwareUpgrade = true
}

// Reset discards any queued commands and issues a fresh ASH reset
// handshake.
func (d *Dispatcher) Reset() {
	d.queue = nil
	d.waiting = false
	d.ash.SendResetNCPFrame()
}

// SendCommand enqueues an EZSP command for transmission and kicks the
// send queue. The EZSP sequence number is stamped when the command is
// actually transmitted, so a resend after a NAK carries a new one.
func (d *Dispatcher) SendCommand(cmdID byte, payload []byte) {
	d.queue = append(d.queue, outgoingMsg{cmdID: cmdID, payload: payload})
	d.sendNext()
}

func (d *Dispatcher) sendNext() {
	if d.mode != ModeEzspNcp && d.mode != ModeUnknown {
		return
	}
	if d.waiting || len(d.queue) == 0 {
		return
	}
	msg := d.queue[0]

	frameControl := byte(0x00)
	body := make([]byte, 0, 3+len(msg.payload))
	body = append(body, d.ezspSeq, frameControl, msg.cmdID)
	body = append(body, msg.payload...)
	d.ezspSeq++

	if err := d.ash.SendDataFrame(body); err != nil {
		d.logger.Error("dongle: send failed", "cmd", msg.cmdID, "err", err)
		return
	}

	if msg.cmdID == CmdLaunchStandaloneBootloader {
		// The NCP reboots straight into the bootloader and never answers
		// this command, so pop it immediately and carry on draining
		// rather than waiting for a response correlation that will
		// never arrive.
		d.queue = d.queue[1:]
		d.sendNext()
		return
	}
	d.waiting = true
}

// SetMode requests an adapter-mode transition. From
// ModeBootloaderExitToEzspNcp the dispatcher returns to ModeEzspNcp on
// its own once the bootloader prompt has been answered (see
// onBootloaderPrompt); ModeBootloaderFirmwareUpgrade stays in place.
// ModeEzspNcp may also be requested directly, which disables the
// parser and restarts the ASH reset handshake. Only the
// transitions the current mode permits are accepted; any other
// combination is rejected as unimplemented.
func (d *Dispatcher) SetMode(mode Mode) error {
	switch mode {
	case ModeBootloaderExitToEzspNcp:
		if d.mode == ModeEzspNcp {
			return fmt.Errorf("dongle: mode transition from %v to %v not implemented", d.mode, mode)
		}
		d.mode = mode
		d.blp.Enable()
		return nil
	case ModeBootloaderFirmwareUpgrade:
		if d.mode != ModeEzspNcp && d.mode != ModeUnknown {
			return fmt.Errorf("dongle: mode transition from %v to %v not implemented", d.mode, mode)
		}
		d.mode = mode
		d.blp.Enable()
		return nil
	case ModeEzspNcp:
		if d.mode == ModeEzspNcp {
			return fmt.Errorf("dongle: mode transition from %v to %v not implemented", d.mode, mode)
		}
		d.mode = mode
		d.blp.Disable()
		d.Reset()
		return nil
	default:
		return fmt.Errorf("dongle: invalid mode transition to %v", mode)
	}
}

func (d *Dispatcher) onIncoming(data []byte) {
	if d.mode == ModeEzspNcp || d.mode == ModeUnknown {
		for _, payload := range d.ash.Decode(data) {
			d.handleInputData(payload)
		}
		return
	}
	d.blp.Decode(data)
}

// handleInputData processes one already-unframed EZSP message: [seq]
// [frameControl][cmdId][payload...]. The NCP's ACK and response
// correlation are skipped for the privileged launchStandaloneBootloader
// command, mirroring the original dongle's handleInputData.
func (d *Dispatcher) handleInputData(msg []byte) {
	if len(msg) < 3 {
		d.logger.Warn("dongle: short EZSP message", "len", len(msg))
		return
	}
	cmdID := msg[2]
	payload := msg[3:]

	if cmdID != CmdLaunchStandaloneBootloader {
		d.ash.SendAckFrame()
		d.handleResponse(cmdID, payload)
	}

	d.notify(Event{Type: EventEzspReceived, CmdID: cmdID, Payload: payload})
}

func (d *Dispatcher) handleResponse(cmdID byte, payload []byte) {
	if len(d.queue) > 0 && d.queue[0].cmdID == cmdID {
		d.queue = d.queue[1:]
		d.waiting = false
		d.sendNext()
		return
	}
	d.logger.Debug("dongle: asynchronous EZSP message received", "cmd", cmdID)
}

func (d *Dispatcher) onBootloaderPrompt() {
	d.notify(Event{Type: EventBootloaderPrompt})
	switch d.mode {
	case ModeBootloaderExitToEzspNcp:
		if err := d.blp.SelectModeRun(); err != nil {
			d.logger.Error("dongle: failed to select bootloader run menu", "err", err)
			return
		}
		d.blp.Disable()
		d.mode = ModeEzspNcp
		d.Reset()
	case ModeBootloaderFirmwareUpgrade:
		if err := d.blp.SelectModeUpgradeFw(func() {
			d.notify(Event{Type: EventFirmwareReadyToTransfer})
		}); err != nil {
			d.logger.Error("dongle: failed to select bootloader upgrade menu", "err", err)
		}
	}
}

func (d *Dispatcher) onAshInfo(info ash.AshInfo) {
	switch info {
	case ash.AshStateConnected:
		d.mode = ModeEzspNcp
		d.notify(Event{Type: EventDongleReady})
	case ash.AshStateDisconnected:
		d.notify(Event{Type: EventDongleRemove})
	case ash.AshNack:
		d.waiting = false
		d.sendNext()
	case ash.AshResetFailed:
		if d.firstStartup {
			d.firstStartup = false
			if d.forceFirmwareUpgrade {
				_ = d.SetMode(ModeBootloaderFirmwareUpgrade)
			} else {
				_ = d.SetMode(ModeBootloaderExitToEzspNcp)
			}
			return
		}
		d.notify(Event{Type: EventDongleNotResponding})
	}
}

// NotifyVersionRetrieved is called by the ezsp facade each time it
// records part of the adapter version (the XNCP data or the EZSP
// version response), so it fires once per partial update, mirroring the original dongle's two independent
// setFetched*Data overloads that both trigger the same notification.
func (d *Dispatcher) NotifyVersionRetrieved() {
	d.notify(Event{Type: EventDongleVersionRetrieved})
}
