package ezsp

import (
	"encoding/binary"
	"log/slog"

	"goezsp/internal/dongle"
)

// Facade is the application-facing entry point, delegating to a
// dongle.Dispatcher the way the original CEzsp delegated to its
// CLibEzspMain: it exposes named operations and callbacks instead of
// raw command IDs, and owns the AdapterVersion accumulation.
type Facade struct {
	dongle *dongle.Dispatcher
	logger *slog.Logger

	version AdapterVersion

	stateCallback      func(state string)
	gpFrameCallback    func(payload []byte)
	gpSourceIDCallback func(sourceID uint32)
}

// NewFacade wraps d, subscribing to the events it needs to drive
// startup version retrieval and green power indications.
func NewFacade(d *dongle.Dispatcher, logger *slog.Logger) *Facade {
	f := &Facade{dongle: d, logger: logger}
	d.On(dongle.EventDongleReady, f.onDongleReady)
	d.On(dongle.EventDongleRemove, func(dongle.Event) { f.emitState("remove") })
	d.On(dongle.EventDongleNotResponding, func(dongle.Event) { f.emitState("not_responding") })
	d.On(dongle.EventEzspReceived, f.onEzspReceived)
	return f
}

func (f *Facade) emitState(state string) {
	if f.stateCallback != nil {
		f.stateCallback(state)
	}
}

// Start issues the initial ASH reset handshake, mirroring CEzsp::start.
func (f *Facade) Start() {
	f.dongle.Reset()
}

// ForceFirmwareUpgradeOnInitTimeout arranges that a failed first reset
// handshake heads straight into firmware upgrade mode.
func (f *Facade) ForceFirmwareUpgradeOnInitTimeout() {
	f.dongle.ForceFirmwareUpgradeOnInitTimeout()
}

// RegisterLibraryStateCallback registers the callback invoked whenever
// the underlying dongle's readiness state changes.
func (f *Facade) RegisterLibraryStateCallback(cb func(state string)) {
	f.stateCallback = cb
}

// RegisterGPFrameRecvCallback registers the callback invoked with the
// payload of every received CmdGpSinkCommission or
// CmdGpProxyTableProcessPairing message. Messages under other command
// IDs, CmdDGpFrameReceived included, do not reach it.
func (f *Facade) RegisterGPFrameRecvCallback(cb func(payload []byte)) {
	f.gpFrameCallback = cb
}

// RegisterGPSourceIdCallback registers the callback invoked with the
// first four payload bytes, read as a little-endian source ID, of those
// same messages when they carry at least four bytes. Repeated IDs are
// reported again.
func (f *Facade) RegisterGPSourceIdCallback(cb func(sourceID uint32)) {
	f.gpSourceIDCallback = cb
}

// ClearAllGPDevices removes every entry from the green power proxy and
// sink tables.
func (f *Facade) ClearAllGPDevices() {
	f.dongle.SendCommand(CmdGpClearTableEntries, nil)
}

// RemoveGPDevices removes the given green power source IDs from the
// proxy/sink tables.
func (f *Facade) RemoveGPDevices(sourceIDs []uint32) {
	for _, id := range sourceIDs {
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, id)
		f.dongle.SendCommand(CmdGpSinkTableRemoveEntry, payload)
	}
}

// AddGPDevices registers the given green power source IDs in the proxy
// table so their commissioning frames will be accepted.
func (f *Facade) AddGPDevices(sourceIDs []uint32) {
	for _, id := range sourceIDs {
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, id)
		f.dongle.SendCommand(CmdGpProxyTableProcessPairing, payload)
	}
}

// OpenCommissioningSession puts the adapter's green power proxy into
// commissioning mode so new devices can pair.
func (f *Facade) OpenCommissioningSession() {
	f.dongle.SendCommand(CmdGpSinkCommission, []byte{0x01})
}

// CloseCommissioningSession ends green power commissioning mode.
func (f *Facade) CloseCommissioningSession() {
	f.dongle.SendCommand(CmdGpSinkCommission, []byte{0x00})
}

// SetAnswerToGpfChannelRqstPolicy controls whether the adapter answers
// green power channel request frames on behalf of commissioning
// devices.
func (f *Facade) SetAnswerToGpfChannelRqstPolicy(accept bool) {
	v := byte(0x00)
	if accept {
		v = 0x01
	}
	f.dongle.SendCommand(CmdGpfChannelRqstPolicy, []byte{v})
}

// SetFirmwareUpgradeMode requests the adapter leave normal EZSP
// operation for the bootloader's firmware upgrade menu.
func (f *Facade) SetFirmwareUpgradeMode() error {
	return f.dongle.SetMode(dongle.ModeBootloaderFirmwareUpgrade)
}

// StartEnergyScan requests an energy scan over the channels set in
// mask, each sampled durationExp times.
func (f *Facade) StartEnergyScan(mask uint32, durationExp byte) {
	payload := make([]byte, 5)
	binary.LittleEndian.PutUint32(payload, mask)
	payload[4] = durationExp
	f.dongle.SendCommand(CmdStartScan, payload)
}

// SetChannel moves the adapter to the given 802.15.4 channel.
func (f *Facade) SetChannel(channel byte) {
	f.dongle.SendCommand(CmdSetChannel, []byte{channel})
}

// Version returns the adapter identification accumulated so far.
func (f *Facade) Version() AdapterVersion {
	return f.version
}

func (f *Facade) onDongleReady(dongle.Event) {
	f.emitState("ready")
	f.dongle.SendCommand(CmdGetXncpInfo, nil)
	f.dongle.SendCommand(CmdVersion, []byte{0x08})
}

func (f *Facade) onEzspReceived(e dongle.Event) {
	switch e.CmdID {
	case CmdGetXncpInfo:
		if len(e.Payload) < 4 {
			return
		}
		manufacturerID := binary.LittleEndian.Uint16(e.Payload[0:2])
		versionNumber := binary.LittleEndian.Uint16(e.Payload[2:4])
		f.version.SetXncpData(manufacturerID, versionNumber)
		f.dongle.NotifyVersionRetrieved()
	case CmdVersionResponse:
		switch len(e.Payload) {
		case 1:
			f.version.SetEzspVersionInfo(e.Payload[0])
			f.dongle.NotifyVersionRetrieved()
		case 4:
			stackVersion := binary.LittleEndian.Uint16(e.Payload[0:2])
			protocolVersion := e.Payload[2]
			stackType := e.Payload[3]
			f.version.SetEzspVersionInfo2(protocolVersion, stackType, stackVersion)
			f.dongle.NotifyVersionRetrieved()
		}
	case CmdGpSinkCommission, CmdGpProxyTableProcessPairing:
		if f.gpFrameCallback != nil {
			f.gpFrameCallback(e.Payload)
		}
		if f.gpSourceIDCallback != nil && len(e.Payload) >= 4 {
			f.gpSourceIDCallback(binary.LittleEndian.Uint32(e.Payload[0:4]))
		}
	}
}
