// Package ezsp is the application-facing facade over the Dongle
// Dispatcher: it exposes the EmberZNet Serial Protocol's commands and
// indications as Go methods and events instead of raw command IDs and
// byte payloads, mirroring the original CEzsp facade's method list.
package ezsp

// Command IDs this driver issues or recognizes. Only the handful the
// facade and dispatcher need to name are enumerated; all others pass
// through as opaque cmdId/payload pairs.
const (
	CmdVersion                    byte = 0x00
	CmdGetValue                   byte = 0xAA
	CmdSetValue                   byte = 0xAB
	CmdNetworkInit                byte = 0x17
	CmdFormNetwork                byte = 0x1E
	CmdPermitJoining              byte = 0x22
	CmdSetChannel                 byte = 0xF0
	CmdStartScan                  byte = 0x9A
	CmdGetXncpInfo                byte = 0x13
	CmdLaunchStandaloneBootloader byte = 0x8F
	CmdGpfChannelRqstPolicy       byte = 0xC5
	CmdDGpFrameReceived           byte = 0xC6
	CmdIncomingMessageHandler     byte = 0x45
	CmdVersionResponse            byte = 0x00
	CmdGpfChannelRqstResponse     byte = 0xC5
	CmdGpClearTableEntries        byte = 0xF3
	CmdGpProxyTableProcessPairing byte = 0xC9
	CmdGpSinkCommission           byte = 0xEE
	CmdGpSinkTableRemoveEntry     byte = 0xE8
)
