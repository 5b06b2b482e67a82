package ezsp

// AdapterVersion accumulates the identifying details fetched from the
// NCP at startup: the XNCP application info (vendor-specific, so
// optional) and the EZSP protocol/stack version. The original dongle's
// two independent setters each notify observers on every call, not
// just once both have arrived, so callers should tolerate repeat
// delivery against a partially-filled AdapterVersion; Complete reports
// whether both pieces have arrived yet.
type AdapterVersion struct {
	XncpManufacturerID *uint16
	XncpVersionNumber  *uint16

	EzspProtocolVersion *byte
	StackType           *byte
	StackVersion        *uint16

	gotXncp    bool
	gotVersion bool
}

// SetXncpData records the XNCP application info reported by
// getXncpInfo.
func (v *AdapterVersion) SetXncpData(manufacturerID, versionNumber uint16) {
	v.XncpManufacturerID = &manufacturerID
	v.XncpVersionNumber = &versionNumber
	v.gotXncp = true
}

// SetEzspVersionInfo records the protocol version only, for NCPs that
// report just a single byte.
func (v *AdapterVersion) SetEzspVersionInfo(protocolVersion byte) {
	v.EzspProtocolVersion = &protocolVersion
	v.gotVersion = true
}

// SetEzspVersionInfo2 records the fuller version response that also
// carries the stack type and stack version.
func (v *AdapterVersion) SetEzspVersionInfo2(protocolVersion, stackType byte, stackVersion uint16) {
	v.EzspProtocolVersion = &protocolVersion
	v.StackType = &stackType
	v.StackVersion = &stackVersion
	v.gotVersion = true
}

// Complete reports whether both the XNCP data and the version info
// have been retrieved.
func (v *AdapterVersion) Complete() bool {
	return v.gotXncp && v.gotVersion
}
