package ezsp

// APSOption is the set of booleans packed into the 16-bit APS options
// bitmap carried on outgoing unicast/multicast/broadcast messages. Bit
// positions and default values are pinned to the NCP's own encoding.
type APSOption struct {
	Encryption             bool
	Retry                  bool
	EnableRouteDiscovery   bool
	ForceRouteDiscovery    bool
	SourceEUI64            bool
	DestinationEUI64       bool
	EnableAddressDiscovery bool
	ZdoResponseRequired    bool
	Fragment               bool
}

// Bit positions within the 16-bit APS options field.
const (
	bitEncryption             = 5
	bitRetry                  = 6
	bitEnableRouteDiscovery   = 8
	bitForceRouteDiscovery    = 9
	bitSourceEUI64            = 10
	bitDestinationEUI64       = 11
	bitEnableAddressDiscovery = 12
	bitZdoResponseRequired    = 14
	bitFragment               = 15
)

// DefaultAPSOption returns the NCP's default option set: address
// discovery and route discovery enabled, retry enabled, source EUI64
// included, everything else off.
func DefaultAPSOption() APSOption {
	return APSOption{
		DestinationEUI64:       false,
		EnableAddressDiscovery: true,
		EnableRouteDiscovery:   true,
		Encryption:             false,
		ForceRouteDiscovery:    false,
		Fragment:               false,
		Retry:                  true,
		SourceEUI64:            true,
		ZdoResponseRequired:    false,
	}
}

func setBit(v *uint16, pos uint, on bool) {
	if on {
		*v |= 1 << pos
	}
}

// Encode packs the option set into the wire's 16-bit bitmap.
func (o APSOption) Encode() uint16 {
	var v uint16
	setBit(&v, bitEncryption, o.Encryption)
	setBit(&v, bitRetry, o.Retry)
	setBit(&v, bitEnableRouteDiscovery, o.EnableRouteDiscovery)
	setBit(&v, bitForceRouteDiscovery, o.ForceRouteDiscovery)
	setBit(&v, bitSourceEUI64, o.SourceEUI64)
	setBit(&v, bitDestinationEUI64, o.DestinationEUI64)
	setBit(&v, bitEnableAddressDiscovery, o.EnableAddressDiscovery)
	setBit(&v, bitZdoResponseRequired, o.ZdoResponseRequired)
	setBit(&v, bitFragment, o.Fragment)
	return v
}

// DecodeAPSOption unpacks the wire's 16-bit bitmap into an APSOption.
func DecodeAPSOption(v uint16) APSOption {
	bit := func(pos uint) bool { return v&(1<<pos) != 0 }
	return APSOption{
		Encryption:             bit(bitEncryption),
		Retry:                  bit(bitRetry),
		EnableRouteDiscovery:   bit(bitEnableRouteDiscovery),
		ForceRouteDiscovery:    bit(bitForceRouteDiscovery),
		SourceEUI64:            bit(bitSourceEUI64),
		DestinationEUI64:       bit(bitDestinationEUI64),
		EnableAddressDiscovery: bit(bitEnableAddressDiscovery),
		ZdoResponseRequired:    bit(bitZdoResponseRequired),
		Fragment:               bit(bitFragment),
	}
}
