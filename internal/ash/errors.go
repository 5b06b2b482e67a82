package ash

import "errors"

// ErrNotConnected is returned by ForgeDataFrame when the session has not
// completed its RST/RSTACK handshake.
var ErrNotConnected = errors.New("ash: not connected")
