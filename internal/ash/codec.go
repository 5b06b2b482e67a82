package ash

// SessionState is the ASH connection state machine driven by RST,
// RSTACK and ERROR frames.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateResetSent
	StateConnected
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateResetSent:
		return "RESET_SENT"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "DISCONNECTED"
	}
}

// AshInfo is the set of lifecycle notifications the codec hands to its
// observers, mirroring the original driver's ashCbInfo callback values.
type AshInfo int

const (
	AshStateConnected AshInfo = iota
	AshStateDisconnected
	AshNack
	AshResetFailed
)

func (i AshInfo) String() string {
	switch i {
	case AshStateConnected:
		return "ASH_STATE_CONNECTED"
	case AshStateDisconnected:
		return "ASH_STATE_DISCONNECTED"
	case AshNack:
		return "ASH_NACK"
	case AshResetFailed:
		return "ASH_RESET_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Observer receives ASH session lifecycle notifications.
type Observer func(info AshInfo)

// Codec implements the ASH framing and session state machine (C1). It
// owns no UART and no timer: ashdriver (C3) wires those around it. Every
// method must be called from a single goroutine; see the package doc.
type Codec struct {
	state SessionState

	frmTx byte // next frmNum this side will send
	frmRx byte // next frmNum expected from the NCP

	u unstuffer

	observers map[int]Observer
	nextObsID int

	ackCancel func()
	nakReq    func()
}

// NewCodec returns a Codec in the disconnected state.
func NewCodec() *Codec {
	return &Codec{
		state:     StateDisconnected,
		observers: make(map[int]Observer),
	}
}

// SetAckTimeoutCancelFunc registers the callback invoked whenever the
// codec observes that the NCP has acknowledged our last DATA or RST
// frame, so ashdriver can stop its retransmit timer. Mirrors the
// original AshDriver wiring ash.setAckTimeoutCancelFunc.
func (c *Codec) SetAckTimeoutCancelFunc(f func()) {
	c.ackCancel = f
}

// SetNakRequestFunc registers the callback invoked when the codec needs
// a NAK sent back to the NCP: a CRC failure or an out-of-window DATA
// frame while connected. The codec has no UART of its own, so ashdriver
// supplies this to forge and write the NAK.
func (c *Codec) SetNakRequestFunc(f func()) {
	c.nakReq = f
}

// RegisterObserver adds an observer and returns an unregister closure.
func (c *Codec) RegisterObserver(o Observer) (unregister func()) {
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = o
	return func() { delete(c.observers, id) }
}

func (c *Codec) notify(info AshInfo) {
	for _, o := range c.observers {
		o(info)
	}
}

// EmitResetFailed notifies observers that the reset handshake timed out
// without a RSTACK arriving. The codec has no timer of its own, so
// ashdriver calls this from its retransmit-timeout handler.
func (c *Codec) EmitResetFailed() {
	c.state = StateFailed
	c.notify(AshResetFailed)
}

// IsConnected reports whether the session has completed its handshake.
func (c *Codec) IsConnected() bool {
	return c.state == StateConnected
}

// State returns the current session state.
func (c *Codec) State() SessionState {
	return c.state
}

// ForgeResetFrame resets the sequence counters and returns the wire
// bytes for an RST frame, transitioning to RESET_SENT.
func (c *Codec) ForgeResetFrame() []byte {
	c.frmTx = 0
	c.frmRx = 0
	c.state = StateResetSent
	return frame([]byte{0xC0})
}

// ForgeAckFrame returns the wire bytes for an ACK acknowledging frmRx.
func (c *Codec) ForgeAckFrame() []byte {
	control := 0x80 | (c.frmRx & 0x07)
	return frame([]byte{control})
}

// ForgeNakFrame returns the wire bytes for a NAK requesting
// retransmission starting at frmRx.
func (c *Codec) ForgeNakFrame() []byte {
	control := 0xA0 | (c.frmRx & 0x07)
	return frame([]byte{control})
}

// ForgeDataFrame wraps payload (an EZSP frame) in a DATA frame and
// advances the local send counter. Returns ErrNotConnected if the
// handshake has not completed.
func (c *Codec) ForgeDataFrame(payload []byte) ([]byte, error) {
	if c.state != StateConnected {
		return nil, ErrNotConnected
	}
	control := (c.frmTx&0x07)<<4 | (c.frmRx & 0x07)
	body := make([]byte, 0, len(payload)+1)
	body = append(body, control)
	body = append(body, payload...)
	out := frame(body)
	c.frmTx = (c.frmTx + 1) & 0x07
	return out, nil
}

// AppendIncoming feeds raw bytes read off the wire through the
// unstuffer and the frame state machine, returning the EZSP payloads of
// any DATA frames that were accepted in order. CRC-failed and
// substitute-marked frames are dropped; out-of-window DATA and bad CRCs
// while connected trigger a NAK request.
func (c *Codec) AppendIncoming(raw []byte) [][]byte {
	var payloads [][]byte
	for _, b := range raw {
		body, complete := c.u.feed(b)
		if !complete {
			continue
		}
		if p := c.handleFrame(body); p != nil {
			payloads = append(payloads, p)
		}
	}
	return payloads
}

func (c *Codec) handleFrame(body []byte) []byte {
	if len(body) < 3 {
		return nil
	}
	n := len(body) - 2
	got := CRC16(body[:n])
	want := uint16(body[n])<<8 | uint16(body[n+1])
	control := body[0]
	if got != want {
		if c.state == StateConnected && c.nakReq != nil {
			c.nakReq()
		}
		return nil
	}

	kind := decodeKind(control)
	switch kind {
	case KindRstAck:
		if c.state == StateResetSent {
			c.frmTx = 0
			c.frmRx = 0
			c.state = StateConnected
			if c.ackCancel != nil {
				c.ackCancel()
			}
			c.notify(AshStateConnected)
		}
		return nil

	case KindError:
		c.state = StateDisconnected
		c.notify(AshStateDisconnected)
		return nil

	case KindNak:
		c.notify(AshNack)
		return nil

	case KindAck:
		ackNum := control & 0x07
		if ackNum == c.frmTx && c.ackCancel != nil {
			c.ackCancel()
		}
		return nil

	case KindData:
		if c.state != StateConnected {
			return nil
		}
		frmNum := (control >> 4) & 0x07
		ackNum := control & 0x07
		if ackNum == c.frmTx && c.ackCancel != nil {
			c.ackCancel()
		}
		if frmNum != c.frmRx {
			if c.nakReq != nil {
				c.nakReq()
			}
			return nil
		}
		c.frmRx = (c.frmRx + 1) & 0x07
		payload := body[1:n]
		out := make([]byte, len(payload))
		copy(out, payload)
		return out

	default:
		return nil
	}
}
