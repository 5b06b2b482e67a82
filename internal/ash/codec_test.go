package ash

import (
	"bytes"
	"testing"
)

func allReservedPayload() []byte {
	return []byte{FlagByte, EscapeByte, XonByte, XoffByte, SubstituteByte, CancelByte, 0x00, 0xFF}
}

func connectedCodec() *Codec {
	c := NewCodec()
	c.ForgeResetFrame()
	rstack := frame([]byte{0xC1})
	c.AppendIncoming(rstack)
	if !c.IsConnected() {
		panic("test setup: codec did not reach CONNECTED")
	}
	return c
}

func TestStuffUnstuffRoundTrip(t *testing.T) {
	payload := allReservedPayload()
	stuffed := stuff(payload)
	var u unstuffer
	var got []byte
	for _, b := range stuffed {
		if isReservedByte(b) && b != EscapeByte {
			t.Fatalf("stuffed output still contains reserved byte 0x%02X", b)
		}
	}
	u.buf = nil
	for _, b := range stuffed {
		body, complete := u.feed(b)
		if complete {
			got = body
		}
	}
	// no flag terminator fed yet, so nothing should have completed
	if got != nil {
		t.Fatalf("unexpected completion without flag byte")
	}
	body, complete := u.feed(FlagByte)
	if !complete {
		t.Fatalf("expected frame completion on flag byte")
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("round trip mismatch: got %v want %v", body, payload)
	}
}

func TestCRC16KnownResidue(t *testing.T) {
	data := []byte("123456789")
	crc := CRC16(data)
	if crc == 0 {
		t.Fatalf("CRC16 returned zero for non-empty input")
	}
	body := append(append([]byte{}, data...), byte(crc>>8), byte(crc))
	// a non-reflected CRC with no final XOR leaves a zero residue when run
	// over the data followed by its own big-endian CRC.
	if residue := CRC16(body); residue != 0x0000 {
		t.Fatalf("expected residue 0x0000, got 0x%04X", residue)
	}
}

func TestForgeDataFrameRoundTripsThroughAppendIncoming(t *testing.T) {
	local := connectedCodec()
	remote := connectedCodec()

	payload := []byte{0x00, 0x00, 0x02, 0xAA, 0xBB}
	wire, err := local.ForgeDataFrame(payload)
	if err != nil {
		t.Fatalf("ForgeDataFrame: %v", err)
	}

	got := remote.AppendIncoming(wire)
	if len(got) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(got))
	}
	if !bytes.Equal(got[0], payload) {
		t.Fatalf("payload mismatch: got %v want %v", got[0], payload)
	}
}

func TestForgeDataFrameEmptyPayloadRoundTrips(t *testing.T) {
	local := connectedCodec()
	remote := connectedCodec()

	wire, err := local.ForgeDataFrame(nil)
	if err != nil {
		t.Fatalf("ForgeDataFrame: %v", err)
	}
	got := remote.AppendIncoming(wire)
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("expected one empty payload, got %v", got)
	}
}

func TestForgeDataFrameAllReservedBytesRoundTrips(t *testing.T) {
	local := connectedCodec()
	remote := connectedCodec()

	payload := allReservedPayload()
	wire, err := local.ForgeDataFrame(payload)
	if err != nil {
		t.Fatalf("ForgeDataFrame: %v", err)
	}
	got := remote.AppendIncoming(wire)
	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("round trip mismatch: got %v want %v", got, payload)
	}
}

func TestForgeDataFrameRequiresConnected(t *testing.T) {
	c := NewCodec()
	if _, err := c.ForgeDataFrame([]byte{0x01}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestResetThenRstAckConnects(t *testing.T) {
	c := NewCodec()
	var gotInfo AshInfo
	called := false
	c.RegisterObserver(func(info AshInfo) {
		called = true
		gotInfo = info
	})
	c.ForgeResetFrame()
	if c.State() != StateResetSent {
		t.Fatalf("expected RESET_SENT, got %v", c.State())
	}
	c.AppendIncoming(frame([]byte{0xC1}))
	if !called || gotInfo != AshStateConnected {
		t.Fatalf("expected AshStateConnected notification")
	}
	if !c.IsConnected() {
		t.Fatalf("expected CONNECTED state")
	}
}

func TestDataFrameWithWrongSequenceRequestsNak(t *testing.T) {
	c := connectedCodec()
	nakRequested := false
	c.SetNakRequestFunc(func() { nakRequested = true })

	// frmNum field (high nibble) set to 3 when codec expects 0.
	body := []byte{0x30, 0x01, 0x02}
	wire := frame(body)
	got := c.AppendIncoming(wire)
	if len(got) != 0 {
		t.Fatalf("expected no payload delivered for out-of-window DATA")
	}
	if !nakRequested {
		t.Fatalf("expected NAK request for mismatched frmNum")
	}
}

func TestCorruptCrcWhileConnectedRequestsNak(t *testing.T) {
	c := connectedCodec()
	nakRequested := false
	c.SetNakRequestFunc(func() { nakRequested = true })

	body := []byte{0x00, 0x01, 0x02, 0x00, 0x00} // bad trailing CRC bytes
	wire := append(stuff(body), FlagByte)
	c.AppendIncoming(wire)
	if !nakRequested {
		t.Fatalf("expected NAK request on CRC mismatch")
	}
}

func TestNakFrameNotifiesObserver(t *testing.T) {
	c := connectedCodec()
	var got AshInfo
	c.RegisterObserver(func(info AshInfo) { got = info })
	nak := frame([]byte{0xA0})
	c.AppendIncoming(nak)
	if got != AshNack {
		t.Fatalf("expected AshNack notification, got %v", got)
	}
}

func TestErrorFrameDisconnects(t *testing.T) {
	c := connectedCodec()
	var got AshInfo
	c.RegisterObserver(func(info AshInfo) { got = info })
	c.AppendIncoming(frame([]byte{0xC2}))
	if c.State() != StateDisconnected {
		t.Fatalf("expected DISCONNECTED state, got %v", c.State())
	}
	if got != AshStateDisconnected {
		t.Fatalf("expected AshStateDisconnected notification, got %v", got)
	}
}

func TestMidFrameCancelDiscardsInProgressFrame(t *testing.T) {
	var u unstuffer
	stuffed := stuff([]byte{0x00, 0xAA, 0xBB})
	// feed only part of the frame, then cancel.
	half := stuffed[:len(stuffed)/2]
	for _, b := range half {
		u.feed(b)
	}
	u.feed(CancelByte)
	if len(u.buf) != 0 {
		t.Fatalf("expected cancel to clear in-progress buffer")
	}

	// subsequent frame must still decode correctly.
	payload := []byte{0x00, 0x01, 0x02}
	wire := append(stuff(payload), FlagByte)
	var got []byte
	for _, b := range wire {
		if body, complete := u.feed(b); complete {
			got = body
		}
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("frame after cancel mismatch: got %v want %v", got, payload)
	}
}

func TestSubstituteByteDiscardsFrame(t *testing.T) {
	var u unstuffer
	wire := frame([]byte{0x00, 0x01, 0x02})
	// inject a substitute byte right after the first byte to corrupt the frame.
	corrupted := append([]byte{wire[0], SubstituteByte}, wire[1:]...)
	var completed bool
	for _, b := range corrupted {
		if _, complete := u.feed(b); complete {
			completed = true
		}
	}
	if completed {
		t.Fatalf("expected substitute-marked frame to be discarded, not completed")
	}
}
