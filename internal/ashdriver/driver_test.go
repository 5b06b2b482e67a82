package ashdriver

import (
	"log/slog"
	"testing"
	"time"

	"goezsp/internal/ash"
	"goezsp/internal/serialio"
)

type fakeUart struct {
	written [][]byte
}

func (f *fakeUart) Write(buf []byte) (int, error) {
	cp := append([]byte(nil), buf...)
	f.written = append(f.written, cp)
	return len(buf), nil
}

func (f *fakeUart) SetIncomingDataHandler(func([]byte)) {}

type fakeTimer struct {
	running bool
	dur     time.Duration
	owner   serialio.TimerOwner
}

func (t *fakeTimer) Start(d time.Duration, owner serialio.TimerOwner) {
	t.running = true
	t.dur = d
	t.owner = owner
}

func (t *fakeTimer) Stop() {
	t.running = false
}

func (t *fakeTimer) fire() {
	if t.running {
		t.running = false
		t.owner.Trigger(t)
	}
}

type fakeTimerBuilder struct {
	timer *fakeTimer
}

func (b *fakeTimerBuilder) Create() serialio.Timer {
	return b.timer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSendResetNCPFrameArmsResetTimer(t *testing.T) {
	codec := ash.NewCodec()
	uart := &fakeUart{}
	timer := &fakeTimer{}
	d := New(codec, uart, &fakeTimerBuilder{timer: timer}, discardLogger())

	d.SendResetNCPFrame()
	if len(uart.written) != 1 {
		t.Fatalf("expected one RST frame written, got %d", len(uart.written))
	}
	if !timer.running || timer.dur != AckAshReset {
		t.Fatalf("expected reset timer armed with AckAshReset, got running=%v dur=%v", timer.running, timer.dur)
	}
}

func TestTimeoutWhileDisconnectedEmitsResetFailed(t *testing.T) {
	codec := ash.NewCodec()
	uart := &fakeUart{}
	timer := &fakeTimer{}
	d := New(codec, uart, &fakeTimerBuilder{timer: timer}, discardLogger())

	var got ash.AshInfo
	called := false
	d.RegisterObserver(func(info ash.AshInfo) {
		called = true
		got = info
	})

	d.SendResetNCPFrame()
	timer.fire()

	if !called || got != ash.AshResetFailed {
		t.Fatalf("expected AshResetFailed notification, got called=%v info=%v", called, got)
	}
}

func TestSendDataFrameRequiresConnection(t *testing.T) {
	codec := ash.NewCodec()
	uart := &fakeUart{}
	timer := &fakeTimer{}
	d := New(codec, uart, &fakeTimerBuilder{timer: timer}, discardLogger())

	if err := d.SendDataFrame([]byte{0x01}); err != ash.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestAckReceivedCancelsRetransmitTimer(t *testing.T) {
	codec := ash.NewCodec()
	uart := &fakeUart{}
	timer := &fakeTimer{}
	d := New(codec, uart, &fakeTimerBuilder{timer: timer}, discardLogger())

	d.SendResetNCPFrame()
	d.Decode(buildRstAckFrame())
	if timer.running {
		t.Fatalf("expected RSTACK to cancel the reset timer")
	}
	if !d.IsConnected() {
		t.Fatalf("expected driver connected after RSTACK")
	}
}

// buildRstAckFrame constructs a minimal RSTACK wire frame without
// depending on ash's unexported stuffing helper, applying the same
// escape rule inline for whichever bytes happen to need it.
func buildRstAckFrame() []byte {
	body := []byte{0xC1}
	crc := ash.CRC16(body)
	raw := append(append([]byte{}, body...), byte(crc>>8), byte(crc))

	reserved := map[byte]bool{
		ash.FlagByte: true, ash.EscapeByte: true, ash.XonByte: true,
		ash.XoffByte: true, ash.SubstituteByte: true, ash.CancelByte: true,
	}
	out := make([]byte, 0, len(raw)+2)
	for _, b := range raw {
		if reserved[b] {
			out = append(out, ash.EscapeByte, b^0x20)
		} else {
			out = append(out, b)
		}
	}
	return append(out, ash.FlagByte)
}
