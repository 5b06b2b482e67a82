package serialio

import (
	"sync"
	"time"
)

// systemTimer implements Timer on top of time.AfterFunc. The fire
// callback is posted to the owning EventLoop rather than invoking the
// owner directly, because time.AfterFunc runs its callback on its own
// goroutine.
type systemTimer struct {
	loop *EventLoop

	mu    sync.Mutex
	t     *time.Timer
	owner TimerOwner
	gen   uint64 // bumped on every Start/Stop to ignore stale fires
}

// SystemTimerBuilder creates systemTimer instances bound to loop.
type SystemTimerBuilder struct {
	loop *EventLoop
}

// NewSystemTimerBuilder returns a TimerBuilder whose timers post their
// fire events to loop.
func NewSystemTimerBuilder(loop *EventLoop) *SystemTimerBuilder {
	return &SystemTimerBuilder{loop: loop}
}

func (b *SystemTimerBuilder) Create() Timer {
	return &systemTimer{loop: b.loop}
}

func (t *systemTimer) Start(d time.Duration, owner TimerOwner) {
	t.mu.Lock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.owner = owner
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		stillCurrent := gen == t.gen
		o := t.owner
		t.mu.Unlock()
		if stillCurrent && o != nil {
			t.loop.Post(func() {
				t.mu.Lock()
				current := gen == t.gen
				t.mu.Unlock()
				if current {
					o.Trigger(t)
				}
			})
		}
	})
	t.mu.Unlock()
}

func (t *systemTimer) Stop() {
	t.mu.Lock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	t.mu.Unlock()
}
