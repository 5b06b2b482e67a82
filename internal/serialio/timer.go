package serialio

import "time"

// TimerOwner is notified when a Timer it started fires.
type TimerOwner interface {
	Trigger(t Timer)
}

// Timer is a single-shot timer. Start is safe to call on an already
// running timer (it restarts it); Stop is safe to call after the timer
// has already fired or been stopped.
type Timer interface {
	Start(d time.Duration, owner TimerOwner)
	Stop()
}

// TimerBuilder creates Timer instances. The core never starts or stops
// a clock itself; it only asks a builder for timers, so tests can
// substitute a fake one.
type TimerBuilder interface {
	Create() Timer
}
