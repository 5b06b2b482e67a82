package serialio

import "context"

// EventLoop serializes UART read callbacks and timer fires onto a single
// goroutine, matching the cooperative single-threaded event loop the
// core's concurrency model assumes (see the package doc of ash, blp,
// ashdriver and dongle: none of those packages take any locks because
// every mutating call is expected to arrive from the same goroutine).
// Background goroutines (the serial port reader, time.AfterFunc
// callbacks) never call into the core directly; they Post a task here
// and the single Run goroutine executes it.
type EventLoop struct {
	tasks chan func()
}

// NewEventLoop creates an EventLoop with the given task backlog size.
func NewEventLoop(backlog int) *EventLoop {
	if backlog <= 0 {
		backlog = 64
	}
	return &EventLoop{tasks: make(chan func(), backlog)}
}

// Post enqueues a task for execution on the loop's goroutine. It blocks
// if the backlog is full, which is the loop's only form of backpressure;
// callers are expected to keep tasks small (decode a burst of bytes,
// fire one timer).
func (l *EventLoop) Post(task func()) {
	l.tasks <- task
}

// Run executes posted tasks one at a time until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			task()
		}
	}
}
