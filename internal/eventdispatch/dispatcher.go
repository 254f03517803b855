package eventdispatch

import "sync"

// Dispatcher fans a stream of Events out to one buffered channel for
// live consumers (the Node Facade's Events() method) while also
// appending every event to a bounded Log for later Snapshot() reads.
// Sends to the live channel are non-blocking: a slow or absent consumer
// never blocks the subsystem emitting the event.
type Dispatcher struct {
	log *Log

	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewDispatcher creates a dispatcher backed by log, with a live channel
// buffered to bufferSize.
func NewDispatcher(log *Log, bufferSize int) *Dispatcher {
	if log == nil {
		log = NewLog(DefaultCapacity)
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Dispatcher{
		log:    log,
		events: make(chan Event, bufferSize),
	}
}

// Emit records ev in the log and forwards it to the live channel,
// dropping the live forward if the channel is full.
func (d *Dispatcher) Emit(ev Event) {
	d.log.Append(ev)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
	}
}

// Events returns the live event channel. It is closed when the
// dispatcher is closed.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// Snapshot returns every event currently retained in the backing log.
func (d *Dispatcher) Snapshot() []Event {
	return d.log.Snapshot()
}

// Close closes the live channel. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
}

// IsClosed reports whether the dispatcher has been closed.
func (d *Dispatcher) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
