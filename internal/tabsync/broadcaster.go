package tabsync

import (
	"sync"
	"time"
)

// BroadcastState is the debounce state of a [Broadcaster].
type BroadcastState int

const (
	BroadcastIdle    BroadcastState = iota // BroadcastIdle has no send scheduled
	BroadcastPending                       // BroadcastPending has a trailing-edge send scheduled
)

func (s BroadcastState) String() string {
	if s == BroadcastPending {
		return "pending"
	}
	return "idle"
}

// Broadcaster coalesces triggers into one call of fire per quiet window.
type Broadcaster struct {
	delay time.Duration
	fire  func()

	mu      sync.Mutex
	state   BroadcastState
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewBroadcaster creates an idle [Broadcaster] that calls fire delay after the last trigger.
func NewBroadcaster(delay time.Duration, fire func()) *Broadcaster {
	return &Broadcaster{delay: delay, fire: fire}
}

// Trigger schedules a send, replacing any send already scheduled.
func (b *Broadcaster) Trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.state = BroadcastPending
	b.timer = time.AfterFunc(b.delay, func() { b.expire(gen) })
}

func (b *Broadcaster) expire(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || b.state != BroadcastPending {
		b.mu.Unlock()
		return
	}
	b.state = BroadcastIdle
	b.timer = nil
	b.mu.Unlock()

	b.fire()
}

// Flush sends immediately when a send is pending and reports whether it did.
func (b *Broadcaster) Flush() bool {
	b.mu.Lock()
	if b.state != BroadcastPending {
		b.mu.Unlock()
		return false
	}
	b.timer.Stop()
	b.timer = nil
	b.gen++
	b.state = BroadcastIdle
	b.mu.Unlock()

	b.fire()
	return true
}

// Stop cancels any scheduled send. Later triggers are ignored.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.state = BroadcastIdle
	b.stopped = true
}

// State returns the current debounce state.
func (b *Broadcaster) State() BroadcastState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
