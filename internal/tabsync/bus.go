package tabsync

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/shared"
)

// DefaultQueueSize bounds each receiver's backlog.
const DefaultQueueSize = 64

// Bus is an in-process broadcast medium. Endpoints opened under the same
// channel name receive each other's messages, never their own.
type Bus struct {
	queueSize int
	logger    *log.Logger

	mu       sync.RWMutex
	channels map[string]map[*Endpoint]struct{}
}

// NewBus creates an empty [Bus]. A nil logger discards output.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Bus{
		queueSize: DefaultQueueSize,
		logger:    logger,
		channels:  make(map[string]map[*Endpoint]struct{}),
	}
}

// Open attaches a new [Endpoint] to channel name.
func (b *Bus) Open(name string) *Endpoint {
	e := &Endpoint{bus: b, name: name, subs: make(map[int]*mailbox[[]byte])}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[name] == nil {
		b.channels[name] = make(map[*Endpoint]struct{})
	}
	b.channels[name][e] = struct{}{}
	return e
}

func (b *Bus) deliver(from *Endpoint, payload []byte) {
	b.mu.RLock()
	peers := make([]*Endpoint, 0, len(b.channels[from.name]))
	for e := range b.channels[from.name] {
		if e != from {
			peers = append(peers, e)
		}
	}
	b.mu.RUnlock()

	for _, e := range peers {
		e.enqueue(payload)
	}
}

func (b *Bus) detach(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels[e.name], e)
	if len(b.channels[e.name]) == 0 {
		delete(b.channels, e.name)
	}
}

// Endpoint is one context's handle on a [Bus] channel. It implements [Transport].
type Endpoint struct {
	bus  *Bus
	name string

	mu     sync.Mutex
	subs   map[int]*mailbox[[]byte]
	next   int
	closed bool
}

// Publish hands a copy of payload to every other endpoint on the channel.
func (e *Endpoint) Publish(ctx context.Context, _ string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: endpoint %s", shared.ErrTransportClosed, e.name)
	}

	e.bus.deliver(e, payload)
	return nil
}

func (e *Endpoint) enqueue(payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		if !sub.offer(bytes.Clone(payload)) {
			e.bus.logger.Warn("dropping sync message, receiver queue full", "channel", e.name)
		}
	}
}

// Subscribe delivers payloads from other endpoints to handler, in order.
func (e *Endpoint) Subscribe(handler func([]byte)) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("%w: endpoint %s", shared.ErrTransportClosed, e.name)
	}

	id := e.next
	e.next++
	box := newMailbox(e.bus.queueSize, handler)
	e.subs[id] = box

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
		box.close()
	}, nil
}

// Close detaches the endpoint and stops its subscribers.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	subs := e.subs
	e.subs = make(map[int]*mailbox[[]byte])
	e.mu.Unlock()

	e.bus.detach(e)
	for _, box := range subs {
		box.close()
	}
	return nil
}
