package tabsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/picasync/internal/shared"
)

// Transport carries encoded messages between contexts. Delivery is best
// effort and at most once per receiver.
type Transport interface {
	// Publish sends payload; topic is the store id.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers handler for payloads from other contexts. The returned
	// func unsubscribes and must not be called from inside handler.
	Subscribe(handler func(payload []byte)) (func(), error)
	Close() error
}

// mailbox runs a handler over a bounded queue on its own goroutine.
type mailbox[T any] struct {
	queue   chan T
	done    chan struct{}
	handler func(T)
	wg      sync.WaitGroup
	once    sync.Once
}

func newMailbox[T any](size int, handler func(T)) *mailbox[T] {
	m := &mailbox[T]{
		queue:   make(chan T, size),
		done:    make(chan struct{}),
		handler: handler,
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *mailbox[T]) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case v := <-m.queue:
			m.handler(v)
		}
	}
}

// offer enqueues v without blocking and reports whether it was accepted.
func (m *mailbox[T]) offer(v T) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.queue <- v:
		return true
	default:
		return false
	}
}

func (m *mailbox[T]) close() {
	m.once.Do(func() { close(m.done) })
	m.wg.Wait()
}

// Dual publishes on Primary when present, else on Fallback, and listens on both.
type Dual struct {
	Primary  Transport
	Fallback Transport
}

// NewDual creates a [Dual]. Either side may be nil.
func NewDual(primary, fallback Transport) *Dual {
	return &Dual{Primary: primary, Fallback: fallback}
}

func (d *Dual) Publish(ctx context.Context, topic string, payload []byte) error {
	switch {
	case d.Primary != nil:
		return d.Primary.Publish(ctx, topic, payload)
	case d.Fallback != nil:
		return d.Fallback.Publish(ctx, topic, payload)
	default:
		return fmt.Errorf("%w: no sync transport", shared.ErrServiceUnavailable)
	}
}

func (d *Dual) Subscribe(handler func([]byte)) (func(), error) {
	var cancels []func()
	for _, t := range []Transport{d.Primary, d.Fallback} {
		if t == nil {
			continue
		}
		cancel, err := t.Subscribe(handler)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}, nil
}

func (d *Dual) Close() error {
	var errs []error
	for _, t := range []Transport{d.Primary, d.Fallback} {
		if t != nil {
			errs = append(errs, t.Close())
		}
	}
	return errors.Join(errs...)
}
