package tabsync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/shared"
)

// DefaultClear is how long a published key stays in the namespace.
const DefaultClear = 50 * time.Millisecond

// Namespace is a shared key-value space whose changes other contexts can watch.
// Removals are reported with a nil value.
type Namespace interface {
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Watch(ctx context.Context, prefix string, fn func(key string, value []byte)) (func(), error)
}

// NamespaceOpts configures a [NamespaceTransport].
type NamespaceOpts struct {
	Prefix string        // Prefix is prepended to the store id to form the key
	Clear  time.Duration // Clear is the delay before a written key is removed (default 50ms)
	Logger *log.Logger
}

// NamespaceTransport publishes by writing a key and removing it shortly after,
// so watchers in other contexts observe the write as an event.
type NamespaceTransport struct {
	ns     Namespace
	prefix string
	clear  time.Duration
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]pendingClear
	gen     uint64
	cancels []func()
	closed  bool
}

type pendingClear struct {
	timer *time.Timer
	gen   uint64
}

// NewNamespaceTransport creates a [NamespaceTransport] over ns.
func NewNamespaceTransport(ns Namespace, opts NamespaceOpts) *NamespaceTransport {
	if opts.Clear <= 0 {
		opts.Clear = DefaultClear
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	return &NamespaceTransport{
		ns:      ns,
		prefix:  opts.Prefix,
		clear:   opts.Clear,
		logger:  opts.Logger,
		pending: make(map[string]pendingClear),
	}
}

// Publish writes payload under prefix+topic and schedules its removal.
func (t *NamespaceTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: namespace transport", shared.ErrTransportClosed)
	}

	key := t.prefix + topic
	if err := t.ns.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("failed to write sync key %s: %w", key, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.pending[key]; ok {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending[key] = pendingClear{gen: gen, timer: time.AfterFunc(t.clear, func() { t.expire(key, gen) })}
	return nil
}

func (t *NamespaceTransport) expire(key string, gen uint64) {
	t.mu.Lock()
	p, ok := t.pending[key]
	if !ok || p.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	t.mu.Unlock()

	t.remove(key)
}

func (t *NamespaceTransport) remove(key string) {
	if err := t.ns.Remove(context.Background(), key); err != nil {
		t.logger.Warn("failed to clear sync key", "key", key, "error", err)
	}
}

// Subscribe delivers every write under the prefix to handler. Removals are skipped.
func (t *NamespaceTransport) Subscribe(handler func([]byte)) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("%w: namespace transport", shared.ErrTransportClosed)
	}

	cancel, err := t.ns.Watch(context.Background(), t.prefix, func(_ string, value []byte) {
		if value == nil {
			return
		}
		handler(value)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch sync namespace: %w", err)
	}
	t.cancels = append(t.cancels, cancel)
	return cancel, nil
}

// Close removes keys still awaiting their clear delay and stops all watches.
func (t *NamespaceTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var keys []string
	for key, p := range t.pending {
		if p.timer.Stop() {
			keys = append(keys, key)
		}
	}
	t.pending = make(map[string]pendingClear)
	cancels := t.cancels
	t.cancels = nil
	t.mu.Unlock()

	for _, key := range keys {
		t.remove(key)
	}
	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

type namespaceEvent struct {
	key   string
	value []byte
}

type namespaceWatcher struct {
	prefix string
	box    *mailbox[namespaceEvent]
}

// MemoryNamespace is an in-process [Namespace]. Watchers run on their own goroutines.
type MemoryNamespace struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[int]*namespaceWatcher
	next     int
}

// NewMemoryNamespace creates an empty [MemoryNamespace].
func NewMemoryNamespace() *MemoryNamespace {
	return &MemoryNamespace{
		data:     make(map[string][]byte),
		watchers: make(map[int]*namespaceWatcher),
	}
}

func (n *MemoryNamespace) Set(_ context.Context, key string, value []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data[key] = bytes.Clone(value)
	n.emit(key, value)
	return nil
}

func (n *MemoryNamespace) Remove(_ context.Context, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.data[key]; !ok {
		return nil
	}
	delete(n.data, key)
	n.emit(key, nil)
	return nil
}

// Value returns the current value of key.
func (n *MemoryNamespace) Value(key string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.data[key]
	return bytes.Clone(v), ok
}

// emit must be called with n.mu held.
func (n *MemoryNamespace) emit(key string, value []byte) {
	for _, w := range n.watchers {
		if strings.HasPrefix(key, w.prefix) {
			w.box.offer(namespaceEvent{key: key, value: bytes.Clone(value)})
		}
	}
}

func (n *MemoryNamespace) Watch(ctx context.Context, prefix string, fn func(key string, value []byte)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := newMailbox(DefaultQueueSize, func(e namespaceEvent) { fn(e.key, e.value) })

	n.mu.Lock()
	id := n.next
	n.next++
	n.watchers[id] = &namespaceWatcher{prefix: prefix, box: box}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.watchers, id)
			n.mu.Unlock()
			box.close()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}, nil
}
