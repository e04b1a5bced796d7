package tabsync

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/shared"
)

// DefaultSettle is how long a store stays syncing after an inbound patch.
const DefaultSettle = 200 * time.Millisecond

// Store is the surface of a mirrored store the coordinator needs.
// [mirror.Mirror] satisfies it.
type Store interface {
	ID() string
	Snapshot() (map[string]json.RawMessage, error)
	Patch(ctx context.Context, patch map[string]json.RawMessage) error
	Subscribe(fn mirror.Observer) func()
}

// Options configures a [Coordinator].
type Options struct {
	OriginID string        // OriginID identifies this context; generated when empty
	Settle   time.Duration // Settle is the post-patch grace period (default 200ms)
	Now      func() time.Time
	Logger   *log.Logger
}

// Coordinator is one execution context taking part in sync.
type Coordinator struct {
	origin    string
	transport Transport
	settle    time.Duration
	now       func() time.Time
	logger    *log.Logger
	stats     Stats

	mu          sync.Mutex
	regs        map[string]*Registration
	lastTS      int64
	closed      bool
	unsubscribe func()
}

// NewCoordinator creates a [Coordinator] listening on transport.
//
// A nil transport gives a coordinator that registers stores but never sends
// or receives anything.
func NewCoordinator(transport Transport, opts Options) (*Coordinator, error) {
	if opts.OriginID == "" {
		opts.OriginID = shared.GenerateOriginID()
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}

	c := &Coordinator{
		origin:    opts.OriginID,
		transport: transport,
		settle:    opts.Settle,
		now:       opts.Now,
		logger:    shared.WithLogger(opts.Logger, "origin", opts.OriginID),
		regs:      make(map[string]*Registration),
	}

	if transport != nil {
		unsubscribe, err := transport.Subscribe(c.HandleRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to sync transport: %w", err)
		}
		c.unsubscribe = unsubscribe
	}

	return c, nil
}

// OriginID returns the id stamped on every outgoing message.
func (c *Coordinator) OriginID() string { return c.origin }

// Stats returns the coordinator's counters.
func (c *Coordinator) Stats() *Stats { return &c.stats }

// Register opts store into sync.
//
// A disabled cfg registers nothing and returns a nil [Registration].
func (c *Coordinator) Register(store Store, cfg Config) (*Registration, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	id := store.ID()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: coordinator closed", shared.ErrTransportClosed)
	}
	if _, ok := c.regs[id]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", shared.ErrStoreRegistered, id)
	}
	reg := newRegistration(c, store, cfg)
	c.regs[id] = reg
	c.mu.Unlock()

	reg.attach()
	c.logger.Debug("registered store for sync", "store", id, "debounce", cfg.Debounce, "conflict", cfg.ConflictResolution)
	return reg, nil
}

// Registration returns the registration of storeID, or nil.
func (c *Coordinator) Registration(storeID string) *Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[storeID]
}

// StoreIDs lists the registered stores in sorted order.
func (c *Coordinator) StoreIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.regs))
}

// Dispose unregisters storeID and cancels its timers. It reports whether the store was registered.
func (c *Coordinator) Dispose(storeID string) bool {
	c.mu.Lock()
	reg, ok := c.regs[storeID]
	delete(c.regs, storeID)
	c.mu.Unlock()

	if !ok {
		return false
	}
	reg.dispose()
	c.logger.Debug("disposed store sync", "store", storeID)
	return true
}

// HandleRaw decodes payload and hands it to [Coordinator.Handle]. Malformed
// payloads are dropped silently.
func (c *Coordinator) HandleRaw(payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		c.stats.Received.Add(1)
		c.stats.DroppedMalformed.Add(1)
		c.logger.Debug("dropping malformed sync payload", "error", err)
		return
	}
	c.Handle(context.Background(), msg)
}

// Handle runs the ingestion guards on msg and applies it when they pass.
func (c *Coordinator) Handle(ctx context.Context, msg Message) {
	c.stats.Received.Add(1)

	if err := msg.Validate(); err != nil {
		c.stats.DroppedMalformed.Add(1)
		c.logger.Debug("dropping malformed sync message", "error", err)
		return
	}
	if msg.OriginID == c.origin {
		c.stats.DroppedEcho.Add(1)
		return
	}

	reg := c.Registration(msg.StoreID)
	if reg == nil {
		c.stats.DroppedUnknown.Add(1)
		c.logger.Warn("no store registered for sync message", "store", msg.StoreID)
		return
	}

	c.witness(msg.Timestamp)
	reg.ingest(ctx, msg)
}

// Flush sends every pending broadcast now.
func (c *Coordinator) Flush() {
	for _, reg := range c.registrations() {
		reg.broadcaster.Flush()
	}
}

// Close stops listening, sends pending local changes and disposes every
// registration. The transport is left open for its owner to close.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	regs := slices.Collect(maps.Values(c.regs))
	c.regs = make(map[string]*Registration)
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, reg := range regs {
		reg.drain()
		reg.dispose()
	}
	return nil
}

func (c *Coordinator) registrations() []*Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Collect(maps.Values(c.regs))
}

// nextTimestamp returns wall-clock milliseconds, strictly increasing per coordinator.
func (c *Coordinator) nextTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.lastTS {
		ts = c.lastTS + 1
	}
	c.lastTS = ts
	return ts
}

// witness advances the clock past a timestamp seen from another context.
func (c *Coordinator) witness(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.lastTS {
		c.lastTS = ts
	}
}

func (c *Coordinator) publish(ctx context.Context, topic string, payload []byte) error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Publish(ctx, topic, payload)
}
