package tabsync

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/shared"
)

// SyncState is the ingestion state of a registered store.
type SyncState int

const (
	SyncIdle SyncState = iota // SyncIdle accepts inbound messages and broadcasts local changes
	Syncing                   // Syncing is applying or settling an inbound patch
)

func (s SyncState) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

// Registration is the sync state of one store within a [Coordinator].
type Registration struct {
	c           *Coordinator
	store       Store
	cfg         Config
	logger      *log.Logger
	broadcaster *Broadcaster

	mu             sync.Mutex
	state          SyncState
	lastSyncTime   int64
	pendingLocal   bool // pendingLocal records local changes suppressed while syncing
	pendingInbound *Message
	settleTimer    *time.Timer
	unsubscribe    func()
	disposed       bool
}

func newRegistration(c *Coordinator, store Store, cfg Config) *Registration {
	r := &Registration{
		c:      c,
		store:  store,
		cfg:    cfg,
		logger: shared.WithLogger(c.logger, "store", store.ID()),
	}
	r.lastSyncTime = c.now().UnixMilli()
	r.broadcaster = NewBroadcaster(cfg.Debounce, r.send)
	return r
}

// StoreID returns the registered store's id.
func (r *Registration) StoreID() string { return r.store.ID() }

// Config returns the normalized sync config.
func (r *Registration) Config() Config { return r.cfg }

// Broadcaster returns the store's debounce state machine.
func (r *Registration) Broadcaster() *Broadcaster { return r.broadcaster }

// State returns the ingestion state.
func (r *Registration) State() SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastSyncTime returns the timestamp of the newest applied message, or the
// registration time when nothing was applied yet.
func (r *Registration) LastSyncTime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSyncTime
}

func (r *Registration) attach() {
	unsubscribe := r.store.Subscribe(r.observe)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		unsubscribe()
		return
	}
	r.unsubscribe = unsubscribe
}

// observe reacts to store mutations. Patches come from ingestion and are
// never echoed back out.
func (r *Registration) observe(m mirror.Mutation) {
	if m.Kind == mirror.Patch {
		return
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	if r.state == Syncing {
		r.pendingLocal = true
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.broadcaster.Trigger()
}

// send publishes the filtered state. Failures are logged and counted.
func (r *Registration) send() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	if r.state == Syncing {
		r.pendingLocal = true
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	snapshot, err := r.store.Snapshot()
	if err != nil {
		r.c.stats.SendFailed.Add(1)
		r.logger.Warn("failed to snapshot store, skipping broadcast", "error", err)
		return
	}

	msg := Message{
		Kind:      MessageKind,
		StoreID:   r.store.ID(),
		State:     Filter(snapshot, r.cfg),
		Timestamp: r.c.nextTimestamp(),
		OriginID:  r.c.origin,
	}
	payload, err := msg.Encode()
	if err != nil {
		r.c.stats.SendFailed.Add(1)
		r.logger.Warn("failed to encode broadcast", "error", err)
		return
	}

	if err := r.c.publish(context.Background(), msg.StoreID, payload); err != nil {
		r.c.stats.SendFailed.Add(1)
		r.logger.Warn("failed to broadcast state", "error", err)
		return
	}

	r.c.stats.Sent.Add(1)
	r.logger.Debug("broadcast state", "fields", len(msg.State), "timestamp", msg.Timestamp)
}

// ingest applies msg unless a guard drops it.
func (r *Registration) ingest(ctx context.Context, msg Message) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	if r.cfg.ConflictResolution == Ignore {
		r.mu.Unlock()
		r.c.stats.DroppedIgnored.Add(1)
		return
	}
	if msg.Timestamp <= r.lastSyncTime {
		r.mu.Unlock()
		r.c.stats.DroppedStale.Add(1)
		return
	}
	if r.state == Syncing {
		if r.pendingInbound == nil || msg.Timestamp > r.pendingInbound.Timestamp {
			r.pendingInbound = &msg
		}
		r.mu.Unlock()
		r.c.stats.Deferred.Add(1)
		return
	}
	r.state = Syncing
	r.lastSyncTime = msg.Timestamp
	r.mu.Unlock()

	r.apply(ctx, msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.disposed {
		r.settleTimer = time.AfterFunc(r.c.settle, r.settled)
	}
}

func (r *Registration) apply(ctx context.Context, msg Message) {
	patch := Filter(msg.State, r.cfg)
	if r.cfg.ConflictResolution == Merge {
		current, err := r.store.Snapshot()
		if err != nil {
			r.logger.Warn("failed to snapshot store for merge, overwriting", "error", err)
		}
		patch = mergeFields(current, patch)
	}

	if err := r.store.Patch(ctx, patch); err != nil {
		r.c.stats.ApplyFailed.Add(1)
		r.logger.Warn("failed to apply sync message", "from", msg.OriginID, "error", err)
		return
	}

	r.c.stats.Applied.Add(1)
	r.logger.Debug("applied sync message", "from", msg.OriginID, "fields", len(patch), "timestamp", msg.Timestamp)
}

// settled ends the syncing state. A message deferred meanwhile is applied
// next; otherwise local changes made meanwhile are broadcast.
func (r *Registration) settled() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.state = SyncIdle
	r.settleTimer = nil

	if next := r.pendingInbound; next != nil {
		r.pendingInbound = nil
		r.mu.Unlock()
		r.ingest(context.Background(), *next)
		return
	}

	local := r.pendingLocal
	r.pendingLocal = false
	r.mu.Unlock()

	if local {
		r.broadcaster.Trigger()
	}
}

// drain sends pending local changes immediately, even mid-settle.
func (r *Registration) drain() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	if r.settleTimer != nil {
		r.settleTimer.Stop()
		r.settleTimer = nil
	}
	r.state = SyncIdle
	r.pendingInbound = nil
	local := r.pendingLocal
	r.pendingLocal = false
	r.mu.Unlock()

	if !r.broadcaster.Flush() && local {
		r.send()
	}
}

func (r *Registration) dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	if r.settleTimer != nil {
		r.settleTimer.Stop()
		r.settleTimer = nil
	}
	r.pendingInbound = nil
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	r.broadcaster.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
}
