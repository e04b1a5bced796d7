package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
)

// Kind tells observers how a mutation was made.
type Kind int

const (
	Direct Kind = iota // Direct is a local mutation through Update
	Patch              // Patch is a top-level patch, usually an inbound sync message
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Patch:
		return "patch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Mutation is delivered to observers after state changed.
type Mutation struct {
	StoreID string
	Kind    Kind
	Fields  []string // Fields lists the changed field names in table order
}

// Observer receives mutations. It is called outside the mirror's lock.
type Observer func(Mutation)

type observerEntry struct {
	id int
	fn Observer
}

// Mirror holds the state of one store and keeps it persisted.
type Mirror[S any] struct {
	id      string
	durable *storage.Durable
	logger  *log.Logger
	fields  []Field[S]
	index   map[string]int

	mu    sync.Mutex
	state S

	obsMu     sync.Mutex
	observers []observerEntry
	nextObs   int
}

// New creates a [Mirror] for store id with initial as the built-in default state.
func New[S any](id string, initial S, durable *storage.Durable, logger *log.Logger, fields ...Field[S]) *Mirror[S] {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}

	m := &Mirror[S]{
		id:      id,
		durable: durable,
		logger:  shared.WithLogger(logger, "store", id),
		fields:  fields,
		index:   make(map[string]int, len(fields)),
		state:   initial,
	}
	for i, f := range fields {
		m.index[f.name] = i
	}
	return m
}

// ID returns the store id.
func (m *Mirror[S]) ID() string { return m.id }

// Fields lists the field names in table order.
func (m *Mirror[S]) Fields() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.name
	}
	return names
}

// InitStorage loads every field from the durable store. Fields without a
// persisted value keep their current value. Failures are logged and joined;
// the affected fields keep their defaults.
func (m *Mirror[S]) InitStorage(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, f := range m.fields {
		if err := f.load(ctx, m.durable, &m.state); err != nil {
			m.logger.Warn("failed to load field, keeping default", "field", f.name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State returns a deep copy of the current state.
func (m *Mirror[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.clone(&m.state)
	if err != nil {
		m.logger.Error("failed to copy state", "error", err)
	}
	return out
}

// Update applies fn to the state, persists every changed field and notifies
// observers with a [Direct] mutation.
//
// Persistence errors are returned; the in-memory state keeps the change.
func (m *Mirror[S]) Update(ctx context.Context, fn func(*S)) error {
	m.mu.Lock()
	before, err := m.encodeAll(&m.state)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	fn(&m.state)

	changed, err := m.diff(before, &m.state)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	perr := m.persist(ctx, changed)
	m.mu.Unlock()

	m.notify(Direct, changed)
	return perr
}

// Patch decodes each entry of patch into its field and persists the result.
//
// Unknown field names are ignored. If any entry fails to decode the state is
// left untouched and an error wrapping [shared.ErrMalformedMessage] is returned.
func (m *Mirror[S]) Patch(ctx context.Context, patch map[string]json.RawMessage) error {
	m.mu.Lock()
	before, err := m.encodeAll(&m.state)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	next, err := m.clone(&m.state)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	for _, f := range m.fields {
		data, ok := patch[f.name]
		if !ok {
			continue
		}
		if err := f.decode(&next, data); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
		}
	}
	for name := range patch {
		if _, ok := m.index[name]; !ok {
			m.logger.Debug("ignoring unknown field in patch", "field", name)
		}
	}

	changed, err := m.diff(before, &next)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	perr := m.persist(ctx, changed)
	m.mu.Unlock()

	m.notify(Patch, changed)
	return perr
}

// Snapshot returns every field as JSON, keyed by field name.
func (m *Mirror[S]) Snapshot() (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]json.RawMessage, len(m.fields))
	for _, f := range m.fields {
		data, err := f.encode(&m.state)
		if err != nil {
			return nil, err
		}
		out[f.name] = data
	}
	return out, nil
}

// Subscribe registers fn and returns a func that removes it.
func (m *Mirror[S]) Subscribe(fn Observer) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	id := m.nextObs
	m.nextObs++
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.obsMu.Lock()
			defer m.obsMu.Unlock()
			for i, o := range m.observers {
				if o.id == id {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Mirror[S]) notify(kind Kind, changed []int) {
	if len(changed) == 0 {
		return
	}

	mut := Mutation{StoreID: m.id, Kind: kind, Fields: make([]string, len(changed))}
	for i, idx := range changed {
		mut.Fields[i] = m.fields[idx].name
	}

	m.obsMu.Lock()
	observers := make([]observerEntry, len(m.observers))
	copy(observers, m.observers)
	m.obsMu.Unlock()

	for _, o := range observers {
		o.fn(mut)
	}
}

func (m *Mirror[S]) persist(ctx context.Context, changed []int) error {
	var errs []error
	for _, idx := range changed {
		if err := m.fields[idx].persist(ctx, m.durable, &m.state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mirror[S]) encodeAll(s *S) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(m.fields))
	for i, f := range m.fields {
		data, err := f.encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

// diff returns the indexes of fields whose encoding differs from before.
func (m *Mirror[S]) diff(before []json.RawMessage, s *S) ([]int, error) {
	after, err := m.encodeAll(s)
	if err != nil {
		return nil, err
	}

	var changed []int
	for i := range m.fields {
		if !bytes.Equal(before[i], after[i]) {
			changed = append(changed, i)
		}
	}
	return changed, nil
}

// clone copies s field by field through JSON, so the copy shares no memory with s.
func (m *Mirror[S]) clone(s *S) (S, error) {
	out := *s
	for _, f := range m.fields {
		data, err := f.encode(s)
		if err != nil {
			return out, err
		}
		if err := f.decode(&out, data); err != nil {
			return out, err
		}
	}
	return out, nil
}
