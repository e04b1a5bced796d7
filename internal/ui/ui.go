package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/picasync/internal/formatter"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/tabsync"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	DetailView
)

// Source is a store the inspector can display and observe.
type Source interface {
	ID() string
	Snapshot() (map[string]json.RawMessage, error)
	Subscribe(fn mirror.Observer) func()
}

// Options configures the status line.
type Options struct {
	Origin string
	Stats  *tabsync.Stats // Stats is optional; nil means sync is disabled
	Tick   time.Duration  // Tick is the status refresh interval (default 1s)
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	sources    []Source
	origin     string
	stats      *tabsync.Stats
	tick       time.Duration
	changes    chan mirror.Mutation
	closeOnce  sync.Once
	unsubs     []func()
	fieldList  list.Model
	changed    map[string]bool
	lastChange *mirror.Mutation
	width      int
	height     int
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates an inspector over sources and starts observing them.
// Call [Model.Close] when the program exits.
func NewModel(ctx context.Context, sources []Source, opts Options) *Model {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}

	fieldList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	fieldList.Title = "Stores"
	fieldList.SetFilteringEnabled(false)
	fieldList.SetShowHelp(false)

	m := &Model{
		ctx:       ctx,
		view:      ListView,
		sources:   sources,
		origin:    opts.Origin,
		stats:     opts.Stats,
		tick:      opts.Tick,
		changes:   make(chan mirror.Mutation, 64),
		fieldList: fieldList,
		changed:   map[string]bool{},
		help:      help.New(),
		keys:      newKeyMap(),
	}

	for _, s := range sources {
		m.unsubs = append(m.unsubs, s.Subscribe(m.observe))
	}
	return m
}

// observe runs on the mutating goroutine. Every change reloads all stores, so
// a notice dropped on a full channel is covered by the one already queued.
func (m *Model) observe(mu mirror.Mutation) {
	select {
	case m.changes <- mu:
	default:
	}
}

// Close stops observing the stores.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		for _, unsub := range m.unsubs {
			unsub()
		}
	})
}

// Init loads the stores and starts waiting for changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForChange(), m.tickCmd())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fieldList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.fieldList, cmd = m.fieldList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshotsLoaded:
		data := msg.data.(snapshotsLoaded)
		m.err = data.err
		if data.err == nil {
			cmd := m.fieldList.SetItems(toItems(data.snapshots, m.changed))
			return m, cmd
		}
		return m, nil

	case MsgStoreChanged:
		mu := msg.data.(mirror.Mutation)
		m.lastChange = &mu
		m.changed = make(map[string]bool, len(mu.Fields))
		for _, f := range mu.Fields {
			m.changed[mu.StoreID+"."+f] = true
		}
		return m, tea.Batch(m.load(), m.waitForChange())

	case MsgTick:
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Close()
		return m, tea.Quit
	case "r":
		m.changed = map[string]bool{}
		return m, m.load()
	case "enter":
		if m.view == ListView && m.fieldList.SelectedItem() != nil {
			m.view = DetailView
		} else {
			m.view = ListView
		}
		return m, nil
	case "esc":
		m.view = ListView
		return m, nil
	}

	if m.view != ListView {
		return m, nil
	}

	var cmd tea.Cmd
	m.fieldList, cmd = m.fieldList.Update(msg)
	return m, cmd
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		snapshots := make([]formatter.Snapshot, 0, len(m.sources))
		for _, s := range m.sources {
			fields, err := s.Snapshot()
			if err != nil {
				return snapshotsLoadedMsg(nil, fmt.Errorf("failed to read store %s: %w", s.ID(), err))
			}
			snapshots = append(snapshots, formatter.Snapshot{StoreID: s.ID(), Fields: fields})
		}
		return snapshotsLoadedMsg(snapshots, nil)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case mu := <-m.changes:
			return storeChangedMsg(mu)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to reload, q to quit", m.err))
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	switch m.view {
	case DetailView:
		return fmt.Sprintf("%s\n\n%s\n%s", m.renderDetail(), m.statusLine(), helpView)
	default:
		return fmt.Sprintf("%s\n%s\n%s", m.fieldList.View(), m.statusLine(), helpView)
	}
}

func (m *Model) renderDetail() string {
	item, ok := m.fieldList.SelectedItem().(fieldItem)
	if !ok {
		return styles.warn.Render("No field selected")
	}
	title := styles.title.Render(fmt.Sprintf("%s • %s", item.storeID, item.name))
	return fmt.Sprintf("%s\n%s", title, formatter.Indent(item.value))
}

// statusLine shows the origin, the sync counters and the last change.
func (m *Model) statusLine() string {
	var b strings.Builder

	if m.stats == nil {
		b.WriteString("sync disabled")
	} else {
		counters := m.stats.Snapshot()
		var dropped int64
		for name, v := range counters {
			if strings.HasPrefix(name, "dropped_") {
				dropped += v
			}
		}
		fmt.Fprintf(&b, "origin %s │ sent %d · received %d · applied %d · dropped %d",
			m.origin, counters["sent_total"], counters["received_total"], counters["applied_total"], dropped)
		if failed := counters["send_failed_total"] + counters["apply_failed_total"]; failed > 0 {
			b.WriteString(" · " + styles.err.Render(fmt.Sprintf("failed %d", failed)))
		}
	}

	if m.lastChange != nil {
		fmt.Fprintf(&b, " │ last: %s %s %s", m.lastChange.Kind, m.lastChange.StoreID, strings.Join(m.lastChange.Fields, ","))
	}
	return styles.status.Render(b.String())
}

func sortedNames(fields map[string]json.RawMessage) []string {
	return slices.Sorted(maps.Keys(fields))
}
