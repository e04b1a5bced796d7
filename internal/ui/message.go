package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/picasync/internal/formatter"
	"github.com/desertthunder/picasync/internal/mirror"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSnapshotsLoaded MsgKind = iota
	MsgStoreChanged
	MsgTick
)

type snapshotsLoaded struct {
	snapshots []formatter.Snapshot
	err       error
}

// snapshotsLoadedMsg is the constructor for [MsgSnapshotsLoaded]
func snapshotsLoadedMsg(snapshots []formatter.Snapshot, err error) Msg {
	return Msg{kind: MsgSnapshotsLoaded, data: snapshotsLoaded{snapshots, err}}
}

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg(m mirror.Mutation) Msg {
	return Msg{kind: MsgStoreChanged, data: m}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
