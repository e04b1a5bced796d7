// Package ui implements a live store inspector using bubbletea's Elm architecture.
//
// The inspector lists every field of every store it is given:
//  1. [ListView] : One row per field with a one-line summary of its value
//  2. [DetailView] : The selected field's value as indented JSON
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Each store's observer pushes a change notice into a buffered channel, so the view reloads whenever a mirror
// changes, whether the change was made locally or applied from another context.
//
// A status line shows the origin id of the sync coordinator and its counters.
// Keys: ↑/k ↓/j to move, enter to toggle detail, r to reload, q to quit.
package ui
