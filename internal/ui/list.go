package ui

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/picasync/internal/formatter"
)

var _ list.Item = fieldItem{}

// fieldItem is one store field, implementing [list.Item].
type fieldItem struct {
	storeID string
	name    string
	value   json.RawMessage
	changed bool
}

func (i fieldItem) FilterValue() string { return i.storeID + "." + i.name }
func (i fieldItem) Title() string {
	title := fmt.Sprintf("%s • %s", i.storeID, i.name)
	if i.changed {
		title = styles.changed.Render(title + " *")
	}
	return title
}
func (i fieldItem) Description() string { return formatter.Summarize(i.value, 60) }

// toItems flattens snapshots into list rows, marking the fields named in changed.
func toItems(snapshots []formatter.Snapshot, changed map[string]bool) []list.Item {
	var items []list.Item
	for _, s := range snapshots {
		for _, name := range sortedNames(s.Fields) {
			items = append(items, fieldItem{
				storeID: s.StoreID,
				name:    name,
				value:   s.Fields[name],
				changed: changed[s.StoreID+"."+name],
			})
		}
	}
	return items
}
