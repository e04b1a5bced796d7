// package formatter renders store snapshots as aligned text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{Text, Markdown, CSV, JSON}

// ParseFormat validates s against [Formats].
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if slices.Contains(Formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Snapshot is the state of one store keyed by field name.
type Snapshot struct {
	StoreID string
	Fields  map[string]json.RawMessage
}

// fieldNames returns the field names in a stable order.
func (s Snapshot) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Render renders snapshots in format.
func Render(format Format, snapshots ...Snapshot) ([]byte, error) {
	switch format {
	case Text:
		return ToText(snapshots...)
	case Markdown:
		return ToMarkdown(snapshots...)
	case CSV:
		return ToCSV(snapshots...)
	case JSON:
		return ToJSON(snapshots...)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Summarize shortens a JSON value for one-line display.
//
// Arrays render as their length, objects as their key count, and long
// scalars are truncated to width runes.
func Summarize(raw json.RawMessage, width int) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}

	switch t := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case map[string]any:
		return fmt.Sprintf("{%d keys}", len(t))
	case string:
		return truncate(t, width)
	default:
		return truncate(string(raw), width)
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

// Indent pretty-prints a JSON value, returning it unchanged when it does not parse.
func Indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ToText renders each store as a column-aligned field table.
func ToText(snapshots ...Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	for i, s := range snapshots {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "Store: %s\n", s.StoreID)

		w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		for _, name := range s.fieldNames() {
			fmt.Fprintf(w, "  %s\t%s\n", name, Summarize(s.Fields[name], 60))
		}
		if err := w.Flush(); err != nil {
			return nil, fmt.Errorf("failed to align fields: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders each store as a section with one fenced JSON block per field.
func ToMarkdown(snapshots ...Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	for _, s := range snapshots {
		fmt.Fprintf(&buf, "## %s\n\n", s.StoreID)
		fmt.Fprintf(&buf, "**Fields**: %d\n\n", len(s.Fields))

		for _, name := range s.fieldNames() {
			fmt.Fprintf(&buf, "### %s\n\n```json\n%s\n```\n\n", name, Indent(s.Fields[name]))
		}
	}

	return buf.Bytes(), nil
}

// ToCSV renders one row per field with columns: Store, Field, Value.
func ToCSV(snapshots ...Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Store", "Field", "Value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range snapshots {
		for _, name := range s.fieldNames() {
			if err := writer.Write([]string{s.StoreID, name, string(s.Fields[name])}); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToJSON renders the snapshots as an indented object keyed by store id.
func ToJSON(snapshots ...Snapshot) ([]byte, error) {
	out := make(map[string]map[string]json.RawMessage, len(snapshots))
	for _, s := range snapshots {
		out[s.StoreID] = s.Fields
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders snapshots and writes them to path.
//
// Defaults to picasync_export.{ext} as the filename.
func WriteExport(format Format, path string, snapshots ...Snapshot) (string, error) {
	if path == "" {
		path = "picasync_export." + format.Ext()
	}

	data, err := Render(format, snapshots...)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	switch f {
	case Markdown:
		return "md"
	case Text:
		return "txt"
	default:
		return string(f)
	}
}
