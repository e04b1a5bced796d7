package formatter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testSnapshots() []Snapshot {
	return []Snapshot{
		{
			StoreID: "user",
			Fields: map[string]json.RawMessage{
				"token": json.RawMessage(`"abc"`),
				"user":  json.RawMessage(`null`),
			},
		},
		{
			StoreID: "local",
			Fields: map[string]json.RawMessage{
				"FOLLOW_AUTHOR_LIST": json.RawMessage(`["alice","bob"]`),
				"ACCOUNT_INFO":       json.RawMessage(`{"email":"a@b.c","password":""}`),
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ToText", func(t *testing.T) {
		data, err := ToText(testSnapshots()...)
		if err != nil {
			t.Fatalf("ToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Store: user") || !strings.Contains(output, "Store: local") {
			t.Errorf("text missing store headers, got: %s", output)
		}
		if !strings.Contains(output, "[2 items]") {
			t.Errorf("expected array summary, got: %s", output)
		}
		if !strings.Contains(output, "{2 keys}") {
			t.Errorf("expected object summary, got: %s", output)
		}

		lines := strings.Split(output, "\n")
		var tokenCol, userCol int
		for _, l := range lines {
			if strings.HasPrefix(l, "  token") {
				tokenCol = strings.Index(l, "abc")
			}
			if strings.HasPrefix(l, "  user") {
				userCol = strings.Index(l, "null")
			}
		}
		if tokenCol == 0 || tokenCol != userCol {
			t.Errorf("expected aligned values, got columns %d and %d", tokenCol, userCol)
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		data, err := ToMarkdown(testSnapshots()...)
		if err != nil {
			t.Fatalf("ToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "## local") {
			t.Errorf("markdown missing store heading")
		}
		if !strings.Contains(output, "### FOLLOW_AUTHOR_LIST") {
			t.Errorf("markdown missing field heading")
		}
		if !strings.Contains(output, "```json\n[\n  \"alice\",") {
			t.Errorf("expected indented JSON block, got: %s", output)
		}
	})

	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(testSnapshots()...)
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Store,Field,Value\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `user,token,"""abc"""`) {
			t.Errorf("CSV missing quoted token row, got: %s", output)
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(testSnapshots()...)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		var decoded map[string]map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded["user"]["token"] != "abc" {
			t.Errorf("expected token abc, got %v", decoded["user"]["token"])
		}
		if len(decoded["local"]["FOLLOW_AUTHOR_LIST"].([]any)) != 2 {
			t.Errorf("expected follow list to round trip")
		}
	})

	t.Run("Render Unknown Format", func(t *testing.T) {
		if _, err := Render(Format("yaml")); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		width int
		want  string
	}{
		{name: "String", raw: `"hello"`, width: 10, want: "hello"},
		{name: "Long String", raw: `"hello world"`, width: 8, want: "hello..."},
		{name: "Number", raw: `800`, width: 10, want: "800"},
		{name: "Bool", raw: `true`, width: 10, want: "true"},
		{name: "Null", raw: `null`, width: 10, want: "null"},
		{name: "Array", raw: `[1,2,3]`, width: 10, want: "[3 items]"},
		{name: "Object", raw: `{"a":1}`, width: 10, want: "{1 keys}"},
		{name: "Invalid", raw: `{nope`, width: 10, want: "{nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(json.RawMessage(tt.raw), tt.width); got != tt.want {
				t.Errorf("Summarize(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Run("Known", func(t *testing.T) {
		f, err := ParseFormat("Markdown")
		if err != nil || f != Markdown {
			t.Errorf("expected markdown, got %q %v", f, err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("Writes File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")

		got, err := WriteExport(JSON, path, testSnapshots()...)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read export: %v", err)
		}
		if !strings.Contains(string(data), `"token": "abc"`) {
			t.Errorf("unexpected export content: %s", data)
		}
	})

	t.Run("Extension", func(t *testing.T) {
		if Markdown.Ext() != "md" || Text.Ext() != "txt" || CSV.Ext() != "csv" {
			t.Error("unexpected extensions")
		}
	})
}
