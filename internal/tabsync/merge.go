package tabsync

import (
	"bytes"
	"encoding/json"
)

// mergeFields shallow-merges incoming over current, field by field.
//
// When both values of a field are JSON objects, the incoming members replace
// the current members one by one. Any other incoming value replaces the field.
func mergeFields(current, incoming map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(incoming))
	for name, next := range incoming {
		prev, ok := current[name]
		if !ok || !isObject(prev) || !isObject(next) {
			out[name] = next
			continue
		}

		merged, err := mergeObjects(prev, next)
		if err != nil {
			out[name] = next
			continue
		}
		out[name] = merged
	}
	return out
}

func mergeObjects(prev, next json.RawMessage) (json.RawMessage, error) {
	var base, overlay map[string]json.RawMessage
	if err := json.Unmarshal(prev, &base); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(next, &overlay); err != nil {
		return nil, err
	}
	if base == nil {
		base = make(map[string]json.RawMessage, len(overlay))
	}
	for k, v := range overlay {
		base[k] = v
	}
	return json.Marshal(base)
}

func isObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
