package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	"github.com/desertthunder/picasync/internal/storage"
)

// ArrayField is a [Field] whose member is a slice, enabling [PushItem] and [RemoveItem].
type ArrayField[S, E any] struct {
	Field[S]
	acc func(*S) *[]E
}

// NewArrayField binds the slice returned by acc to key, exposed under name.
func NewArrayField[S, E any](name string, key storage.Key[[]E], acc func(*S) *[]E) ArrayField[S, E] {
	return ArrayField[S, E]{Field: NewField(name, key, acc), acc: acc}
}

// Items returns a copy of the field's current slice.
func Items[S, E any](m *Mirror[S], f ArrayField[S, E]) []E {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(*f.acc(&m.state))
}

// PushItem appends v to the field unless an equal item is already present.
// Equality follows [IndexOf]. The updated slice is returned after persisting.
func PushItem[S, E any](ctx context.Context, m *Mirror[S], f ArrayField[S, E], v E, uniqueKey ...string) ([]E, error) {
	var out []E
	err := m.Update(ctx, func(s *S) {
		list := f.acc(s)
		if IndexOf(*list, v, uniqueKey...) < 0 {
			*list = append(slices.Clone(*list), v)
		}
		out = slices.Clone(*list)
	})
	return out, err
}

// RemoveItem removes the first item matching v. Matching follows [IndexOf].
// The updated slice is returned after persisting.
func RemoveItem[S, E any](ctx context.Context, m *Mirror[S], f ArrayField[S, E], v E, uniqueKey ...string) ([]E, error) {
	var out []E
	err := m.Update(ctx, func(s *S) {
		list := f.acc(s)
		if i := IndexOf(*list, v, uniqueKey...); i >= 0 {
			*list = slices.Delete(slices.Clone(*list), i, i+1)
		}
		out = slices.Clone(*list)
	})
	return out, err
}

// Contains reports whether list holds an item matching v.
func Contains[E any](list []E, v E, uniqueKey ...string) bool {
	return IndexOf(list, v, uniqueKey...) >= 0
}

// IndexOf locates v in list.
//
// When uniqueKey is given and v's JSON object carries that member, items match
// on that member alone. Otherwise items match on deep structural equality of
// their JSON encoding. It returns -1 when nothing matches.
func IndexOf[E any](list []E, v E, uniqueKey ...string) int {
	target, err := json.Marshal(v)
	if err != nil {
		return -1
	}

	if len(uniqueKey) > 0 && uniqueKey[0] != "" {
		if id, ok := member(target, uniqueKey[0]); ok {
			for i, item := range list {
				data, err := json.Marshal(item)
				if err != nil {
					continue
				}
				if other, ok := member(data, uniqueKey[0]); ok && bytes.Equal(id, other) {
					return i
				}
			}
			return -1
		}
	}

	for i, item := range list {
		data, err := json.Marshal(item)
		if err == nil && bytes.Equal(data, target) {
			return i
		}
	}
	return -1
}

// member extracts one member of a JSON object.
func member(data []byte, name string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[name]
	return v, ok
}
