package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
	tu "github.com/desertthunder/picasync/internal/testing"
)

type shelf struct {
	Follow  []string
	Watch   []models.Comic
	Account models.AccountInfo
	Token   string
}

var (
	followField = NewArrayField("FOLLOW_AUTHOR_LIST", storage.FollowAuthorList, func(s *shelf) *[]string { return &s.Follow })
	watchField  = NewArrayField("WATCH_LATER_LIST", storage.WatchLaterList, func(s *shelf) *[]models.Comic { return &s.Watch })
)

func newShelf(engine storage.Engine) *Mirror[shelf] {
	return New("shelf", shelf{Follow: []string{}, Watch: []models.Comic{}, Token: "default"},
		storage.New(engine, nil), nil,
		followField.Field,
		watchField.Field,
		NewField("ACCOUNT_INFO", storage.AccountInfo, func(s *shelf) *models.AccountInfo { return &s.Account }),
		NewField("token", storage.UserToken, func(s *shelf) *string { return &s.Token }),
	)
}

type recorder struct {
	mu        sync.Mutex
	mutations []Mutation
}

func (r *recorder) observe(m Mutation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, m)
}

func (r *recorder) all() []Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.mutations)
}

func TestMirror(t *testing.T) {
	ctx := context.Background()

	t.Run("InitStorage", func(t *testing.T) {
		t.Run("Keeps Defaults For Missing Keys", func(t *testing.T) {
			m := newShelf(storage.NewMemoryEngine())
			if err := m.InitStorage(ctx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			state := m.State()
			if state.Token != "default" {
				t.Errorf("expected default token, got %q", state.Token)
			}
			if state.Follow == nil || len(state.Follow) != 0 {
				t.Errorf("expected empty follow list, got %#v", state.Follow)
			}
		})

		t.Run("Reload Yields Written Values", func(t *testing.T) {
			engine := storage.NewMemoryEngine()
			first := newShelf(engine)
			err := first.Update(ctx, func(s *shelf) {
				s.Token = "t1"
				s.Account = models.AccountInfo{Email: "a@b.c", Password: "pw"}
				s.Watch = []models.Comic{{ID: "1", Title: "One"}}
			})
			if err != nil {
				t.Fatalf("failed to update: %v", err)
			}

			second := newShelf(engine)
			if err := second.InitStorage(ctx); err != nil {
				t.Fatalf("failed to init: %v", err)
			}

			state := second.State()
			if state.Token != "t1" {
				t.Errorf("expected token t1, got %q", state.Token)
			}
			if state.Account.Email != "a@b.c" {
				t.Errorf("expected account to reload, got %+v", state.Account)
			}
			if len(state.Watch) != 1 || state.Watch[0].Title != "One" {
				t.Errorf("expected watch list to reload, got %+v", state.Watch)
			}
		})

		t.Run("Reload After Direct Durable Write", func(t *testing.T) {
			engine := storage.NewMemoryEngine()
			if err := storage.Set(ctx, storage.New(engine, nil), storage.FollowAuthorList, []string{"alice", "bob"}); err != nil {
				t.Fatalf("failed to set: %v", err)
			}

			m := newShelf(engine)
			m.InitStorage(ctx)
			if got := m.State().Follow; !slices.Equal(got, []string{"alice", "bob"}) {
				t.Errorf("expected persisted list, got %v", got)
			}
		})

		t.Run("Read Failure Keeps Defaults", func(t *testing.T) {
			engine := tu.NewFailingEngine(nil)
			engine.FailGets(true)

			m := newShelf(engine)
			err := m.InitStorage(ctx)
			if !errors.Is(err, shared.ErrStorageUnavailable) {
				t.Errorf("expected ErrStorageUnavailable, got %v", err)
			}
			if m.State().Token != "default" {
				t.Error("expected defaults after failed load")
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("Persists And Notifies Changed Fields Only", func(t *testing.T) {
			engine := tu.NewFailingEngine(nil)
			m := newShelf(engine)
			var rec recorder
			m.Subscribe(rec.observe)

			if err := m.Update(ctx, func(s *shelf) { s.Token = "t1" }); err != nil {
				t.Fatalf("failed to update: %v", err)
			}

			if engine.SetCalls != 1 {
				t.Errorf("expected 1 durable write, got %d", engine.SetCalls)
			}
			muts := rec.all()
			if len(muts) != 1 {
				t.Fatalf("expected 1 mutation, got %d", len(muts))
			}
			if muts[0].Kind != Direct || !slices.Equal(muts[0].Fields, []string{"token"}) || muts[0].StoreID != "shelf" {
				t.Errorf("unexpected mutation %+v", muts[0])
			}
		})

		t.Run("No Change No Notification", func(t *testing.T) {
			engine := tu.NewFailingEngine(nil)
			m := newShelf(engine)
			var rec recorder
			m.Subscribe(rec.observe)

			m.Update(ctx, func(s *shelf) { s.Token = "default" })

			if len(rec.all()) != 0 || engine.SetCalls != 0 {
				t.Errorf("expected no notification and no write, got %d mutations and %d writes", len(rec.all()), engine.SetCalls)
			}
		})

		t.Run("Write Failure Keeps In-Memory State", func(t *testing.T) {
			engine := tu.NewFailingEngine(nil)
			m := newShelf(engine)
			engine.FailSets(true)

			err := m.Update(ctx, func(s *shelf) { s.Token = "t1" })
			if !errors.Is(err, shared.ErrStorageUnavailable) {
				t.Fatalf("expected ErrStorageUnavailable, got %v", err)
			}
			if m.State().Token != "t1" {
				t.Errorf("expected in-memory value to survive, got %q", m.State().Token)
			}
		})
	})

	t.Run("Patch", func(t *testing.T) {
		t.Run("Applies Known Fields", func(t *testing.T) {
			engine := storage.NewMemoryEngine()
			m := newShelf(engine)
			var rec recorder
			m.Subscribe(rec.observe)

			err := m.Patch(ctx, map[string]json.RawMessage{
				"token":   json.RawMessage(`"t2"`),
				"unknown": json.RawMessage(`1`),
			})
			if err != nil {
				t.Fatalf("failed to patch: %v", err)
			}

			if m.State().Token != "t2" {
				t.Errorf("expected patched token, got %q", m.State().Token)
			}
			muts := rec.all()
			if len(muts) != 1 || muts[0].Kind != Patch {
				t.Fatalf("expected one patch mutation, got %+v", muts)
			}

			stored, _ := storage.Get(ctx, storage.New(engine, nil), storage.UserToken, "")
			if stored != "t2" {
				t.Errorf("expected patched value persisted, got %q", stored)
			}
		})

		t.Run("Malformed Field Leaves State Untouched", func(t *testing.T) {
			m := newShelf(storage.NewMemoryEngine())
			var rec recorder
			m.Subscribe(rec.observe)

			err := m.Patch(ctx, map[string]json.RawMessage{
				"token":              json.RawMessage(`"t2"`),
				"FOLLOW_AUTHOR_LIST": json.RawMessage(`{"not":"a list"}`),
			})
			if !errors.Is(err, shared.ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
			if m.State().Token != "default" {
				t.Error("expected no partial application")
			}
			if len(rec.all()) != 0 {
				t.Error("expected no notification")
			}
		})
	})

	t.Run("State Is A Deep Copy", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		m.Update(ctx, func(s *shelf) { s.Follow = []string{"alice"} })

		state := m.State()
		state.Follow[0] = "mallory"

		if got := m.State().Follow[0]; got != "alice" {
			t.Errorf("expected mirror to be unaffected, got %q", got)
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		snap, err := m.Snapshot()
		if err != nil {
			t.Fatalf("failed to snapshot: %v", err)
		}

		if string(snap["token"]) != `"default"` {
			t.Errorf("unexpected token snapshot %s", snap["token"])
		}
		if string(snap["FOLLOW_AUTHOR_LIST"]) != `[]` {
			t.Errorf("unexpected list snapshot %s", snap["FOLLOW_AUTHOR_LIST"])
		}
		if len(snap) != 4 {
			t.Errorf("expected 4 fields, got %d", len(snap))
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		var rec recorder
		unsubscribe := m.Subscribe(rec.observe)
		unsubscribe()
		unsubscribe()

		m.Update(ctx, func(s *shelf) { s.Token = "x" })
		if len(rec.all()) != 0 {
			t.Error("expected no notification after unsubscribe")
		}
	})
}

func TestArrayHelpers(t *testing.T) {
	ctx := context.Background()

	t.Run("Push Twice Stores One Occurrence", func(t *testing.T) {
		engine := storage.NewMemoryEngine()
		m := newShelf(engine)
		m.Update(ctx, func(s *shelf) { s.Follow = []string{} })

		PushItem(ctx, m, followField, "alice")
		got, err := PushItem(ctx, m, followField, "alice")
		if err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		if !slices.Equal(got, []string{"alice"}) {
			t.Errorf("expected [alice], got %v", got)
		}
		stored, _ := storage.Get(ctx, storage.New(engine, nil), storage.FollowAuthorList, nil)
		if !slices.Equal(stored, []string{"alice"}) {
			t.Errorf("expected stored [alice], got %v", stored)
		}
	})

	t.Run("Push Dedups By Unique Key", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		PushItem(ctx, m, watchField, models.Comic{ID: "1", Title: "One"}, "_id")
		got, _ := PushItem(ctx, m, watchField, models.Comic{ID: "1", Title: "Renamed"}, "_id")

		if len(got) != 1 || got[0].Title != "One" {
			t.Errorf("expected the original item only, got %+v", got)
		}
	})

	t.Run("Remove By Unique Key Ignores Other Fields", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		m.Update(ctx, func(s *shelf) {
			s.Watch = []models.Comic{{ID: "1", Title: "One", Author: "a"}, {ID: "2", Title: "Two"}}
		})

		got, err := RemoveItem(ctx, m, watchField, models.Comic{ID: "1"}, "_id")
		if err != nil {
			t.Fatalf("failed to remove: %v", err)
		}

		if len(got) != 1 || got[0].ID != "2" {
			t.Errorf("expected only item 2 to remain, got %+v", got)
		}
		if items := Items(m, watchField); len(items) != 1 {
			t.Errorf("expected mirror to hold 1 item, got %d", len(items))
		}
	})

	t.Run("Remove By Deep Equality", func(t *testing.T) {
		m := newShelf(storage.NewMemoryEngine())
		m.Update(ctx, func(s *shelf) { s.Watch = []models.Comic{{ID: "1", Title: "One"}} })

		got, _ := RemoveItem(ctx, m, watchField, models.Comic{ID: "1"})
		if len(got) != 1 {
			t.Errorf("expected partial value not to match without unique key, got %+v", got)
		}

		got, _ = RemoveItem(ctx, m, watchField, models.Comic{ID: "1", Title: "One"})
		if len(got) != 0 {
			t.Errorf("expected equal value to be removed, got %+v", got)
		}
	})

	t.Run("Remove Missing Is A No-Op", func(t *testing.T) {
		engine := tu.NewFailingEngine(nil)
		m := newShelf(engine)

		got, err := RemoveItem(ctx, m, followField, "nobody")
		if err != nil || len(got) != 0 {
			t.Errorf("expected empty list and no error, got %v, %v", got, err)
		}
		if engine.SetCalls != 0 {
			t.Errorf("expected no write, got %d", engine.SetCalls)
		}
	})

	t.Run("IndexOf", func(t *testing.T) {
		list := []map[string]any{{"id": 1, "name": "a"}, {"id": 2, "name": "b"}}

		tests := []struct {
			name      string
			value     map[string]any
			uniqueKey []string
			want      int
		}{
			{"unique key match", map[string]any{"id": 2}, []string{"id"}, 1},
			{"unique key miss", map[string]any{"id": 3, "name": "a"}, []string{"id"}, -1},
			{"key absent falls back to equality", map[string]any{"id": 1, "name": "a"}, []string{"slug"}, 0},
			{"deep equality", map[string]any{"name": "b", "id": 2}, nil, 1},
			{"deep inequality", map[string]any{"id": 2}, nil, -1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := IndexOf(list, tt.value, tt.uniqueKey...); got != tt.want {
					t.Errorf("IndexOf() = %d, want %d", got, tt.want)
				}
			})
		}

		if !Contains([]string{"x", "y"}, "y") {
			t.Error("expected Contains to find y")
		}
	})
}
