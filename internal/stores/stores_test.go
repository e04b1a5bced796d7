package stores

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
	"github.com/desertthunder/picasync/internal/tabsync"
	tu "github.com/desertthunder/picasync/internal/testing"
)

type fakeClient struct {
	token      string
	signInErr  error
	profile    *models.UserProfile
	profileErr error
	categories []models.Category
	catErr     error
	catCalls   int
}

func (f *fakeClient) SignIn(_ context.Context, email, password string) (string, error) {
	if f.signInErr != nil {
		return "", f.signInErr
	}
	return f.token, nil
}

func (f *fakeClient) Profile(context.Context) (*models.UserProfile, error) {
	return f.profile, f.profileErr
}

func (f *fakeClient) Categories(context.Context) ([]models.Category, error) {
	f.catCalls++
	return f.categories, f.catErr
}

func openSet(t *testing.T, engine storage.Engine) *Set {
	t.Helper()
	set, err := Open(context.Background(), Options{Durable: storage.New(engine, nil)})
	if err != nil {
		t.Fatalf("failed to open stores: %v", err)
	}
	return set
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Follow Author Twice Stores Once", func(t *testing.T) {
		engine := storage.NewMemoryEngine()
		set := openSet(t, engine)

		set.Local.Update(ctx, func(l *models.Local) { l.FollowAuthorList = []string{} })
		set.Local.FollowAuthor(ctx, "alice")
		if _, err := set.Local.FollowAuthor(ctx, "alice"); err != nil {
			t.Fatalf("failed to follow: %v", err)
		}

		stored, err := storage.Get(ctx, storage.New(engine, nil), storage.FollowAuthorList, nil)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if !slices.Equal(stored, []string{"alice"}) {
			t.Errorf("expected [alice], got %v", stored)
		}
	})

	t.Run("Unfollow", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		set.Local.FollowAuthor(ctx, "alice")
		set.Local.FollowAuthor(ctx, "bob")

		got, _ := set.Local.UnfollowAuthor(ctx, "alice")
		if !slices.Equal(got, []string{"bob"}) {
			t.Errorf("expected [bob], got %v", got)
		}
	})

	t.Run("Watch Later By Id", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		set.Local.AddWatchLater(ctx, models.Comic{ID: "c1", Title: "One"})
		set.Local.AddWatchLater(ctx, models.Comic{ID: "c2", Title: "Two"})
		got, _ := set.Local.AddWatchLater(ctx, models.Comic{ID: "c1", Title: "One, updated"})
		if len(got) != 2 {
			t.Fatalf("expected dedup by id, got %+v", got)
		}

		got, err := set.Local.RemoveWatchLater(ctx, "c1")
		if err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		if len(got) != 1 || got[0].ID != "c2" {
			t.Errorf("expected only c2, got %+v", got)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		engine := storage.NewMemoryEngine()
		set := openSet(t, engine)
		set.Local.FollowAuthor(ctx, "alice")
		set.Local.SetAccountInfo(ctx, models.AccountInfo{Email: "a@b.c"})

		if err := set.Local.Reset(ctx); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}
		if len(set.Local.FollowedAuthors()) != 0 || !set.Local.AccountInfo().Empty() {
			t.Errorf("expected defaults, got %+v", set.Local.State())
		}

		reopened := openSet(t, engine)
		if len(reopened.Local.FollowedAuthors()) != 0 {
			t.Error("expected reset to be persisted")
		}
	})

	t.Run("Write Failure Keeps In-Memory Value", func(t *testing.T) {
		engine := tu.NewFailingEngine(nil)
		set := openSet(t, engine)
		set.Local.FollowAuthor(ctx, "alice")

		engine.FailSets(true)
		_, err := set.Local.FollowAuthor(ctx, "bob")
		if !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}

		if got := set.Local.FollowedAuthors(); !slices.Equal(got, []string{"alice", "bob"}) {
			t.Errorf("expected in-memory list to keep both, got %v", got)
		}

		stored, _ := storage.Get(ctx, storage.New(engine, nil), storage.FollowAuthorList, nil)
		if !slices.Equal(stored, []string{"alice"}) {
			t.Errorf("expected durable list to keep the last good write, got %v", stored)
		}
	})

	t.Run("Read Failure Falls Back To Defaults", func(t *testing.T) {
		engine := tu.NewFailingEngine(nil)
		engine.FailGets(true)

		set := openSet(t, engine)
		if set.Setting.Comic().ComicImageWidth != 800 {
			t.Errorf("expected default settings, got %+v", set.Setting.Comic())
		}
	})
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Token Write Failure", func(t *testing.T) {
		engine := tu.NewFailingEngine(nil)
		set := openSet(t, engine)
		set.User.SetToken(ctx, "t1")

		engine.FailSets(true)
		if err := set.User.SetToken(ctx, "t2"); !errors.Is(err, shared.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
		if set.User.Token() != "t2" {
			t.Errorf("expected in-memory token t2, got %q", set.User.Token())
		}

		engine.FailSets(false)
		reopened := openSet(t, engine)
		if reopened.User.Token() != "t1" {
			t.Errorf("expected durable token t1, got %q", reopened.User.Token())
		}
	})

	t.Run("Login Stores Token And Account", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		client := &fakeClient{token: "tok"}

		if err := set.User.Login(ctx, client, set.Local, "a@b.c", "pw"); err != nil {
			t.Fatalf("failed to login: %v", err)
		}
		if set.User.Token() != "tok" {
			t.Errorf("expected token, got %q", set.User.Token())
		}
		if set.Local.AccountInfo().Email != "a@b.c" {
			t.Errorf("expected account info, got %+v", set.Local.AccountInfo())
		}
	})

	t.Run("Login Failure Stores Nothing", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		client := &fakeClient{signInErr: shared.ErrAPIRequest}

		if err := set.User.Login(ctx, client, set.Local, "a@b.c", "pw"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if set.User.Token() != "" || !set.Local.AccountInfo().Empty() {
			t.Error("expected nothing stored")
		}
	})

	t.Run("FetchProfile", func(t *testing.T) {
		t.Run("Requires Token", func(t *testing.T) {
			set := openSet(t, storage.NewMemoryEngine())
			if _, err := set.User.FetchProfile(ctx, &fakeClient{}); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})

		t.Run("Stores Profile", func(t *testing.T) {
			set := openSet(t, storage.NewMemoryEngine())
			set.User.SetToken(ctx, "tok")

			p, err := set.User.FetchProfile(ctx, &fakeClient{profile: &models.UserProfile{ID: "u1", Name: "Reader"}})
			if err != nil {
				t.Fatalf("failed to fetch: %v", err)
			}
			if p.Name != "Reader" || set.User.Profile().ID != "u1" {
				t.Errorf("expected stored profile, got %+v", set.User.Profile())
			}
		})

		t.Run("Rejected Session Signs Out", func(t *testing.T) {
			set := openSet(t, storage.NewMemoryEngine())
			set.User.SetToken(ctx, "tok")
			set.User.SetUser(ctx, &models.UserProfile{ID: "u1"})

			_, err := set.User.FetchProfile(ctx, &fakeClient{profileErr: shared.ErrNotAuthenticated})
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Fatalf("expected ErrNotAuthenticated, got %v", err)
			}
			if set.User.Token() != "" || set.User.Profile() != nil {
				t.Errorf("expected cleared session, got %+v", set.User.State())
			}
		})
	})
}

func TestSettingStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Block And Unblock", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		set.Setting.BlockCategory(ctx, "Horror")
		got, _ := set.Setting.BlockCategory(ctx, "Horror")
		if !slices.Equal(got, []string{"Horror"}) {
			t.Errorf("expected one entry, got %v", got)
		}

		got, _ = set.Setting.UnblockCategory(ctx, "Horror")
		if len(got) != 0 {
			t.Errorf("expected empty list, got %v", got)
		}
	})

	t.Run("Image Quality", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		if err := set.Setting.SetImageQuality(ctx, "ultra"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := set.Setting.SetImageQuality(ctx, "high"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if set.Setting.Comic().ImageQuality != models.QualityHigh {
			t.Errorf("expected high, got %s", set.Setting.Comic().ImageQuality)
		}
	})

	t.Run("Proxy Line", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		if err := set.Setting.SetProxyLine(ctx, 3); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		set.Setting.SetProxyLine(ctx, 2)
		if set.Setting.Comic().Proxy != models.Proxies[2].Value {
			t.Errorf("expected third line, got %+v", set.Setting.Comic().Proxy)
		}
	})
}

func TestCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("Fetches Once Then Uses Cache", func(t *testing.T) {
		engine := storage.NewMemoryEngine()
		set := openSet(t, engine)
		client := &fakeClient{categories: []models.Category{{Title: "A"}, {Title: "B"}}}

		for range 2 {
			cats, err := Categories(ctx, set.Local, client)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cats) != 2 {
				t.Errorf("expected 2 categories, got %d", len(cats))
			}
		}
		if client.catCalls != 1 {
			t.Errorf("expected one API call, got %d", client.catCalls)
		}

		reopened := openSet(t, engine)
		Categories(ctx, reopened.Local, client)
		if client.catCalls != 1 {
			t.Error("expected persisted cache to be used after reload")
		}
	})

	t.Run("Fetch Error", func(t *testing.T) {
		set := openSet(t, storage.NewMemoryEngine())
		_, err := Categories(ctx, set.Local, &fakeClient{catErr: shared.ErrAPIRequest})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Visible Skips Blocked", func(t *testing.T) {
		cats := []models.Category{{Title: "A"}, {Title: "B"}}
		got := Visible(cats, models.ComicSetting{BlockedCategories: []string{"A"}})
		if len(got) != 1 || got[0].Title != "B" {
			t.Errorf("unexpected %+v", got)
		}
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("Registers Enabled Stores", func(t *testing.T) {
		coord, _ := tabsync.NewCoordinator(nil, tabsync.Options{})
		defer coord.Close()

		sync := shared.DefaultConfig().Sync
		sync.Stores["setting"] = shared.StoreSyncConfig{Enabled: false}

		set, err := Open(ctx, Options{Durable: storage.New(storage.NewMemoryEngine(), nil), Coordinator: coord, Sync: sync})
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		if !slices.Equal(coord.StoreIDs(), []string{"local", "user"}) {
			t.Errorf("unexpected registrations %v", coord.StoreIDs())
		}

		reg := coord.Registration("user")
		if reg.Config().Debounce != 100*time.Millisecond || !slices.Equal(reg.Config().Include, []string{"token", "user"}) {
			t.Errorf("unexpected user sync config %+v", reg.Config())
		}
		if set.Lookup("setting") == nil || set.Lookup("nope") != nil {
			t.Error("unexpected lookup result")
		}
	})

	t.Run("Loads Persisted State", func(t *testing.T) {
		engine := storage.NewMemoryEngine()
		d := storage.New(engine, nil)
		storage.Set(ctx, d, storage.UserToken, "persisted")

		set := openSet(t, engine)
		if set.User.Token() != "persisted" {
			t.Errorf("expected persisted token, got %q", set.User.Token())
		}
		token, quality := set.Session()
		if token != "persisted" || quality != models.QualityMedium {
			t.Errorf("unexpected session %q %q", token, quality)
		}
	})
}

func TestTwoContextsShareSession(t *testing.T) {
	ctx := context.Background()
	bus := tabsync.NewBus(nil)
	sync := shared.DefaultConfig().Sync

	open := func() (*Set, *tabsync.Coordinator) {
		endpoint := bus.Open(sync.Channel)
		t.Cleanup(func() { endpoint.Close() })
		coord, err := tabsync.NewCoordinator(endpoint, tabsync.Options{Settle: 30 * time.Millisecond})
		if err != nil {
			t.Fatalf("failed to create coordinator: %v", err)
		}
		t.Cleanup(func() { coord.Close() })

		set, err := Open(ctx, Options{Durable: storage.New(storage.NewMemoryEngine(), nil), Coordinator: coord, Sync: sync})
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		return set, coord
	}

	a, _ := open()
	b, _ := open()

	if err := a.User.Login(ctx, &fakeClient{token: "tok"}, a.Local, "a@b.c", "pw"); err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	a.Local.FollowAuthor(ctx, "alice")
	a.Setting.BlockCategory(ctx, "Horror")

	tu.Eventually(t, 2*time.Second, func() bool { return b.User.Token() == "tok" }, "token reaches B")
	tu.Eventually(t, 2*time.Second, func() bool { return slices.Equal(b.Local.FollowedAuthors(), []string{"alice"}) }, "follow list reaches B")
	tu.Eventually(t, 2*time.Second, func() bool { return slices.Equal(b.Setting.Comic().BlockedCategories, []string{"Horror"}) }, "settings reach B")

	if !b.Local.AccountInfo().Empty() {
		t.Errorf("expected account info to stay local, got %+v", b.Local.AccountInfo())
	}
}
