package storage

import "github.com/desertthunder/picasync/internal/models"

// Key names a durable value of type T.
//
// Keys can only be declared in this package, which keeps the key set closed.
type Key[T any] struct {
	name string
}

func newKey[T any](name string) Key[T] {
	registry = append(registry, name)
	return Key[T]{name: name}
}

// Name returns the storage key.
func (k Key[T]) Name() string { return k.name }

var registry []string

// Local store keys.
var (
	Categories       = newKey[[]models.Category]("CATEGORIES")
	WatchLaterList   = newKey[[]models.Comic]("WATCH_LATER_LIST")
	AccountInfo      = newKey[models.AccountInfo]("ACCOUNT_INFO")
	FollowAuthorList = newKey[[]string]("FOLLOW_AUTHOR_LIST")
)

// User store keys.
var (
	UserToken   = newKey[string]("user.token")
	UserProfile = newKey[*models.UserProfile]("user.user")
)

// Setting store keys.
var (
	SettingComic = newKey[models.ComicSetting]("setting.comic")
)

// KnownKeys lists every declared key name in declaration order.
func KnownKeys() []string {
	out := make([]string, len(registry))
	copy(out, registry)
	return out
}

// IsKnown reports whether name is a declared key.
func IsKnown(name string) bool {
	for _, k := range registry {
		if k == name {
			return true
		}
	}
	return false
}
