package stores

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/storage"
)

// LocalID is the id of the local store.
const LocalID = "local"

// Array fields of the local store.
var (
	CategoriesField = mirror.NewArrayField("CATEGORIES", storage.Categories,
		func(l *models.Local) *[]models.Category { return &l.Categories })
	WatchLaterField = mirror.NewArrayField("WATCH_LATER_LIST", storage.WatchLaterList,
		func(l *models.Local) *[]models.Comic { return &l.WatchLaterList })
	FollowAuthorField = mirror.NewArrayField("FOLLOW_AUTHOR_LIST", storage.FollowAuthorList,
		func(l *models.Local) *[]string { return &l.FollowAuthorList })
)

// AccountInfoField holds the remembered credentials.
var AccountInfoField = mirror.NewField("ACCOUNT_INFO", storage.AccountInfo,
	func(l *models.Local) *models.AccountInfo { return &l.AccountInfo })

// LocalStore mirrors the device-local lists and the remembered account.
type LocalStore struct {
	*mirror.Mirror[models.Local]
}

// NewLocalStore creates a [LocalStore] holding the built-in defaults.
func NewLocalStore(d *storage.Durable, logger *log.Logger) *LocalStore {
	return &LocalStore{mirror.New(LocalID, models.NewLocal(), d, logger,
		CategoriesField.Field,
		WatchLaterField.Field,
		FollowAuthorField.Field,
		AccountInfoField,
	)}
}

// Categories returns the cached categories.
func (s *LocalStore) Categories() []models.Category { return mirror.Items(s.Mirror, CategoriesField) }

// SetCategories replaces the cached categories.
func (s *LocalStore) SetCategories(ctx context.Context, cats []models.Category) error {
	return s.Update(ctx, func(l *models.Local) { l.Categories = cats })
}

// WatchLater returns the watch-later list.
func (s *LocalStore) WatchLater() []models.Comic { return mirror.Items(s.Mirror, WatchLaterField) }

// AddWatchLater adds comic unless a comic with the same id is listed.
func (s *LocalStore) AddWatchLater(ctx context.Context, comic models.Comic) ([]models.Comic, error) {
	return mirror.PushItem(ctx, s.Mirror, WatchLaterField, comic, "_id")
}

// RemoveWatchLater removes the comic with id.
func (s *LocalStore) RemoveWatchLater(ctx context.Context, id string) ([]models.Comic, error) {
	return mirror.RemoveItem(ctx, s.Mirror, WatchLaterField, models.Comic{ID: id}, "_id")
}

// FollowedAuthors returns the followed authors.
func (s *LocalStore) FollowedAuthors() []string { return mirror.Items(s.Mirror, FollowAuthorField) }

// FollowAuthor adds author to the follow list once.
func (s *LocalStore) FollowAuthor(ctx context.Context, author string) ([]string, error) {
	return mirror.PushItem(ctx, s.Mirror, FollowAuthorField, author)
}

// UnfollowAuthor removes author from the follow list.
func (s *LocalStore) UnfollowAuthor(ctx context.Context, author string) ([]string, error) {
	return mirror.RemoveItem(ctx, s.Mirror, FollowAuthorField, author)
}

// AccountInfo returns the remembered credentials.
func (s *LocalStore) AccountInfo() models.AccountInfo { return s.State().AccountInfo }

// SetAccountInfo remembers credentials for the next sign-in.
func (s *LocalStore) SetAccountInfo(ctx context.Context, info models.AccountInfo) error {
	return s.Update(ctx, func(l *models.Local) { l.AccountInfo = info })
}

// Reset restores the built-in defaults and persists them.
func (s *LocalStore) Reset(ctx context.Context) error {
	return s.Update(ctx, func(l *models.Local) { *l = models.NewLocal() })
}
