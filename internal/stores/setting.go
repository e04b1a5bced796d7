package stores

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
)

// SettingID is the id of the setting store.
const SettingID = "setting"

// SettingStore mirrors the reader settings.
type SettingStore struct {
	*mirror.Mirror[models.SettingState]
}

// NewSettingStore creates a [SettingStore] holding the default settings.
func NewSettingStore(d *storage.Durable, logger *log.Logger) *SettingStore {
	return &SettingStore{mirror.New(SettingID, models.NewSettingState(), d, logger,
		mirror.NewField("comic", storage.SettingComic, func(s *models.SettingState) *models.ComicSetting { return &s.Comic }),
	)}
}

// Comic returns the reader settings.
func (s *SettingStore) Comic() models.ComicSetting { return s.State().Comic }

// UpdateComic applies fn to the reader settings.
func (s *SettingStore) UpdateComic(ctx context.Context, fn func(*models.ComicSetting)) error {
	return s.Update(ctx, func(st *models.SettingState) { fn(&st.Comic) })
}

// SetImageQuality validates and stores the image quality.
func (s *SettingStore) SetImageQuality(ctx context.Context, quality string) error {
	q, err := models.ParseImageQuality(quality)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return s.UpdateComic(ctx, func(c *models.ComicSetting) { c.ImageQuality = q })
}

// SetProxyLine selects one of [models.Proxies] by its zero-based index.
func (s *SettingStore) SetProxyLine(ctx context.Context, line int) error {
	if line < 0 || line >= len(models.Proxies) {
		return fmt.Errorf("%w: proxy line must be between 1 and %d", shared.ErrInvalidArgument, len(models.Proxies))
	}
	return s.UpdateComic(ctx, func(c *models.ComicSetting) { c.Proxy = models.Proxies[line].Value })
}

// BlockCategory hides a category title. Blocking twice has no effect.
func (s *SettingStore) BlockCategory(ctx context.Context, title string) ([]string, error) {
	var out []string
	err := s.UpdateComic(ctx, func(c *models.ComicSetting) {
		if !slices.Contains(c.BlockedCategories, title) {
			c.BlockedCategories = append(slices.Clone(c.BlockedCategories), title)
		}
		out = slices.Clone(c.BlockedCategories)
	})
	return out, err
}

// UnblockCategory shows a previously blocked category title again.
func (s *SettingStore) UnblockCategory(ctx context.Context, title string) ([]string, error) {
	var out []string
	err := s.UpdateComic(ctx, func(c *models.ComicSetting) {
		if i := slices.Index(c.BlockedCategories, title); i >= 0 {
			c.BlockedCategories = slices.Delete(slices.Clone(c.BlockedCategories), i, i+1)
		}
		out = slices.Clone(c.BlockedCategories)
	})
	return out, err
}
