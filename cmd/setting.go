package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/stores"
	"github.com/urfave/cli/v3"
)

// SettingShow prints the setting store.
func (r *Runner) SettingShow(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		return r.showStores(cmd, s.Stores, stores.SettingID)
	})
}

// SettingSet changes the reader settings named by the given flags.
func (r *Runner) SettingSet(ctx context.Context, cmd *cli.Command) error {
	if !cmd.IsSet("quality") && !cmd.IsSet("proxy-line") && !cmd.IsSet("width") &&
		!cmd.IsSet("auto-read") && !cmd.IsSet("auto-read-speed") {
		return fmt.Errorf("%w: pass at least one setting flag", shared.ErrMissingArgument)
	}

	width := int(cmd.Int("width"))
	speed := int(cmd.Int("auto-read-speed"))
	if cmd.IsSet("width") && width <= 0 {
		return fmt.Errorf("%w: width must be positive", shared.ErrInvalidArgument)
	}
	if cmd.IsSet("auto-read-speed") && speed <= 0 {
		return fmt.Errorf("%w: auto-read speed must be positive", shared.ErrInvalidArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		setting := s.Stores.Setting

		if cmd.IsSet("quality") {
			if err := setting.SetImageQuality(ctx, cmd.String("quality")); err != nil {
				return err
			}
		}
		if cmd.IsSet("proxy-line") {
			if err := setting.SetProxyLine(ctx, int(cmd.Int("proxy-line"))-1); err != nil {
				return err
			}
		}

		err := setting.UpdateComic(ctx, func(c *models.ComicSetting) {
			if cmd.IsSet("width") {
				c.ComicImageWidth = width
			}
			if cmd.IsSet("auto-read") {
				c.AutoRead = cmd.Bool("auto-read")
			}
			if cmd.IsSet("auto-read-speed") {
				c.AutoReadSpeed = speed
			}
		})
		if err != nil {
			return err
		}

		c := setting.Comic()
		return r.writePlain("✓ Settings saved: quality=%s width=%d auto-read=%t speed=%d\n",
			c.ImageQuality, c.ComicImageWidth, c.AutoRead, c.AutoReadSpeed)
	})
}

// SettingBlock hides a category.
func (r *Runner) SettingBlock(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		blocked, err := s.Stores.Setting.BlockCategory(ctx, title)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Blocked %s (%d blocked)\n", title, len(blocked))
	})
}

// SettingUnblock shows a hidden category again.
func (r *Runner) SettingUnblock(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		blocked, err := s.Stores.Setting.UnblockCategory(ctx, title)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Unblocked %s (%d blocked)\n", title, len(blocked))
	})
}
