package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/picasync/internal/formatter"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
	"github.com/desertthunder/picasync/internal/stores"
	"github.com/urfave/cli/v3"
)

// showStores renders the stores named by ids using the format and output flags.
func (r *Runner) showStores(cmd *cli.Command, set *stores.Set, ids ...string) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	snapshots := make([]formatter.Snapshot, 0, len(ids))
	for _, id := range ids {
		store := set.Lookup(id)
		if store == nil {
			return fmt.Errorf("%w: unknown store %q", shared.ErrInvalidArgument, id)
		}
		fields, err := store.Snapshot()
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", id, err)
		}
		snapshots = append(snapshots, formatter.Snapshot{StoreID: id, Fields: fields})
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(format, path, snapshots...)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported to %s\n", written)
	}

	data, err := formatter.Render(format, snapshots...)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// LocalShow prints the local store.
func (r *Runner) LocalShow(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		return r.showStores(cmd, s.Stores, stores.LocalID)
	})
}

// LocalKeys lists the keys held by the durable store.
func (r *Runner) LocalKeys(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		keys, err := s.Durable.Keys(ctx)
		if err != nil {
			return err
		}
		slices.Sort(keys)

		if len(keys) == 0 {
			return r.writePlain("No keys stored\n")
		}
		declared := 0
		for _, k := range keys {
			if !storage.IsKnown(k) {
				r.writePlain("%s (unknown)\n", k)
				continue
			}
			declared++
			r.writePlain("%s\n", k)
		}
		return r.writePlainln("%d of %d declared keys stored", declared, len(storage.KnownKeys()))
	})
}

// LocalClear resets the local store, or with --all clears the durable store and resets every store.
func (r *Runner) LocalClear(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		if !cmd.Bool("all") {
			if err := s.Stores.Local.Reset(ctx); err != nil {
				return err
			}
			return r.writePlain("✓ Local store reset\n")
		}

		if err := s.Durable.Clear(ctx); err != nil {
			return err
		}

		set := s.Stores
		if err := set.Local.Reset(ctx); err != nil {
			return err
		}
		if err := set.User.ClearUserProfile(ctx); err != nil {
			return err
		}
		if err := set.Setting.Update(ctx, func(st *models.SettingState) { *st = models.NewSettingState() }); err != nil {
			return err
		}

		r.logger.Info("durable store cleared")
		return r.writePlain("✓ All stores reset\n")
	})
}

// LocalFollow adds an author to the follow list.
func (r *Runner) LocalFollow(ctx context.Context, cmd *cli.Command) error {
	author := cmd.StringArg("author")
	if author == "" {
		return fmt.Errorf("%w: author", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		authors, err := s.Stores.Local.FollowAuthor(ctx, author)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Following %s (%d authors)\n", author, len(authors))
	})
}

// LocalUnfollow removes an author from the follow list.
func (r *Runner) LocalUnfollow(ctx context.Context, cmd *cli.Command) error {
	author := cmd.StringArg("author")
	if author == "" {
		return fmt.Errorf("%w: author", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		authors, err := s.Stores.Local.UnfollowAuthor(ctx, author)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Unfollowed %s (%d authors)\n", author, len(authors))
	})
}

// WatchLaterAdd adds a comic to the watch-later list. A comic with the same ID is not added twice.
func (r *Runner) WatchLaterAdd(ctx context.Context, cmd *cli.Command) error {
	comic := models.Comic{
		ID:     cmd.String("id"),
		Title:  cmd.String("title"),
		Author: cmd.String("author"),
	}
	if comic.ID == "" {
		return fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		list, err := s.Stores.Local.AddWatchLater(ctx, comic)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Watch later: %d comics\n", len(list))
	})
}

// WatchLaterRemove removes a comic from the watch-later list by ID.
func (r *Runner) WatchLaterRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, func(s *Session) error {
		list, err := s.Stores.Local.RemoveWatchLater(ctx, id)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Watch later: %d comics\n", len(list))
	})
}

// WatchLaterList prints the watch-later list.
func (r *Runner) WatchLaterList(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		list := s.Stores.Local.WatchLater()
		if cmd.Bool("json") {
			return r.writeJSON(list, true)
		}

		r.writePlainHeader(fmt.Sprintf("Watch later (%d)", len(list)))
		for i, c := range list {
			if c.Author != "" {
				r.writePlain("%d. %s - %s [%s]\n", i+1, c.Author, c.Title, c.ID)
			} else {
				r.writePlain("%d. %s [%s]\n", i+1, c.Title, c.ID)
			}
		}
		return nil
	})
}

// LocalAccount shows the remembered account, or remembers new credentials when flags are given.
func (r *Runner) LocalAccount(ctx context.Context, cmd *cli.Command) error {
	email, password := cmd.String("email"), cmd.String("password")

	return r.withSession(ctx, func(s *Session) error {
		info := s.Stores.Local.AccountInfo()

		if email == "" && password == "" {
			if info.Empty() {
				return r.writePlain("No account remembered\n")
			}
			return r.writePlain("Email: %s\nPassword: %s\n", info.Email, mask(info.Password))
		}

		if email != "" {
			info.Email = email
		}
		if password != "" {
			info.Password = password
		}
		if err := s.Stores.Local.SetAccountInfo(ctx, info); err != nil {
			return err
		}
		return r.writePlain("✓ Account remembered: %s\n", info.Email)
	})
}

func mask(s string) string {
	if s == "" {
		return "(none)"
	}
	return "********"
}
