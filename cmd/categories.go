package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/stores"
	"github.com/urfave/cli/v3"
)

// Categories lists the catalog categories, hiding blocked ones unless --all is set.
func (r *Runner) Categories(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		local := s.Stores.Local

		if cmd.Bool("refresh") {
			if err := local.SetCategories(ctx, []models.Category{}); err != nil {
				return err
			}
		}

		cats, err := stores.Categories(ctx, local, s.Client)
		if err != nil {
			return err
		}

		if !cmd.Bool("all") {
			cats = stores.Visible(cats, s.Stores.Setting.Comic())
		}

		if cmd.Bool("json") {
			return r.writeJSON(cats, true)
		}

		r.writePlainHeader(fmt.Sprintf("Categories (%d)", len(cats)))
		for _, c := range cats {
			if c.Description != "" {
				r.writePlain("• %s: %s\n", c.Title, c.Description)
			} else {
				r.writePlain("• %s\n", c.Title)
			}
		}
		return nil
	})
}
