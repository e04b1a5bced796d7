package main

import (
	"context"

	"github.com/desertthunder/picasync/internal/stores"
	"github.com/urfave/cli/v3"
)

// Export renders every store.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		return r.showStores(cmd, s.Stores, stores.LocalID, stores.UserID, stores.SettingID)
	})
}
