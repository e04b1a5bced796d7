package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/stores"
	"github.com/urfave/cli/v3"
)

// UserLogin signs in with the given credentials, falling back to the remembered account.
func (r *Runner) UserLogin(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		remembered := s.Stores.Local.AccountInfo()

		email, password := cmd.String("email"), cmd.String("password")
		if email == "" {
			email = remembered.Email
		}
		if password == "" {
			password = remembered.Password
		}
		if email == "" || password == "" {
			return fmt.Errorf("%w: pass --email and --password or remember an account first", shared.ErrMissingCredentials)
		}

		r.logger.Info("signing in", "email", email)
		if err := s.Stores.User.Login(ctx, s.Client, s.Stores.Local, email, password); err != nil {
			return err
		}
		return r.writePlain("✓ Signed in as %s\n", email)
	})
}

// UserProfile fetches the profile and stores it. A rejected session signs out.
func (r *Runner) UserProfile(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		p, err := s.Stores.User.FetchProfile(ctx, s.Client)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(p, true)
		}

		r.writePlainHeader(p.Name)
		r.writePlain("Email: %s\n", p.Email)
		r.writePlain("Level: %d (exp %d)\n", p.Level, p.Exp)
		if p.Title != "" {
			r.writePlain("Title: %s\n", p.Title)
		}
		if p.Slogan != "" {
			r.writePlain("Slogan: %s\n", p.Slogan)
		}
		return nil
	})
}

// UserLogout drops the token and profile.
func (r *Runner) UserLogout(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		if err := s.Stores.User.ClearUserProfile(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Signed out\n")
	})
}

// UserShow prints the user store.
func (r *Runner) UserShow(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, func(s *Session) error {
		return r.showStores(cmd, s.Stores, stores.UserID)
	})
}
