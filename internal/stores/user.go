package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/picasync/internal/mirror"
	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/services"
	"github.com/desertthunder/picasync/internal/shared"
	"github.com/desertthunder/picasync/internal/storage"
)

// UserID is the id of the user store.
const UserID = "user"

// UserStore mirrors the session token and profile.
type UserStore struct {
	*mirror.Mirror[models.UserState]
}

// NewUserStore creates a signed-out [UserStore].
func NewUserStore(d *storage.Durable, logger *log.Logger) *UserStore {
	return &UserStore{mirror.New(UserID, models.UserState{}, d, logger,
		mirror.NewField("token", storage.UserToken, func(u *models.UserState) *string { return &u.Token }),
		mirror.NewField("user", storage.UserProfile, func(u *models.UserState) **models.UserProfile { return &u.User }),
	)}
}

// Token returns the session token, empty when signed out.
func (s *UserStore) Token() string { return s.State().Token }

// Profile returns the cached profile, or nil.
func (s *UserStore) Profile() *models.UserProfile { return s.State().User }

// SetToken stores the session token.
func (s *UserStore) SetToken(ctx context.Context, token string) error {
	return s.Update(ctx, func(u *models.UserState) { u.Token = token })
}

// SetUser stores the profile.
func (s *UserStore) SetUser(ctx context.Context, p *models.UserProfile) error {
	return s.Update(ctx, func(u *models.UserState) { u.User = p })
}

// ClearUserProfile signs out by dropping both the token and the profile.
func (s *UserStore) ClearUserProfile(ctx context.Context) error {
	return s.Update(ctx, func(u *models.UserState) {
		u.Token = ""
		u.User = nil
	})
}

// FetchProfile loads the profile from the API and stores it. A rejected
// session clears the stored token and profile.
func (s *UserStore) FetchProfile(ctx context.Context, client services.Client) (*models.UserProfile, error) {
	if s.Token() == "" {
		return nil, fmt.Errorf("%w: sign in first", shared.ErrNotAuthenticated)
	}

	p, err := client.Profile(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		if cerr := s.ClearUserProfile(ctx); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return p, s.SetUser(ctx, p)
}

// Login signs in and stores the token. The credentials are remembered in
// local when it is not nil.
func (s *UserStore) Login(ctx context.Context, client services.Client, local *LocalStore, email, password string) error {
	token, err := client.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	errs := []error{s.SetToken(ctx, token)}
	if local != nil {
		errs = append(errs, local.SetAccountInfo(ctx, models.AccountInfo{Email: email, Password: password}))
	}
	return errors.Join(errs...)
}
