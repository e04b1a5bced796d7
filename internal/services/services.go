package services

import (
	"context"

	"github.com/desertthunder/picasync/internal/models"
)

// Client is the subset of the comic API the stores use.
type Client interface {
	// SignIn exchanges credentials for a session token.
	SignIn(ctx context.Context, email, password string) (string, error)

	// Profile fetches the signed-in user's profile.
	Profile(ctx context.Context) (*models.UserProfile, error)

	// Categories fetches the category catalog.
	Categories(ctx context.Context) ([]models.Category, error)
}

// SessionFunc reports the current session token and image quality.
type SessionFunc func() (token string, quality models.ImageQuality)
