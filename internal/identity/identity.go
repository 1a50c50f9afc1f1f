// Package identity talks to the identity provider on behalf of one browser
// visitor. A Store is bound to that visitor's persisted client state.
package identity

import (
	"context"
	"errors"

	"ekaai-backend/internal/models"
)

var (
	ErrNotConfigured = errors.New("identity: operation not configured")
	ErrInvalidState  = errors.New("identity: oauth state mismatch")
	ErrNoSession     = errors.New("identity: not signed in")
)

type SignInOptions struct {
	// RedirectTo is where the provider sends the browser after consent.
	RedirectTo string
}

// Store is the session store contract the auth context depends on.
// Errors are returned, never panicked; callers fall back to "signed out".
// Subscribers run synchronously and must not call back into the store.
type Store interface {
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithGoogle(ctx context.Context, opts SignInOptions) (string, error)
	CompleteSignIn(ctx context.Context, cb models.OAuthCallback) (*models.Session, error)
	SignOut(ctx context.Context) error
	DeleteUser(ctx context.Context, userID string) error
	OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func())
}

// AccountUpdater is implemented by stores whose account record keeps its own
// copy of the display name.
type AccountUpdater interface {
	UpdateAccount(ctx context.Context, name string) (*models.User, error)
}

// Factory builds the store for a visitor id.
type Factory func(visitorID string) Store
