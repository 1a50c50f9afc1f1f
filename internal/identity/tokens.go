package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ekaai-backend/internal/clientstate"
	"ekaai-backend/internal/models"
)

// Entries used only during the OAuth round trip.
const (
	keyOAuthState    = "ekaai_oauth_state"
	keyOAuthVerifier = "ekaai_oauth_verifier"
)

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// inspectAccessToken reads sub, email and exp without verifying the signature.
// Verification is the provider's job; we only need the expiry for refresh decisions.
func inspectAccessToken(token string) (*accessClaims, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("identity: parse access token: %w", err)
	}
	return &claims, nil
}

func expiryOf(token string) time.Time {
	claims, err := inspectAccessToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// loadSession rebuilds a session from the persisted entries. (nil, nil) when signed out.
func loadSession(ctx context.Context, st clientstate.Storage) (*models.Session, error) {
	token, err := st.Get(ctx, clientstate.KeyToken)
	if errors.Is(err, clientstate.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := &models.Session{AccessToken: token, ExpiresAt: expiryOf(token)}

	refresh, err := st.Get(ctx, clientstate.KeyRefreshToken)
	if err != nil && !errors.Is(err, clientstate.ErrNotFound) {
		return nil, err
	}
	s.RefreshToken = refresh

	var u models.User
	switch err := clientstate.GetJSON(ctx, st, clientstate.KeyUser, &u); {
	case err == nil:
		s.User = &u
	case errors.Is(err, clientstate.ErrNotFound):
	default:
		// A corrupt cached user is refetched by the caller.
		st.Remove(ctx, clientstate.KeyUser)
	}
	return s, nil
}

func saveSession(ctx context.Context, st clientstate.Storage, s *models.Session) error {
	if err := st.Set(ctx, clientstate.KeyToken, s.AccessToken); err != nil {
		return err
	}
	if s.RefreshToken != "" {
		if err := st.Set(ctx, clientstate.KeyRefreshToken, s.RefreshToken); err != nil {
			return err
		}
	}
	if s.User != nil {
		if err := clientstate.SetJSON(ctx, st, clientstate.KeyUser, s.User); err != nil {
			return err
		}
	}
	return nil
}

// replaceSession stores a fresh sign-in. Nothing the new session omits may
// carry over from the previous account.
func replaceSession(ctx context.Context, st clientstate.Storage, s *models.Session) error {
	for _, k := range clientstate.Keys {
		if err := st.Remove(ctx, k); err != nil {
			return err
		}
	}
	return saveSession(ctx, st, s)
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
