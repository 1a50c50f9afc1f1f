package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/clientstate"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/models"
)

const keyOAuthRedirect = "ekaai_oauth_redirect"

type TokenAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	CallbackURL        string
	HTTPClient         *http.Client
	// Verify checks a Google ID token. Defaults to idtoken.Validate.
	Verify func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// TokenAuth signs visitors in with Google and trades the ID token for EkaAI
// bearer tokens at POST /auth/google. It has no refresh endpoint: an expired
// token ends the session.
type TokenAuth struct {
	cfg    TokenAuthConfig
	oauth  oauth2.Config
	api    *client.Client
	state  clientstate.Storage
	events broadcaster
	log    *zap.Logger
	now    func() time.Time
}

func NewTokenAuth(cfg TokenAuthConfig, api *client.Client, state clientstate.Storage) *TokenAuth {
	if cfg.Verify == nil {
		cfg.Verify = idtoken.Validate
	}
	return &TokenAuth{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		api:   api,
		state: state,
		log:   logger.Named("identity.token"),
		now:   time.Now,
	}
}

func NewTokenAuthFactory(cfg TokenAuthConfig, api *client.Client, states clientstate.Provider) Factory {
	return func(visitorID string) Store {
		return NewTokenAuth(cfg, api, states.For(visitorID))
	}
}

func (t *TokenAuth) OnAuthStateChange(fn func(models.AuthEvent)) func() {
	return t.events.subscribe(fn)
}

func (t *TokenAuth) GetSession(ctx context.Context) (*models.Session, error) {
	s, err := loadSession(ctx, t.state)
	if err != nil || s == nil {
		return nil, err
	}
	if s.Expired(t.now()) {
		t.drop(ctx)
		return nil, nil
	}
	if s.User == nil {
		u, err := t.api.WithBearer(s.AccessToken).AuthProfile(ctx)
		if client.IsStatus(err, http.StatusUnauthorized) {
			t.drop(ctx)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.User = u
		clientstate.SetJSON(ctx, t.state, clientstate.KeyUser, u)
	}
	return s, nil
}

func (t *TokenAuth) SignInWithGoogle(ctx context.Context, opts SignInOptions) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()
	conf := t.oauth
	if opts.RedirectTo != "" {
		conf.RedirectURL = opts.RedirectTo
	}
	for k, v := range map[string]string{keyOAuthState: state, keyOAuthVerifier: verifier, keyOAuthRedirect: conf.RedirectURL} {
		if err := t.state.Set(ctx, k, v); err != nil {
			return "", fmt.Errorf("store oauth state: %w", err)
		}
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)), nil
}

func (t *TokenAuth) CompleteSignIn(ctx context.Context, cb models.OAuthCallback) (*models.Session, error) {
	credential := cb.Credential
	if credential == "" && cb.Code != "" {
		idTok, err := t.exchange(ctx, cb)
		if err != nil {
			return nil, err
		}
		credential = idTok
	}
	if credential == "" {
		return nil, errors.New("identity: callback carries neither code nor credential")
	}

	payload, err := t.cfg.Verify(ctx, credential, t.cfg.GoogleClientID)
	if err != nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Code: "invalid_credential", Message: err.Error()}
	}

	res, err := t.api.GoogleSignIn(ctx, credential)
	if err != nil {
		return nil, err
	}
	s := &models.Session{
		AccessToken:  res.Token,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    expiryOf(res.Token),
		User:         res.User,
	}
	if s.User == nil {
		s.User = userFromPayload(payload)
	}
	if err := replaceSession(ctx, t.state, s); err != nil {
		return nil, err
	}
	t.events.emit(models.AuthEvent{Kind: models.EventSignedIn, Session: s})
	return s, nil
}

func (t *TokenAuth) exchange(ctx context.Context, cb models.OAuthCallback) (string, error) {
	want, err := t.state.Get(ctx, keyOAuthState)
	if err != nil || want == "" || want != cb.State {
		return "", ErrInvalidState
	}
	verifier, _ := t.state.Get(ctx, keyOAuthVerifier)
	conf := t.oauth
	if redirect, err := t.state.Get(ctx, keyOAuthRedirect); err == nil {
		conf.RedirectURL = redirect
	}
	for _, k := range []string{keyOAuthState, keyOAuthVerifier, keyOAuthRedirect} {
		t.state.Remove(ctx, k)
	}

	if t.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.cfg.HTTPClient)
	}
	tok, err := conf.Exchange(ctx, cb.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchange google code: %w", err)
	}
	idTok, _ := tok.Extra("id_token").(string)
	if idTok == "" {
		return "", errors.New("identity: google token response has no id_token")
	}
	return idTok, nil
}

// SignOut only clears local state; the token API has no revoke endpoint.
func (t *TokenAuth) SignOut(ctx context.Context) error {
	err := t.state.Clear(ctx)
	t.events.emit(models.AuthEvent{Kind: models.EventSignedOut})
	return err
}

func (t *TokenAuth) DeleteUser(context.Context, string) error {
	return ErrNotConfigured
}

// UpdateAccount sets the account name at PUT /auth/profile and caches the
// user the backend returns.
func (t *TokenAuth) UpdateAccount(ctx context.Context, name string) (*models.User, error) {
	s, err := loadSession(ctx, t.state)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}

	u, err := t.api.WithBearer(s.AccessToken).UpdateAuthProfile(ctx, map[string]any{"name": name})
	if client.IsStatus(err, http.StatusUnauthorized) {
		t.drop(ctx)
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, errors.New("identity: profile update returned no user")
	}
	if err := clientstate.SetJSON(ctx, t.state, clientstate.KeyUser, u); err != nil {
		return nil, err
	}
	s.User = u
	t.events.emit(models.AuthEvent{Kind: models.EventUserUpdated, Session: s})
	return u, nil
}

func (t *TokenAuth) drop(ctx context.Context) {
	if err := t.state.Clear(ctx); err != nil {
		t.log.Warn("clear session", zap.Error(err))
	}
	t.events.emit(models.AuthEvent{Kind: models.EventSignedOut})
}

func userFromPayload(p *idtoken.Payload) *models.User {
	u := &models.User{ID: p.Subject}
	if email, ok := p.Claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := p.Claims["name"].(string); ok {
		u.Metadata.FullName = name
	}
	if pic, ok := p.Claims["picture"].(string); ok {
		u.Metadata.AvatarURL = pic
	}
	return u
}
