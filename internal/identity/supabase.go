package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"ekaai-backend/internal/clientstate"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/metrics"
	"ekaai-backend/internal/models"
)

type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	HTTPClient *http.Client
	Recorder   metrics.Recorder
}

// AuthError is an error response from the auth server.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
}

func isClientError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Status >= 400 && ae.Status < 500
}

// Supabase implements Store against the GoTrue REST API using the PKCE flow.
type Supabase struct {
	cfg    SupabaseConfig
	http   *http.Client
	state  clientstate.Storage
	events broadcaster
	rec    metrics.Recorder
	log    *zap.Logger
	now    func() time.Time

	// held across a refresh so concurrent readers do not spend the refresh token twice
	mu sync.Mutex
}

func NewSupabase(cfg SupabaseConfig, state clientstate.Storage) *Supabase {
	h := cfg.HTTPClient
	if h == nil {
		h = &http.Client{Timeout: 15 * time.Second}
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = metrics.Noop{}
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Supabase{
		cfg:   cfg,
		http:  h,
		state: state,
		rec:   rec,
		log:   logger.Named("identity.supabase"),
		now:   time.Now,
	}
}

func NewSupabaseFactory(cfg SupabaseConfig, states clientstate.Provider) Factory {
	return func(visitorID string) Store {
		return NewSupabase(cfg, states.For(visitorID))
	}
}

func (g *Supabase) OnAuthStateChange(fn func(models.AuthEvent)) func() {
	return g.events.subscribe(fn)
}

func (g *Supabase) GetSession(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, err := loadSession(ctx, g.state)
	if err != nil || s == nil {
		return nil, err
	}

	if s.Expired(g.now()) {
		if s.RefreshToken == "" {
			g.dropSession(ctx)
			return nil, nil
		}
		refreshed, err := g.grant(ctx, "refresh_token", map[string]string{"refresh_token": s.RefreshToken})
		if isClientError(err) {
			g.log.Info("refresh token rejected, signing out", zap.Error(err))
			g.dropSession(ctx)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if err := saveSession(ctx, g.state, refreshed); err != nil {
			return nil, err
		}
		g.events.emit(models.AuthEvent{Kind: models.EventTokenRefreshed, Session: refreshed})
		s = refreshed
	}

	if s.User == nil {
		u, err := g.fetchUser(ctx, s.AccessToken)
		if isClientError(err) {
			g.dropSession(ctx)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.User = u
		if err := clientstate.SetJSON(ctx, g.state, clientstate.KeyUser, u); err != nil {
			g.log.Warn("cache user", zap.Error(err))
		}
	}
	return s, nil
}

func (g *Supabase) SignInWithGoogle(ctx context.Context, opts SignInOptions) (string, error) {
	verifier := oauth2.GenerateVerifier()
	if err := g.state.Set(ctx, keyOAuthVerifier, verifier); err != nil {
		return "", fmt.Errorf("store pkce verifier: %w", err)
	}

	q := url.Values{}
	q.Set("provider", "google")
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "s256")
	return g.cfg.URL + "/auth/v1/authorize?" + q.Encode(), nil
}

func (g *Supabase) CompleteSignIn(ctx context.Context, cb models.OAuthCallback) (*models.Session, error) {
	var s *models.Session
	switch {
	case cb.Code != "":
		verifier, err := g.state.Get(ctx, keyOAuthVerifier)
		if err != nil {
			return nil, ErrInvalidState
		}
		g.state.Remove(ctx, keyOAuthVerifier)
		s, err = g.grant(ctx, "pkce", map[string]string{"auth_code": cb.Code, "code_verifier": verifier})
		if err != nil {
			return nil, err
		}
	case cb.AccessToken != "":
		u, err := g.fetchUser(ctx, cb.AccessToken)
		if err != nil {
			return nil, err
		}
		s = &models.Session{AccessToken: cb.AccessToken, RefreshToken: cb.RefreshToken, User: u}
		if cb.ExpiresIn > 0 {
			s.ExpiresAt = g.now().Add(time.Duration(cb.ExpiresIn) * time.Second)
		} else {
			s.ExpiresAt = expiryOf(cb.AccessToken)
		}
	default:
		return nil, errors.New("identity: callback carries neither code nor tokens")
	}

	g.mu.Lock()
	err := replaceSession(ctx, g.state, s)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	g.events.emit(models.AuthEvent{Kind: models.EventSignedIn, Session: s})
	return s, nil
}

// SignOut always clears the persisted session; the remote revoke error is still returned.
func (g *Supabase) SignOut(ctx context.Context) error {
	g.mu.Lock()
	token, _ := g.state.Get(ctx, clientstate.KeyToken)
	clearErr := g.state.Clear(ctx)
	g.mu.Unlock()

	var remoteErr error
	if token != "" {
		remoteErr = g.do(ctx, http.MethodPost, "/auth/v1/logout", token, g.cfg.AnonKey, nil, nil)
	}
	g.events.emit(models.AuthEvent{Kind: models.EventSignedOut})
	return errors.Join(clearErr, remoteErr)
}

func (g *Supabase) DeleteUser(ctx context.Context, userID string) error {
	if g.cfg.ServiceKey == "" {
		return ErrNotConfigured
	}
	return g.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(userID), g.cfg.ServiceKey, g.cfg.ServiceKey, nil, nil)
}

func (g *Supabase) dropSession(ctx context.Context) {
	if err := g.state.Clear(ctx); err != nil {
		g.log.Warn("clear session", zap.Error(err))
	}
	g.events.emit(models.AuthEvent{Kind: models.EventSignedOut})
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *models.User `json:"user"`
}

func (g *Supabase) grant(ctx context.Context, grantType string, body map[string]string) (*models.Session, error) {
	var tr tokenResponse
	if err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grantType, "", g.cfg.AnonKey, body, &tr); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Status: http.StatusBadGateway, Code: "empty_token", Message: "no access token in response"}
	}
	s := &models.Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken, User: tr.User}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = g.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		s.ExpiresAt = expiryOf(tr.AccessToken)
	}
	return s, nil
}

func (g *Supabase) fetchUser(ctx context.Context, accessToken string) (*models.User, error) {
	var u models.User
	if err := g.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, g.cfg.AnonKey, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Code: "no_user", Message: "token resolved to no user"}
	}
	return &u, nil
}

func (g *Supabase) do(ctx context.Context, method, path, bearer, apiKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	endpoint := path
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	if strings.HasPrefix(endpoint, "/auth/v1/admin/users/") {
		endpoint = "/auth/v1/admin/users/:id"
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		g.rec.RecordUpstream("gotrue", endpoint, 0, time.Since(start))
		return fmt.Errorf("gotrue %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	g.rec.RecordUpstream("gotrue", endpoint, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gotrue %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode >= 300 {
		return parseAuthError(resp.StatusCode, raw)
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gotrue %s: decode: %w", endpoint, err)
		}
	}
	return nil
}

func parseAuthError(status int, raw []byte) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	json.Unmarshal(raw, &body)

	e := &AuthError{Status: status, Code: body.ErrorCode, Message: body.Msg}
	if e.Code == "" {
		e.Code = body.Error
	}
	for _, m := range []string{body.ErrorDescription, body.Message} {
		if e.Message == "" {
			e.Message = m
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
