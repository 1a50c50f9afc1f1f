package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ekaai-backend/internal/authctx"
	"ekaai-backend/internal/identity"
	"ekaai-backend/internal/models"
)

type stubStore struct {
	session *models.Session
	block   chan struct{}
}

func (s *stubStore) GetSession(ctx context.Context) (*models.Session, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.session, nil
}

func (s *stubStore) SignInWithGoogle(context.Context, identity.SignInOptions) (string, error) {
	return "", nil
}

func (s *stubStore) CompleteSignIn(context.Context, models.OAuthCallback) (*models.Session, error) {
	return nil, nil
}

func (s *stubStore) SignOut(context.Context) error                   { return nil }
func (s *stubStore) DeleteUser(context.Context, string) error        { return nil }
func (s *stubStore) OnAuthStateChange(func(models.AuthEvent)) func() { return func() {} }

type stubProfiles struct{ profile *models.Profile }

func (p *stubProfiles) FetchProfile(context.Context, string) (*models.Profile, error) {
	return p.profile, nil
}

func (p *stubProfiles) Refresh(ctx context.Context, id string) (*models.Profile, error) {
	return p.FetchProfile(ctx, id)
}

func (p *stubProfiles) Save(context.Context, string, *models.ProfileUpdate) error { return nil }
func (p *stubProfiles) Delete(context.Context, string) error                      { return nil }

// fixedContexts hands every visitor the same auth context.
type fixedContexts struct{ ac *authctx.Context }

func (f fixedContexts) Get(string) *authctx.Context { return f.ac }

func newAuth(t *testing.T, store *stubStore, profile *models.Profile) *authctx.Context {
	t.Helper()
	ac := authctx.New(store, &stubProfiles{profile: profile})
	ac.Start()
	t.Cleanup(ac.Close)
	return ac
}

func signedIn() *stubStore {
	return &stubStore{session: &models.Session{AccessToken: "tok", User: &models.User{ID: "u1"}}}
}

func serveGated(ac *authctx.Context, requireProfile bool, accept string) *httptest.ResponseRecorder {
	gate := NewGate(time.Second, "http://localhost:5173/")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	var h http.Handler
	if requireProfile {
		h = gate.RequireProfile(ok)
	} else {
		h = gate.RequireUser(ok)
	}
	h = NewVisitors(fixedContexts{ac}, false).Middleware(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDecide(t *testing.T) {
	user := &models.User{ID: "u1"}
	profile := &models.Profile{ID: "u1"}

	tests := []struct {
		name           string
		state          authctx.State
		requireProfile bool
		want           Decision
	}{
		{"loading", authctx.State{Loading: true}, true, Pending},
		{"loading with user", authctx.State{User: user, Loading: true}, false, Pending},
		{"no user", authctx.State{}, false, RedirectLogin},
		{"no user needs profile", authctx.State{}, true, RedirectLogin},
		{"user without profile", authctx.State{User: user}, true, RedirectOnboarding},
		{"user without profile, profile optional", authctx.State{User: user}, false, Allow},
		{"user with profile", authctx.State{User: user, Profile: profile}, true, Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.state, tt.requireProfile); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDecisionPath(t *testing.T) {
	require.Equal(t, "/login", RedirectLogin.Path())
	require.Equal(t, "/onboarding", RedirectOnboarding.Path())
	require.Equal(t, "", Allow.Path())
}

func TestGate_NoUserAPI(t *testing.T) {
	rec := serveGated(newAuth(t, &stubStore{}, nil), true, "application/json")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body struct {
		Error struct {
			Code       string `json:"code"`
			RedirectTo string `json:"redirect_to"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UNAUTHORIZED", body.Error.Code)
	require.Equal(t, "/login", body.Error.RedirectTo)
}

func TestGate_NoUserBrowserRedirects(t *testing.T) {
	rec := serveGated(newAuth(t, &stubStore{}, nil), false, "text/html,application/xhtml+xml")

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://localhost:5173/login", rec.Header().Get("Location"))
}

func TestGate_ProfileRequired(t *testing.T) {
	ac := newAuth(t, signedIn(), nil)

	rec := serveGated(ac, true, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"redirect_to":"/onboarding"`)

	rec = serveGated(ac, false, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_Allows(t *testing.T) {
	rec := serveGated(newAuth(t, signedIn(), &models.Profile{ID: "u1"}), true, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_PendingWhileLoading(t *testing.T) {
	ac := newAuth(t, &stubStore{block: make(chan struct{})}, nil)

	gate := NewGate(10*time.Millisecond, "http://localhost:5173")
	h := NewVisitors(fixedContexts{ac}, false).Middleware(gate.RequireUser(http.NotFoundHandler()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/onboarding", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestVisitors_IssuesAndKeepsCookie(t *testing.T) {
	ac := newAuth(t, &stubStore{}, nil)
	var seen string
	h := NewVisitors(fixedContexts{ac}, true).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetVisitorID(r.Context())
		if GetAuth(r.Context()) != ac {
			t.Errorf("Expected auth context on request")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, VisitorCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.True(t, cookies[0].Secure)
	require.Equal(t, cookies[0].Value, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: seen})
	rec = httptest.NewRecorder()
	first := seen
	h.ServeHTTP(rec, req)
	require.Equal(t, first, seen)
	require.Empty(t, rec.Result().Cookies())
}

func TestVisitors_ReplacesMalformedCookie(t *testing.T) {
	ac := newAuth(t, &stubStore{}, nil)
	var seen string
	h := NewVisitors(fixedContexts{ac}, false).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetVisitorID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "../../etc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotEqual(t, "../../etc", seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/waitlist/student", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Errorf("Expected Retry-After header")
		}
	}
	require.Equal(t, []int{200, 200, 429}, codes)

	// Another IP has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/waitlist/student", nil)
	req.RemoteAddr = "203.0.113.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, rl.Count())
}

func TestRateLimiter_CleanupForgetsIdleIPs(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()

	rl.limiterFor("203.0.113.7")
	rl.cleanup(time.Now().Add(3 * time.Minute))
	require.Equal(t, 0, rl.Count())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS("http://localhost:5173/")(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
