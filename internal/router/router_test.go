package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ekaai-backend/internal/authctx"
	"ekaai-backend/internal/client"
	"ekaai-backend/internal/handlers"
	"ekaai-backend/internal/identity"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
	"ekaai-backend/internal/websocket"
)

type stubStore struct{ session *models.Session }

func (s *stubStore) GetSession(context.Context) (*models.Session, error) { return s.session, nil }

func (s *stubStore) SignInWithGoogle(context.Context, identity.SignInOptions) (string, error) {
	return "https://auth.example.com/authorize", nil
}

func (s *stubStore) CompleteSignIn(context.Context, models.OAuthCallback) (*models.Session, error) {
	return nil, identity.ErrInvalidState
}

func (s *stubStore) SignOut(context.Context) error                   { return nil }
func (s *stubStore) DeleteUser(context.Context, string) error        { return nil }
func (s *stubStore) OnAuthStateChange(func(models.AuthEvent)) func() { return func() {} }

type stubProfiles struct{ profile *models.Profile }

func (p stubProfiles) FetchProfile(context.Context, string) (*models.Profile, error) {
	return p.profile, nil
}

func (p stubProfiles) Refresh(context.Context, string) (*models.Profile, error) {
	return p.profile, nil
}

func (p stubProfiles) Save(context.Context, string, *models.ProfileUpdate) error { return nil }
func (p stubProfiles) Delete(context.Context, string) error                      { return nil }

type oneContext struct{ ac *authctx.Context }

func (o oneContext) Get(string) *authctx.Context { return o.ac }

func newTestRouter(t *testing.T, session *models.Session, profile *models.Profile, waitlistLimit int) http.Handler {
	t.Helper()
	ac := authctx.New(&stubStore{session: session}, stubProfiles{profile: profile})
	ac.Start()
	t.Cleanup(ac.Close)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	t.Cleanup(backend.Close)
	api := client.New(backend.URL)

	limiter := middleware.NewRateLimiter(waitlistLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	const frontend = "http://localhost:5173"
	tutor := services.NewTutor(time.Minute, nil)
	return New(
		middleware.NewVisitors(oneContext{ac}, false),
		middleware.NewGate(time.Second, frontend),
		limiter,
		handlers.NewAuthHandler(tutor, frontend, "http://localhost:8080", time.Second),
		handlers.NewUserHandler(),
		handlers.NewWaitlistHandler(services.NewWaitlistService(api, nil)),
		handlers.NewDashboardHandler(api),
		handlers.NewStudySessionHandler(api),
		handlers.NewFlashcardHandler(api),
		handlers.NewContentHandler(api),
		handlers.NewChatHandler(api, tutor, nil),
		websocket.NewHub(frontend),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics\n")) }),
		frontend,
	)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, nil, nil, 5)

	rr := do(h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("Expected a request id header")
	}

	rr = do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_GatesByAuthState(t *testing.T) {
	user := &models.Session{AccessToken: "tok", User: &models.User{ID: "u1"}}
	profile := &models.Profile{ID: "u1"}

	tests := []struct {
		name     string
		session  *models.Session
		profile  *models.Profile
		method   string
		path     string
		wantCode int
	}{
		{"signed out dashboard", nil, nil, http.MethodGet, "/api/v1/dashboard", http.StatusUnauthorized},
		{"signed out onboarding", nil, nil, http.MethodPost, "/api/v1/onboarding", http.StatusUnauthorized},
		{"no profile dashboard", user, nil, http.MethodGet, "/api/v1/dashboard", http.StatusForbidden},
		{"no profile onboarding reaches handler", user, nil, http.MethodPost, "/api/v1/onboarding", http.StatusBadRequest},
		{"complete profile dashboard", user, profile, http.MethodGet, "/api/v1/dashboard", http.StatusOK},
		{"complete profile sessions", user, profile, http.MethodGet, "/api/v1/sessions", http.StatusOK},
		{"auth state is public", nil, nil, http.MethodGet, "/api/v1/auth/state", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(t, tc.session, tc.profile, 5)
			body := ""
			if tc.method == http.MethodPost {
				body = `{}`
			}
			rr := do(h, tc.method, tc.path, body)
			if rr.Code != tc.wantCode {
				t.Errorf("Expected status %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouter_OnboardingRedirectCarriesTarget(t *testing.T) {
	user := &models.Session{AccessToken: "tok", User: &models.User{ID: "u1"}}
	h := newTestRouter(t, user, nil, 5)

	rr := do(h, http.MethodGet, "/api/v1/profile", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "ONBOARDING_REQUIRED", body.Error.Code)
	require.Equal(t, "/onboarding", body.Error.RedirectTo)
}

func TestRouter_WaitlistIsRateLimited(t *testing.T) {
	h := newTestRouter(t, nil, nil, 2)

	for i := 0; i < 2; i++ {
		rr := do(h, http.MethodPost, "/api/v1/waitlist/student", `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}
	rr := do(h, http.MethodPost, "/api/v1/waitlist/student", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_GoogleSignInRedirects(t *testing.T) {
	h := newTestRouter(t, nil, nil, 5)

	rr := do(h, http.MethodGet, "/auth/google", "")
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://auth.example.com/authorize", rr.Header().Get("Location"))

	var issued bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.VisitorCookie {
			issued = true
		}
	}
	require.True(t, issued, "Expected a visitor cookie on first contact")
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, nil, nil, 5)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
