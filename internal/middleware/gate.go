package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ekaai-backend/internal/authctx"
)

const (
	LoginPath      = "/login"
	OnboardingPath = "/onboarding"
	DashboardPath  = "/dashboard"
)

type Decision int

const (
	Pending Decision = iota
	Allow
	RedirectLogin
	RedirectOnboarding
)

// Decide is the route gate: nothing is decided while loading, a missing user
// goes to login, and a missing profile goes to onboarding when one is required.
func Decide(st authctx.State, requireProfile bool) Decision {
	switch {
	case st.Loading:
		return Pending
	case st.User == nil:
		return RedirectLogin
	case requireProfile && st.Profile == nil:
		return RedirectOnboarding
	default:
		return Allow
	}
}

// Path is the redirect target, or "" for Allow and Pending.
func (d Decision) Path() string {
	switch d {
	case RedirectLogin:
		return LoginPath
	case RedirectOnboarding:
		return OnboardingPath
	}
	return ""
}

type Gate struct {
	wait        time.Duration
	frontendURL string
}

// NewGate returns a gate that waits up to wait for a visitor's first session
// check before deciding.
func NewGate(wait time.Duration, frontendURL string) *Gate {
	return &Gate{wait: wait, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// RequireUser lets signed-in users through, with or without a profile.
func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return g.handler(false, next)
}

// RequireProfile additionally requires a completed onboarding profile.
func (g *Gate) RequireProfile(next http.Handler) http.Handler {
	return g.handler(true, next)
}

func (g *Gate) handler(requireProfile bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := GetAuth(r.Context())
		if ac == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing visitor session", r)
			return
		}

		st := ac.State()
		if st.Loading {
			ctx, cancel := context.WithTimeout(r.Context(), g.wait)
			st, _ = ac.WaitReady(ctx)
			cancel()
		}

		d := Decide(st, requireProfile)
		switch d {
		case Allow:
			next.ServeHTTP(w, r)
		case Pending:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "AUTH_PENDING", "Session is still loading", r)
		case RedirectLogin:
			if wantsHTML(r) {
				http.Redirect(w, r, g.frontendURL+d.Path(), http.StatusFound)
				return
			}
			writeRedirectError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", d.Path(), r)
		case RedirectOnboarding:
			if wantsHTML(r) {
				http.Redirect(w, r, g.frontendURL+d.Path(), http.StatusFound)
				return
			}
			writeRedirectError(w, http.StatusForbidden, "ONBOARDING_REQUIRED", "Complete onboarding first", d.Path(), r)
		}
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
