package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ekaai-backend/internal/authctx"
)

type contextKey string

const (
	VisitorIDKey contextKey = "visitor_id"
	AuthKey      contextKey = "auth"
)

// VisitorCookie identifies a browser across requests. It carries no credentials.
const VisitorCookie = "ekaai_sid"

const visitorCookieMaxAge = 30 * 24 * time.Hour

// Contexts hands out the auth context for a visitor.
type Contexts interface {
	Get(visitorID string) *authctx.Context
}

type Visitors struct {
	contexts Contexts
	secure   bool
}

func NewVisitors(contexts Contexts, secure bool) *Visitors {
	return &Visitors{contexts: contexts, secure: secure}
}

// Middleware resolves (or issues) the visitor cookie and attaches the
// visitor's auth context to the request.
func (v *Visitors) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitorID := ""
		if c, err := r.Cookie(VisitorCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				visitorID = id.String()
			}
		}
		if visitorID == "" {
			visitorID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   int(visitorCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   v.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), VisitorIDKey, visitorID)
		ctx = context.WithValue(ctx, AuthKey, v.contexts.Get(visitorID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetVisitorID extracts the visitor id from request context
func GetVisitorID(ctx context.Context) string {
	id, _ := ctx.Value(VisitorIDKey).(string)
	return id
}

// GetAuth returns the visitor's auth context, or nil outside Visitors.Middleware.
func GetAuth(ctx context.Context) *authctx.Context {
	ac, _ := ctx.Value(AuthKey).(*authctx.Context)
	return ac
}

// GetUserID returns the signed-in user's id, or "" when nobody is signed in.
func GetUserID(ctx context.Context) string {
	ac := GetAuth(ctx)
	if ac == nil {
		return ""
	}
	if u := ac.State().User; u != nil {
		return u.ID
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	writeErrorBody(w, status, map[string]interface{}{
		"code":       code,
		"message":    message,
		"request_id": r.Header.Get("X-Request-ID"),
	})
}

func writeRedirectError(w http.ResponseWriter, status int, code, message, redirectTo string, r *http.Request) {
	writeErrorBody(w, status, map[string]interface{}{
		"code":        code,
		"message":     message,
		"redirect_to": redirectTo,
		"request_id":  r.Header.Get("X-Request-ID"),
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}
