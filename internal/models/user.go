package models

import "time"

// User is the identity record issued by the provider. The app never edits it.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata UserMetadata `json:"user_metadata"`
}

type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is owned by the identity provider; only the access token and user are read here.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Expired reports whether the access token is past its expiry, with a small skew.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(10 * time.Second).Before(s.ExpiresAt)
}

type AuthEventKind string

const (
	EventInitialSession AuthEventKind = "INITIAL_SESSION"
	EventSignedIn       AuthEventKind = "SIGNED_IN"
	EventSignedOut      AuthEventKind = "SIGNED_OUT"
	EventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventKind = "USER_UPDATED"
	EventUserDeleted    AuthEventKind = "USER_DELETED"
)

// AuthEvent is delivered to OnAuthStateChange subscribers. Session is nil on sign-out.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// GoogleCredentialRequest is the body of POST /auth/google on the token-based auth API.
type GoogleCredentialRequest struct {
	Credential string `json:"credential"`
}

type TokenAuthResult struct {
	User         *User  `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// OAuthCallback carries the tokens or code the browser receives after the Google redirect.
type OAuthCallback struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Code         string `json:"code"`
	State        string `json:"state"`
	Credential   string `json:"credential"`
}
