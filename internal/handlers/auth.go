package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ekaai-backend/internal/authctx"
	"ekaai-backend/internal/client"
	"ekaai-backend/internal/identity"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

type AuthHandler struct {
	tutor       *services.Tutor
	frontendURL string
	publicURL   string
	stateWait   time.Duration
	log         *zap.Logger
}

// NewAuthHandler serves the OAuth round trip and the visitor's auth state.
// stateWait bounds how long GET /auth/state waits for the first session check.
func NewAuthHandler(tutor *services.Tutor, frontendURL, publicURL string, stateWait time.Duration) *AuthHandler {
	return &AuthHandler{
		tutor:       tutor,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		publicURL:   strings.TrimRight(publicURL, "/"),
		stateWait:   stateWait,
		log:         logger.Named("auth"),
	}
}

// GoogleRedirect sends the browser to the provider's consent screen.
func (h *AuthHandler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing visitor session", r))
		return
	}

	target, err := ac.SignInWithGoogle(r.Context(), h.publicURL+"/auth/callback")
	if err != nil {
		http.Redirect(w, r, h.loginURL("signin_unavailable"), http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// CallbackRedirect completes the code flow and lands the browser on the
// dashboard, or on onboarding when the user has no profile yet.
func (h *AuthHandler) CallbackRedirect(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing visitor session", r))
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.log.Info("provider returned an error", zap.String("error", e), zap.String("description", q.Get("error_description")))
		http.Redirect(w, r, h.loginURL(e), http.StatusFound)
		return
	}

	st, err := ac.CompleteSignIn(r.Context(), models.OAuthCallback{Code: q.Get("code"), State: q.Get("state")})
	if err != nil {
		http.Redirect(w, r, h.loginURL("signin_failed"), http.StatusFound)
		return
	}
	http.Redirect(w, r, h.frontendURL+landingPath(st), http.StatusFound)
}

// Callback accepts the tokens, code or Google credential the frontend
// received and answers with the settled auth state.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing visitor session", r))
		return
	}

	var req models.OAuthCallback
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.AccessToken == "" && req.Code == "" && req.Credential == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"code": "An access token, code or credential is required"}, r))
		return
	}

	st, err := ac.CompleteSignIn(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       st,
		"redirect_to": landingPath(st),
	})
}

// State returns the visitor's auth state, waiting briefly for the first
// session check. A state still loading after the wait is returned as is.
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing visitor session", r))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.stateWait)
	st, _ := ac.WaitReady(ctx)
	cancel()

	writeJSON(w, http.StatusOK, st)
}

// SignOut always succeeds for the caller: local state is cleared even when
// the provider could not be reached.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if ac == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := ac.SignOut(r.Context()); err != nil {
		h.log.Warn("sign-out incomplete", zap.String("visitor_id", middleware.GetVisitorID(r.Context())), zap.Error(err))
	}
	if userID != "" && h.tutor != nil {
		h.tutor.Forget(userID)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

func (h *AuthHandler) loginURL(reason string) string {
	return h.frontendURL + middleware.LoginPath + "?error=" + url.QueryEscape(reason)
}

// landingPath is where a browser goes after sign-in completes.
func landingPath(st authctx.State) string {
	if d := middleware.Decide(st, true); d != middleware.Allow && d != middleware.Pending {
		return d.Path()
	}
	return middleware.DashboardPath
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *services.ValidationError
		conflict     *services.ConflictError
		notFound     *services.NotFoundError
		unauthorized *services.UnauthorizedError
		forbidden    *services.ForbiddenError
		rateLimited  *services.RateLimitError
		apiErr       *client.Error
		authErr      *identity.AuthError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validation.Fields, r))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflict.Message, r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorized.Message, r))
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", forbidden.Message, r))
	case errors.As(err, &rateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimited.Message, r))
	case errors.Is(err, services.ErrNoUser):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Sign in required", r))
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Not found", r))
	case errors.Is(err, identity.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_STATE", "Sign-in request expired, please try again", r))
	case errors.Is(err, identity.ErrNotConfigured):
		writeJSON(w, http.StatusNotImplemented, errorResp("NOT_CONFIGURED", "This sign-in method is not available", r))
	case errors.Is(err, services.ErrEmptyQuestion):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"question": "Question is required"}, r))
	case errors.Is(err, services.ErrSendInFlight):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "A question is already being answered", r))
	case errors.Is(err, services.ErrNoSession):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat session not found", r))
	case errors.Is(err, services.ErrNoSuggestion):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Suggestion not found", r))
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResp("UPSTREAM_TIMEOUT", "The request took too long", r))
	case errors.As(err, &apiErr):
		writeUpstreamError(w, r, apiErr)
	case errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 500:
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Sign-in was rejected", r))
	case errors.Is(err, authctx.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("SESSION_CLOSED", "Session expired, please retry", r))
	default:
		logger.L().Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

// writeUpstreamError passes backend client errors through and hides the rest
// behind a 502.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, e *client.Error) {
	if e.Status >= 400 && e.Status < 500 {
		code := e.Code
		if code == "" {
			code = http.StatusText(e.Status)
		}
		message := e.Message
		if message == "" {
			message = "Request rejected"
		}
		writeJSON(w, e.Status, errorRespWithFields(code, message, e.Fields(), r))
		return
	}
	logger.L().Warn("upstream failure",
		zap.String("path", r.URL.Path),
		zap.Int("status", e.Status),
		zap.String("code", e.Code),
		zap.Error(e),
	)
	writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "The learning service is unavailable", r))
}
