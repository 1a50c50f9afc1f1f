package handlers

import (
	"encoding/json"
	"net/http"

	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/profile"
)

// UserHandler serves the signed-in user's own profile and account.
type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Onboard saves the completed onboarding form. The email defaults to the
// identity provider's address.
func (h *UserHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	st := ac.State()
	if st.User == nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Sign in required", r))
		return
	}

	var req models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Email == nil || *req.Email == "" {
		email := st.User.Email
		req.Email = &email
	}
	if err := profile.ValidateOnboarding(&req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := ac.UpdateProfile(r.Context(), &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	st = ac.State()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile":     st.Profile,
		"redirect_to": landingPath(st),
	})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	st := middleware.GetAuth(r.Context()).State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    st.User,
		"profile": st.Profile,
	})
}

// UpdateProfile applies a partial update. Only the fields present are changed.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Empty() {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No fields to update", r))
		return
	}

	ac := middleware.GetAuth(r.Context())
	if err := ac.UpdateProfile(r.Context(), &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": ac.State().Profile})
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	if err := ac.DeleteAccount(r.Context()); err != nil {
		if ac.State().User != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}
