package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/models"
)

// StudySessionHandler serves learning sessions and progress analytics.
type StudySessionHandler struct {
	api *client.Client
}

func NewStudySessionHandler(api *client.Client) *StudySessionHandler {
	return &StudySessionHandler{api: api}
}

func (h *StudySessionHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	sessions, err := api.RecommendedSessions(r.Context())
	writeList(w, r, "recommended_sessions", sessions, err)
}

func (h *StudySessionHandler) List(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	sessions, err := api.LearningSessions(r.Context())
	writeList(w, r, "sessions", sessions, err)
}

func (h *StudySessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := api.LearningSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req models.SessionProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"progress": "Progress must be between 0 and 100"}, r))
		return
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := api.UpdateSessionProgress(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Progress saved"})
}

func (h *StudySessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"questionId": "Question ID is required"}, r))
		return
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	res, err := api.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Analytics reads ?range=7d|30d|90d|all. Failures degrade to empty analytics.
func (h *StudySessionHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	analytics, err := api.ProgressAnalytics(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		logger.L().Warn("analytics degraded", zap.String("request_id", r.Header.Get("X-Request-ID")), zap.Error(err))
		writeJSON(w, http.StatusOK, models.Degraded[*models.ProgressAnalytics]{Data: &models.ProgressAnalytics{}, Degraded: true})
		return
	}
	writeJSON(w, http.StatusOK, models.Degraded[*models.ProgressAnalytics]{Data: analytics})
}
