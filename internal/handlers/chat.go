package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/middleware"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

// ChatHandler serves the tutoring chat and the older doubt-clearing chat.
type ChatHandler struct {
	api       *client.Client
	tutor     *services.Tutor
	sanitizer *services.Sanitizer
}

func NewChatHandler(api *client.Client, tutor *services.Tutor, sanitizer *services.Sanitizer) *ChatHandler {
	if sanitizer == nil {
		sanitizer = services.NewSanitizer()
	}
	return &ChatHandler{api: api, tutor: tutor, sanitizer: sanitizer}
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChatSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	conv, err := h.tutor.Open(r.Context(), api, middleware.GetUserID(r.Context()), "", req.InitialQuestion)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv.View())
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	sessions, err := api.ChatSessions(r.Context(), limit)
	writeList(w, r, "chat_sessions", sessions, err)
}

// GetSession opens the conversation, reloading history when it was already
// open and no question is outstanding.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "id")
	if conv, ok := h.tutor.Get(userID, sessionID); ok {
		if err := conv.LoadHistory(r.Context(), api); err != nil && !errors.Is(err, services.ErrSendInFlight) {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conv.View())
		return
	}

	conv, err := h.tutor.Open(r.Context(), api, userID, sessionID, "")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv.View())
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		handleServiceError(w, r, services.ErrEmptyQuestion)
		return
	}

	api, conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	reply, err := conv.Ask(r.Context(), api, req.Question)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply":        reply,
		"conversation": conv.View(),
	})
}

// AskFollowUp sends one of the suggestions attached to the latest reply.
func (h *ChatHandler) AskFollowUp(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid suggestion index", r))
		return
	}

	api, conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	reply, err := conv.AskFollowUp(r.Context(), api, index)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply":        reply,
		"conversation": conv.View(),
	})
}

func (h *ChatHandler) FollowUps(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	suggestions, err := api.FollowUpSuggestions(r.Context(), chi.URLParam(r, "id"))
	writeList(w, r, "follow_ups", suggestions, err)
}

func (h *ChatHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Concept) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"concept": "Concept is required"}, r))
		return
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	exp, err := api.ExplainConcept(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	exp.Explanation = h.sanitizer.Sanitize(exp.Explanation)
	writeJSON(w, http.StatusOK, exp)
}

func (h *ChatHandler) AnalyzeWork(w http.ResponseWriter, r *http.Request) {
	var req models.WorkAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	fields := make(map[string]string)
	if strings.TrimSpace(req.WorkContent) == "" {
		fields["workContent"] = "Work content is required"
	}
	if strings.TrimSpace(req.Subject) == "" {
		fields["subject"] = "Subject is required"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	analysis, err := api.AnalyzeWork(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	analysis.Feedback = h.sanitizer.Sanitize(analysis.Feedback)
	writeJSON(w, http.StatusOK, analysis)
}

// SubmitDoubt sends a message to the doubt-clearing chat as the signed-in user.
func (h *ChatHandler) SubmitDoubt(w http.ResponseWriter, r *http.Request) {
	var req models.DoubtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"message": "Message is required"}, r))
		return
	}
	req.UserID = middleware.GetUserID(r.Context())

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	reply, err := api.SubmitDoubt(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	reply.Response = h.sanitizer.Sanitize(reply.Response)
	writeJSON(w, http.StatusOK, reply)
}

func (h *ChatHandler) SaveDoubtHistory(w http.ResponseWriter, r *http.Request) {
	var req models.SaveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.UserID = middleware.GetUserID(r.Context())

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := api.SaveDoubtChat(r.Context(), req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat saved"})
}

func (h *ChatHandler) DoubtHistory(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	history, err := api.DoubtHistory(r.Context(), middleware.GetUserID(r.Context()))
	writeList(w, r, "doubt_history", history, err)
}

// conversation resolves the authorized client and the open conversation for
// the {id} route param, writing the error response itself on failure.
func (h *ChatHandler) conversation(w http.ResponseWriter, r *http.Request) (*client.Client, *services.Conversation, bool) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, nil, false
	}
	conv, err := h.tutor.Open(r.Context(), api, middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), "")
	if err != nil {
		handleServiceError(w, r, err)
		return nil, nil, false
	}
	return api, conv, true
}
