package handlers

import (
	"encoding/json"
	"net/http"

	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

type WaitlistHandler struct {
	waitlist *services.WaitlistService
}

func NewWaitlistHandler(waitlist *services.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

func (h *WaitlistHandler) Student(w http.ResponseWriter, r *http.Request) {
	var req models.StudentRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res, err := h.waitlist.RegisterStudent(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *WaitlistHandler) Instructor(w http.ResponseWriter, r *http.Request) {
	var req models.InstructorRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res, err := h.waitlist.RegisterInstructor(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *WaitlistHandler) University(w http.ResponseWriter, r *http.Request) {
	var req models.UniversityRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res, err := h.waitlist.RegisterUniversity(r.Context(), &req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
