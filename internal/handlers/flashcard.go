package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/models"
)

type FlashcardHandler struct {
	api *client.Client
}

func NewFlashcardHandler(api *client.Client) *FlashcardHandler {
	return &FlashcardHandler{api: api}
}

func (h *FlashcardHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	decks, err := api.FlashcardDecks(r.Context())
	writeList(w, r, "decks", decks, err)
}

func (h *FlashcardHandler) DeckCards(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	cards, err := api.DeckCards(r.Context(), chi.URLParam(r, "id"))
	writeList(w, r, "cards", cards, err)
}

func (h *FlashcardHandler) ReviewCard(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	switch req.Difficulty {
	case models.ReviewEasy, models.ReviewMedium, models.ReviewHard:
	default:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"difficulty": "Must be one of: easy, medium, hard"}, r))
		return
	}

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	card, err := api.ReviewCard(r.Context(), chi.URLParam(r, "id"), req.Difficulty)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"card": card})
}
