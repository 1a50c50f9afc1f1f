package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ekaai-backend/internal/client"
	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

type ContentHandler struct {
	api *client.Client
}

func NewContentHandler(api *client.Client) *ContentHandler {
	return &ContentHandler{api: api}
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	items, err := api.ContentLibrary(r.Context())
	writeList(w, r, "content", items, err)
}

func (h *ContentHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	fields := make(map[string]string)
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "Title is required"
	}
	if strings.TrimSpace(req.Content) == "" {
		fields["content"] = "Content is required"
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
	item, err := api.CreateNote(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"content": item})
}

// Upload checks the file locally (type, size, PDF structure) before it is
// forwarded to the content library with its page count.
func (h *ContentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > services.MaxUploadBytes+1<<20 {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 20MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Could not read file", r))
		return
	}

	upload := &models.Upload{
		Filename: header.Filename,
		Data:     data,
		Subject:  r.FormValue("subject"),
		Title:    r.FormValue("title"),
	}
	info, err := services.InspectUpload(upload)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	upload.ContentType = info.ContentType

	api, err := authorized(r, h.api)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	item, err := api.UploadContent(r.Context(), upload, info.PageCount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"content": item,
		"preview": info.Preview,
	})
}

// ValidateYouTube normalizes a video link before it is saved to a profile or note.
func (h *ContentHandler) ValidateYouTube(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	link, err := services.NormalizeYouTubeLink(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"url": "Not a valid YouTube video link"}, r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"url": link, "valid": true})
}
