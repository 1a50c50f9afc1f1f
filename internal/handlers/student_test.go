package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"ekaai-backend/internal/models"
	"ekaai-backend/internal/services"
)

func signedInAuth(t *testing.T) *stubStore {
	t.Helper()
	return &stubStore{session: userSession("u1")}
}

// ─── Dashboard Tests ───

func TestDashboardHandler_Summary(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/sessions/recommended": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok-u1" {
				t.Errorf("Expected user's bearer token, got %q", got)
			}
			okData(`[{"id":"ls-1","title":"Fractions"}]`)(w, r)
		},
		"GET /students/flashcards/decks": okData(`[{"id":"d1","title":"Algebra","cardCount":12}]`),
		"GET /students/analytics":        okData(`{"currentStreak":4}`),
	})
	profiles := newMemProfiles()
	profiles.rows["u1"] = &models.Profile{ID: "u1"}
	ac := newAuth(t, signedInAuth(t), profiles)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/dashboard", NewDashboardHandler(api).Summary, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var summary models.DashboardSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summary))
	require.Len(t, summary.Recommended, 1)
	require.Len(t, summary.Decks, 1)
	require.Equal(t, 4, summary.Analytics.CurrentStreak)
	require.Empty(t, summary.Degraded)
	require.Equal(t, "u1", summary.Profile.ID)
}

func TestDashboardHandler_SummaryDegradesPerPart(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/sessions/recommended": failWith(http.StatusInternalServerError),
		"GET /students/flashcards/decks":     okData(`[{"id":"d1"}]`),
		"GET /students/analytics":            failWith(http.StatusBadGateway),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/dashboard", NewDashboardHandler(api).Summary, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var summary models.DashboardSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summary))
	require.Equal(t, []string{"analytics", "recommended"}, summary.Degraded)
	require.NotNil(t, summary.Recommended)
	require.Empty(t, summary.Recommended)
	require.Len(t, summary.Decks, 1)
	require.NotNil(t, summary.Analytics)
}

func TestDashboardHandler_RequiresUser(t *testing.T) {
	ac := newAuth(t, &stubStore{}, newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/dashboard", NewDashboardHandler(newBackend(t, nil)).Summary, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

// ─── Study Session Tests ───

func TestStudySessionHandler_ListDegrades(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/sessions": failWith(http.StatusServiceUnavailable),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/sessions", NewStudySessionHandler(api).List, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":[],"degraded":true}`, rr.Body.String())
}

func TestStudySessionHandler_Get(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/sessions/ls-1": okData(`{"id":"ls-1","title":"Fractions","progress":40}`),
		"GET /students/sessions/gone": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"Session not found"}}`))
		},
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewStudySessionHandler(api)

	rr := serve(ac, http.MethodGet, "/api/v1/sessions/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ls-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Fractions")

	rr = serve(ac, http.MethodGet, "/api/v1/sessions/{id}", h.Get, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/gone", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rr).Code)
}

func TestStudySessionHandler_UpdateProgressValidates(t *testing.T) {
	var calls atomic.Int32
	api := newBackend(t, map[string]http.HandlerFunc{
		"PUT /students/sessions/ls-1/progress": func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			okData(`null`)(w, r)
		},
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewStudySessionHandler(api)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/ls-1/progress", strings.NewReader(`{"progress":140}`))
	rr := serve(ac, http.MethodPut, "/api/v1/sessions/{id}/progress", h.UpdateProgress, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/sessions/ls-1/progress", strings.NewReader(`{"progress":60}`))
	rr = serve(ac, http.MethodPut, "/api/v1/sessions/{id}/progress", h.UpdateProgress, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int32(1), calls.Load())
}

func TestStudySessionHandler_AnalyticsRange(t *testing.T) {
	var gotRange atomic.Value
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/analytics": func(w http.ResponseWriter, r *http.Request) {
			gotRange.Store(r.URL.Query().Get("range"))
			okData(`{"sessionsCompleted":7}`)(w, r)
		},
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics?range=bogus", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/analytics", NewStudySessionHandler(api).Analytics, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "30d", gotRange.Load())
	require.JSONEq(t, `{"data":{"totalStudyTime":0,"sessionsCompleted":7,"averageScore":0,"currentStreak":0,"subjectProgress":null,"weeklyActivity":null}}`, rr.Body.String())
}

// ─── Flashcard Tests ───

func TestFlashcardHandler_ReviewCard(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"POST /students/flashcards/cards/c1/review": okData(`{"id":"c1","reviewCount":3}`),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewFlashcardHandler(api)

	tests := []struct {
		body     string
		wantCode int
	}{
		{`{"difficulty":"easy"}`, http.StatusOK},
		{`{"difficulty":"trivial"}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/flashcards/cards/c1/review", strings.NewReader(tc.body))
		rr := serve(ac, http.MethodPost, "/api/v1/flashcards/cards/{id}/review", h.ReviewCard, req)
		if rr.Code != tc.wantCode {
			t.Errorf("%s: expected status %d, got %d", tc.body, tc.wantCode, rr.Code)
		}
	}
}

func TestFlashcardHandler_DeckCards(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /students/flashcards/decks/d1/cards": okData(`[{"id":"c1","front":"2+2","back":"4"}]`),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/flashcards/decks/d1/cards", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/flashcards/decks/{id}/cards", NewFlashcardHandler(api).DeckCards, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body models.Degraded[[]models.Flashcard]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.False(t, body.Degraded)
	require.Equal(t, "4", body.Data[0].Back)
}

// ─── Content Tests ───

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write(data)
	mw.WriteField("subject", "biology")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestContentHandler_Upload(t *testing.T) {
	var gotSubject atomic.Value
	api := newBackend(t, map[string]http.HandlerFunc{
		"POST /students/content/upload": func(w http.ResponseWriter, r *http.Request) {
			gotSubject.Store(r.FormValue("subject"))
			okData(`{"id":"ct-1","title":"notes.txt","type":"note"}`)(w, r)
		},
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewContentHandler(api)

	rr := serve(ac, http.MethodPost, "/api/v1/content/upload", h.Upload, multipartUpload(t, "notes.txt", []byte("Cells are the unit of life.")))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "biology", gotSubject.Load())
	require.Contains(t, rr.Body.String(), "Cells are the unit of life.")

	rr = serve(ac, http.MethodPost, "/api/v1/content/upload", h.Upload, multipartUpload(t, "virus.exe", []byte("MZ")))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeError(t, rr).Fields, "file")
}

func TestContentHandler_CreateNoteValidates(t *testing.T) {
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/notes", strings.NewReader(`{"title":"  "}`))
	rr := serve(ac, http.MethodPost, "/api/v1/content/notes", NewContentHandler(newBackend(t, nil)).CreateNote, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	fields := decodeError(t, rr).Fields
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "content")
}

func TestContentHandler_ValidateYouTube(t *testing.T) {
	h := NewContentHandler(nil)

	rr := httptest.NewRecorder()
	h.ValidateYouTube(rr, httptest.NewRequest(http.MethodPost, "/api/v1/content/validate-youtube", strings.NewReader(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	rr = httptest.NewRecorder()
	h.ValidateYouTube(rr, httptest.NewRequest(http.MethodPost, "/api/v1/content/validate-youtube", strings.NewReader(`{"url":"https://example.com/watch?v=dQw4w9WgXcQ"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// ─── Chat Tests ───

func TestChatHandler_AskRoundTrip(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /ai/chat/sessions/s1": okData(`{"id":"s1","title":"Photosynthesis","status":"active","messages":[]}`),
		"POST /ai/chat/sessions/s1/messages": okData(`{"messageId":"m2","aiResponse":{"message":"Plants use <b>light</b><script>x()</script>.",` +
			`"followUpSuggestions":[{"id":"f1","text":"What is chlorophyll?","type":"deeper"}]}}`),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewChatHandler(api, services.NewTutor(0, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions/s1/messages", strings.NewReader(`{"question":"How do plants eat?"}`))
	rr := serve(ac, http.MethodPost, "/api/v1/chat/sessions/{id}/messages", h.Ask, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Reply        models.ChatMessage        `json:"reply"`
		Conversation services.ConversationView `json:"conversation"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "m2", body.Reply.ID)
	require.NotContains(t, body.Reply.Content, "<script>")
	require.Len(t, body.Conversation.Messages, 2)
	require.Equal(t, models.MessageStatusSent, body.Conversation.Messages[0].Status)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions/s1/follow-ups/0", nil)
	rr = serve(ac, http.MethodPost, "/api/v1/chat/sessions/{id}/follow-ups/{index}", h.AskFollowUp, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions/s1/follow-ups/9", nil)
	rr = serve(ac, http.MethodPost, "/api/v1/chat/sessions/{id}/follow-ups/{index}", h.AskFollowUp, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatHandler_AskFailureMarksMessageFailed(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /ai/chat/sessions/s1":           okData(`{"id":"s1","messages":[]}`),
		"POST /ai/chat/sessions/s1/messages": failWith(http.StatusServiceUnavailable),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	tutor := services.NewTutor(0, nil)
	h := NewChatHandler(api, tutor, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions/s1/messages", strings.NewReader(`{"question":"Why?"}`))
	rr := serve(ac, http.MethodPost, "/api/v1/chat/sessions/{id}/messages", h.Ask, req)
	require.Equal(t, http.StatusBadGateway, rr.Code)

	conv, ok := tutor.Get("u1", "s1")
	require.True(t, ok)
	view := conv.View()
	require.Len(t, view.Messages, 1)
	require.Equal(t, models.MessageStatusFailed, view.Messages[0].Status)
	require.NotEmpty(t, view.LastError)
}

func TestChatHandler_AskRejectsEmptyQuestion(t *testing.T) {
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewChatHandler(newBackend(t, nil), services.NewTutor(0, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions/s1/messages", strings.NewReader(`{"question":"   "}`))
	rr := serve(ac, http.MethodPost, "/api/v1/chat/sessions/{id}/messages", h.Ask, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeError(t, rr).Fields, "question")
}

func TestChatHandler_SubmitDoubtUsesSignedInUser(t *testing.T) {
	var gotUser atomic.Value
	api := newBackend(t, map[string]http.HandlerFunc{
		"POST /api/doubt-clearing/submit": func(w http.ResponseWriter, r *http.Request) {
			var req models.DoubtRequest
			json.NewDecoder(r.Body).Decode(&req)
			gotUser.Store(req.UserID)
			okData(`{"response":"Try <i>drawing</i> it."}`)(w, r)
		},
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())
	h := NewChatHandler(api, services.NewTutor(0, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/doubts", strings.NewReader(`{"userId":"someone-else","message":"I am stuck"}`))
	rr := serve(ac, http.MethodPost, "/api/v1/doubts", h.SubmitDoubt, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "u1", gotUser.Load())
}

func TestChatHandler_ListSessionsDegrades(t *testing.T) {
	api := newBackend(t, map[string]http.HandlerFunc{
		"GET /ai/chat/sessions": failWith(http.StatusInternalServerError),
	})
	ac := newAuth(t, signedInAuth(t), newMemProfiles())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil)
	rr := serve(ac, http.MethodGet, "/api/v1/chat/sessions", NewChatHandler(api, services.NewTutor(0, nil), nil).ListSessions, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":[],"degraded":true}`, rr.Body.String())
}
