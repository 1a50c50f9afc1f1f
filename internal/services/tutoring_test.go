package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ekaai-backend/internal/models"
)

type stubTutorAPI struct {
	mu      sync.Mutex
	session *models.ChatSession
	reply   *models.AskQuestionResult
	askErr  error
	hold    chan struct{}
	asked   []string
}

func (s *stubTutorAPI) CreateChatSession(_ context.Context, q string) (*models.ChatSession, error) {
	return &models.ChatSession{ID: "new-session", Title: q, Status: models.ChatStatusActive}, nil
}

func (s *stubTutorAPI) ChatSession(_ context.Context, id string) (*models.ChatSession, error) {
	if s.session == nil || s.session.ID != id {
		return nil, errors.New("not found")
	}
	cp := *s.session
	return &cp, nil
}

func (s *stubTutorAPI) AskQuestion(ctx context.Context, _ string, q models.AskQuestionRequest) (*models.AskQuestionResult, error) {
	s.mu.Lock()
	s.asked = append(s.asked, q.Question)
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if s.askErr != nil {
		return nil, s.askErr
	}
	return s.reply, nil
}

func openConversation(t *testing.T, api *stubTutorAPI) *Conversation {
	t.Helper()
	c := NewConversation(nil)
	require.NoError(t, c.Open(context.Background(), api, "", ""))
	return c
}

func TestConversation_AskAppendsReply(t *testing.T) {
	api := &stubTutorAPI{reply: &models.AskQuestionResult{
		MessageID: "m2",
		AIResponse: models.AIResponse{
			Message: "Force equals mass times acceleration.<script>alert(1)</script>",
			FollowUpSuggestions: []models.FollowUpSuggestion{
				{ID: "s1", Text: "Can you give an example?", Type: "practice"},
			},
		},
	}}
	c := openConversation(t, api)

	reply, err := c.Ask(context.Background(), api, "  What is Newton's second law?  ")
	require.NoError(t, err)
	require.Equal(t, "Force equals mass times acceleration.", reply.Content)

	v := c.View()
	require.Len(t, v.Messages, 2)
	require.Equal(t, models.MessageTypeUser, v.Messages[0].Type)
	require.Equal(t, "What is Newton's second law?", v.Messages[0].Content)
	require.Equal(t, models.MessageStatusSent, v.Messages[0].Status)
	require.Equal(t, models.MessageTypeAI, v.Messages[1].Type)
	require.Len(t, v.Messages[1].Metadata.FollowUpSuggestions, 1)
	require.False(t, v.Sending)
}

func TestConversation_AskFailureMarksMessageFailed(t *testing.T) {
	api := &stubTutorAPI{askErr: errors.New("tutor unavailable")}
	c := openConversation(t, api)

	_, err := c.Ask(context.Background(), api, "Explain entropy")
	require.Error(t, err)

	v := c.View()
	require.Len(t, v.Messages, 1)
	require.Equal(t, models.MessageStatusFailed, v.Messages[0].Status)
	require.Equal(t, "tutor unavailable", v.LastError)
}

func TestConversation_Rejections(t *testing.T) {
	api := &stubTutorAPI{}

	_, err := NewConversation(nil).Ask(context.Background(), api, "hello")
	require.ErrorIs(t, err, ErrNoSession)

	c := openConversation(t, api)
	_, err = c.Ask(context.Background(), api, "   ")
	require.ErrorIs(t, err, ErrEmptyQuestion)
	require.Empty(t, c.View().Messages)
}

func TestConversation_OneQuestionAtATime(t *testing.T) {
	api := &stubTutorAPI{
		hold:  make(chan struct{}),
		reply: &models.AskQuestionResult{MessageID: "m2", AIResponse: models.AIResponse{Message: "ok"}},
	}
	c := openConversation(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Ask(context.Background(), api, "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return c.View().Sending }, time.Second, 5*time.Millisecond)

	_, err := c.Ask(context.Background(), api, "second")
	require.ErrorIs(t, err, ErrSendInFlight)
	require.ErrorIs(t, c.LoadHistory(context.Background(), api), ErrSendInFlight)

	close(api.hold)
	require.NoError(t, <-done)
	require.Equal(t, []string{"first"}, api.asked)
}

func TestConversation_AskFollowUp(t *testing.T) {
	api := &stubTutorAPI{reply: &models.AskQuestionResult{
		MessageID: "m2",
		AIResponse: models.AIResponse{
			Message: "Photosynthesis turns light into chemical energy.",
			FollowUpSuggestions: []models.FollowUpSuggestion{
				{ID: "s1", Text: "What is chlorophyll?"},
				{ID: "s2", Text: "Where does it happen?"},
			},
		},
	}}
	c := openConversation(t, api)

	_, err := c.AskFollowUp(context.Background(), api, 0)
	require.ErrorIs(t, err, ErrNoSuggestion)

	_, err = c.Ask(context.Background(), api, "What is photosynthesis?")
	require.NoError(t, err)

	_, err = c.AskFollowUp(context.Background(), api, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"What is photosynthesis?", "Where does it happen?"}, api.asked)

	_, err = c.AskFollowUp(context.Background(), api, 5)
	require.ErrorIs(t, err, ErrNoSuggestion)
}

func TestConversation_LoadHistorySanitizes(t *testing.T) {
	api := &stubTutorAPI{session: &models.ChatSession{
		ID: "s1",
		Messages: []models.ChatMessage{
			{ID: "m1", Type: models.MessageTypeUser, Content: "<b>hi</b>"},
			{ID: "m2", Type: models.MessageTypeAI, Content: `<a href="javascript:alert(1)">click</a> hello`},
		},
	}}
	c := NewConversation(nil)
	require.NoError(t, c.Open(context.Background(), api, "s1", ""))

	v := c.View()
	require.Equal(t, "s1", v.Session.ID)
	require.Len(t, v.Messages, 2)
	require.Equal(t, "<b>hi</b>", v.Messages[0].Content)
	require.NotContains(t, v.Messages[1].Content, "javascript:")
	require.Equal(t, models.MessageStatusSent, v.Messages[1].Status)
}

func TestTutor_ReusesOpenConversation(t *testing.T) {
	api := &stubTutorAPI{session: &models.ChatSession{ID: "s1"}}
	tutor := NewTutor(time.Minute, nil)

	c1, err := tutor.Open(context.Background(), api, "u1", "s1", "")
	require.NoError(t, err)
	c2, err := tutor.Open(context.Background(), api, "u1", "s1", "")
	require.NoError(t, err)
	require.Same(t, c1, c2)

	_, ok := tutor.Get("u2", "s1")
	require.False(t, ok)

	tutor.Forget("u1")
	_, ok = tutor.Get("u1", "s1")
	require.False(t, ok)
}

func TestTutor_NewSessionIsRegistered(t *testing.T) {
	tutor := NewTutor(time.Minute, nil)
	c, err := tutor.Open(context.Background(), &stubTutorAPI{}, "u1", "", "Help with algebra")
	require.NoError(t, err)

	got, ok := tutor.Get("u1", "new-session")
	require.True(t, ok)
	require.Same(t, c, got)
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()
	require.Equal(t, "<p>Hello</p>", s.Sanitize(`<p onclick="x()">Hello</p><script>bad()</script>`))
	require.Equal(t, "", s.Sanitize("   "))
}
