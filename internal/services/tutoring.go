package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/models"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoSession     = errors.New("no chat session is open")
	ErrSendInFlight  = errors.New("a question is already being answered")
	ErrNoSuggestion  = errors.New("no such follow-up suggestion")
)

// TutorAPI is the chat backend. Implementations carry the caller's bearer token.
type TutorAPI interface {
	CreateChatSession(ctx context.Context, initialQuestion string) (*models.ChatSession, error)
	ChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	AskQuestion(ctx context.Context, sessionID string, q models.AskQuestionRequest) (*models.AskQuestionResult, error)
}

// ConversationView is a copy of a conversation safe to serialize.
type ConversationView struct {
	Session   *models.ChatSession  `json:"session"`
	Messages  []models.ChatMessage `json:"messages"`
	Sending   bool                 `json:"sending"`
	LastError string               `json:"lastError,omitempty"`
}

// Conversation is one open chat session. User messages are appended before
// the backend answers and are marked sent or failed afterwards; only one
// question can be outstanding at a time.
type Conversation struct {
	mu        sync.Mutex
	sanitizer *Sanitizer
	session   *models.ChatSession
	messages  []models.ChatMessage
	sending   bool
	lastErr   string
	now       func() time.Time
}

func NewConversation(sanitizer *Sanitizer) *Conversation {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &Conversation{sanitizer: sanitizer, now: time.Now}
}

// Open loads sessionID, or creates a new session when sessionID is empty.
func (c *Conversation) Open(ctx context.Context, api TutorAPI, sessionID, initialQuestion string) error {
	var s *models.ChatSession
	var err error
	if sessionID == "" {
		s, err = api.CreateChatSession(ctx, strings.TrimSpace(initialQuestion))
	} else {
		s, err = api.ChatSession(ctx, sessionID)
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setSession(s)
	return nil
}

// LoadHistory replaces the local messages with the backend's copy. Refused
// while a question is outstanding so the pending message is not lost.
func (c *Conversation) LoadHistory(ctx context.Context, api TutorAPI) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	id := c.session.ID
	c.mu.Unlock()

	s, err := api.ChatSession(ctx, id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sending {
		c.setSession(s)
	}
	return nil
}

func (c *Conversation) setSession(s *models.ChatSession) {
	msgs := make([]models.ChatMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Type == models.MessageTypeAI {
			m.Content = c.sanitizer.Sanitize(m.Content)
		}
		if m.Status == "" {
			m.Status = models.MessageStatusSent
		}
		msgs = append(msgs, m)
	}
	cp := *s
	cp.Messages = nil
	c.session = &cp
	c.messages = msgs
	c.lastErr = ""
}

// Ask sends question and returns the tutor's reply. On failure the user's
// message stays in the conversation marked failed and no reply is added.
func (c *Conversation) Ask(ctx context.Context, api TutorAPI, question string) (*models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	if c.sending {
		c.mu.Unlock()
		return nil, ErrSendInFlight
	}
	sessionID := c.session.ID
	pendingID := "pending-" + uuid.NewString()
	c.messages = append(c.messages, models.ChatMessage{
		ID:        pendingID,
		Type:      models.MessageTypeUser,
		Content:   question,
		Timestamp: c.now(),
		Status:    models.MessageStatusPending,
	})
	c.sending = true
	c.lastErr = ""
	c.mu.Unlock()

	res, err := api.AskQuestion(ctx, sessionID, models.AskQuestionRequest{Question: question})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false

	idx := c.indexOf(pendingID)
	if err != nil {
		if idx >= 0 {
			c.messages[idx].Status = models.MessageStatusFailed
		}
		c.lastErr = err.Error()
		return nil, err
	}
	if idx >= 0 {
		c.messages[idx].Status = models.MessageStatusSent
	}

	reply := models.ChatMessage{
		ID:        res.MessageID,
		Type:      models.MessageTypeAI,
		Content:   c.sanitizer.Sanitize(res.AIResponse.Message),
		Timestamp: c.now(),
		Status:    models.MessageStatusSent,
	}
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if len(res.AIResponse.FollowUpSuggestions) > 0 {
		reply.Metadata = &models.MessageMetadata{FollowUpSuggestions: res.AIResponse.FollowUpSuggestions}
	}
	c.messages = append(c.messages, reply)
	out := reply
	return &out, nil
}

// AskFollowUp sends the i-th suggestion attached to the latest tutor message.
func (c *Conversation) AskFollowUp(ctx context.Context, api TutorAPI, i int) (*models.ChatMessage, error) {
	c.mu.Lock()
	var text string
	for j := len(c.messages) - 1; j >= 0; j-- {
		m := c.messages[j]
		if m.Type != models.MessageTypeAI {
			continue
		}
		if m.Metadata != nil && i >= 0 && i < len(m.Metadata.FollowUpSuggestions) {
			text = m.Metadata.FollowUpSuggestions[i].Text
		}
		break
	}
	c.mu.Unlock()

	if text == "" {
		return nil, ErrNoSuggestion
	}
	return c.Ask(ctx, api, text)
}

func (c *Conversation) View() ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := ConversationView{
		Messages:  append([]models.ChatMessage(nil), c.messages...),
		Sending:   c.sending,
		LastError: c.lastErr,
	}
	if c.session != nil {
		s := *c.session
		v.Session = &s
	}
	if v.Messages == nil {
		v.Messages = []models.ChatMessage{}
	}
	return v
}

func (c *Conversation) indexOf(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Tutor keeps open conversations per user and session, dropping idle ones.
type Tutor struct {
	conversations *cache.Cache
	sanitizer     *Sanitizer
	log           *zap.Logger
}

func NewTutor(idleTTL time.Duration, sanitizer *Sanitizer) *Tutor {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &Tutor{
		conversations: cache.New(idleTTL, idleTTL),
		sanitizer:     sanitizer,
		log:           logger.Named("tutor"),
	}
}

// Open returns the user's conversation for sessionID, loading it on first
// use. An empty sessionID starts a new session.
func (t *Tutor) Open(ctx context.Context, api TutorAPI, userID, sessionID, initialQuestion string) (*Conversation, error) {
	if sessionID != "" {
		if c, ok := t.Get(userID, sessionID); ok {
			return c, nil
		}
	}
	c := NewConversation(t.sanitizer)
	if err := c.Open(ctx, api, sessionID, initialQuestion); err != nil {
		t.log.Warn("open chat session", zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	id := c.View().Session.ID
	t.conversations.SetDefault(conversationKey(userID, id), c)
	return c, nil
}

func (t *Tutor) Get(userID, sessionID string) (*Conversation, bool) {
	key := conversationKey(userID, sessionID)
	v, ok := t.conversations.Get(key)
	if !ok {
		return nil, false
	}
	t.conversations.SetDefault(key, v)
	return v.(*Conversation), true
}

// Forget drops every conversation held for userID.
func (t *Tutor) Forget(userID string) {
	prefix := userID + "/"
	for k := range t.conversations.Items() {
		if strings.HasPrefix(k, prefix) {
			t.conversations.Delete(k)
		}
	}
}

func conversationKey(userID, sessionID string) string {
	return userID + "/" + sessionID
}
