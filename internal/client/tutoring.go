package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"ekaai-backend/internal/models"
)

func (c *Client) CreateChatSession(ctx context.Context, initialQuestion string) (*models.ChatSession, error) {
	var out models.ChatSession
	if _, err := c.call(ctx, http.MethodPost, "/ai/chat/sessions",
		models.CreateChatSessionRequest{InitialQuestion: initialQuestion}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var out models.ChatSession
	if _, err := c.call(ctx, http.MethodGet, "/ai/chat/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChatSessions(ctx context.Context, limit int) ([]models.ChatSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.ChatSession
	_, err := c.call(ctx, http.MethodGet, "/ai/chat/sessions?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

func (c *Client) AskQuestion(ctx context.Context, sessionID string, q models.AskQuestionRequest) (*models.AskQuestionResult, error) {
	var out models.AskQuestionResult
	if _, err := c.call(ctx, http.MethodPost, "/ai/chat/sessions/"+url.PathEscape(sessionID)+"/messages", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FollowUpSuggestions(ctx context.Context, messageID string) ([]models.FollowUpSuggestion, error) {
	var out []models.FollowUpSuggestion
	_, err := c.call(ctx, http.MethodGet, "/ai/chat/messages/"+url.PathEscape(messageID)+"/suggestions", nil, &out)
	return out, err
}

func (c *Client) ExplainConcept(ctx context.Context, r models.ExplainRequest) (*models.Explanation, error) {
	var out models.Explanation
	if _, err := c.call(ctx, http.MethodPost, "/ai/explain", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AnalyzeWork(ctx context.Context, r models.WorkAnalysisRequest) (*models.WorkAnalysis, error) {
	var out models.WorkAnalysis
	if _, err := c.call(ctx, http.MethodPost, "/ai/analyze-work", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitDoubt(ctx context.Context, r models.DoubtRequest) (*models.DoubtReply, error) {
	var out models.DoubtReply
	if _, err := c.call(ctx, http.MethodPost, "/api/doubt-clearing/submit", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveDoubtChat(ctx context.Context, r models.SaveChatRequest) error {
	_, err := c.call(ctx, http.MethodPost, "/api/doubt-clearing/save-chat", r, nil)
	return err
}

func (c *Client) DoubtHistory(ctx context.Context, userID string) ([]models.DoubtMessage, error) {
	var out []models.DoubtMessage
	_, err := c.call(ctx, http.MethodGet, "/api/doubt-clearing/chat-history/"+url.PathEscape(userID), nil, &out)
	return out, err
}
