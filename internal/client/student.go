package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"ekaai-backend/internal/models"
)

func (c *Client) RecommendedSessions(ctx context.Context) ([]models.LearningSession, error) {
	var out []models.LearningSession
	_, err := c.call(ctx, http.MethodGet, "/students/sessions/recommended", nil, &out)
	return out, err
}

func (c *Client) LearningSessions(ctx context.Context) ([]models.LearningSession, error) {
	var out []models.LearningSession
	_, err := c.call(ctx, http.MethodGet, "/students/sessions", nil, &out)
	return out, err
}

func (c *Client) LearningSession(ctx context.Context, id string) (*models.LearningSession, error) {
	var out models.LearningSession
	if _, err := c.call(ctx, http.MethodGet, "/students/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSessionProgress(ctx context.Context, id string, p models.SessionProgressUpdate) error {
	_, err := c.call(ctx, http.MethodPut, "/students/sessions/"+url.PathEscape(id)+"/progress", p, nil)
	return err
}

func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, a models.SubmitAnswerRequest) (*models.AnswerResult, error) {
	var out models.AnswerResult
	if _, err := c.call(ctx, http.MethodPost, "/students/sessions/"+url.PathEscape(sessionID)+"/answers", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProgressAnalytics accepts 7d, 30d, 90d or all; anything else is sent as 30d.
func (c *Client) ProgressAnalytics(ctx context.Context, timeRange string) (*models.ProgressAnalytics, error) {
	valid := false
	for _, r := range models.AnalyticsRanges {
		if r == timeRange {
			valid = true
		}
	}
	if !valid {
		timeRange = "30d"
	}
	var out models.ProgressAnalytics
	if _, err := c.call(ctx, http.MethodGet, "/students/analytics?range="+timeRange, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FlashcardDecks(ctx context.Context) ([]models.FlashcardDeck, error) {
	var out []models.FlashcardDeck
	_, err := c.call(ctx, http.MethodGet, "/students/flashcards/decks", nil, &out)
	return out, err
}

func (c *Client) DeckCards(ctx context.Context, deckID string) ([]models.Flashcard, error) {
	var out []models.Flashcard
	_, err := c.call(ctx, http.MethodGet, "/students/flashcards/decks/"+url.PathEscape(deckID)+"/cards", nil, &out)
	return out, err
}

func (c *Client) ReviewCard(ctx context.Context, cardID, difficulty string) (*models.Flashcard, error) {
	switch difficulty {
	case models.ReviewEasy, models.ReviewMedium, models.ReviewHard:
	default:
		return nil, fmt.Errorf("review difficulty must be easy, medium or hard, got %q", difficulty)
	}
	var out models.Flashcard
	if _, err := c.call(ctx, http.MethodPost, "/students/flashcards/cards/"+url.PathEscape(cardID)+"/review",
		models.ReviewCardRequest{Difficulty: difficulty}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ContentLibrary(ctx context.Context) ([]models.ContentItem, error) {
	var out []models.ContentItem
	_, err := c.call(ctx, http.MethodGet, "/students/content", nil, &out)
	return out, err
}

func (c *Client) CreateNote(ctx context.Context, n models.CreateNoteRequest) (*models.ContentItem, error) {
	var out models.ContentItem
	if _, err := c.call(ctx, http.MethodPost, "/students/content/notes", n, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadContent sends the file as multipart/form-data. pageCount is forwarded
// when the caller already inspected the document.
func (c *Client) UploadContent(ctx context.Context, u *models.Upload, pageCount int) (*models.ContentItem, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", u.Filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	mw.WriteField("subject", u.Subject)
	if u.Title != "" {
		mw.WriteField("title", u.Title)
	}
	if pageCount > 0 {
		mw.WriteField("pageCount", strconv.Itoa(pageCount))
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/students/content/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.ContentItem
	if _, err := c.send(req, "/students/content/upload", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
