package models

import "time"

type ContentItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"` // "note" | "pdf" | "video" | "link"
	Subject   string    `json:"subject"`
	Tags      []string  `json:"tags"`
	URL       string    `json:"url,omitempty"`
	PageCount int       `json:"pageCount,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Subject string   `json:"subject,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Upload is a file forwarded to the content library.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	Subject     string
	Title       string
}

// DashboardSummary aggregates what the student dashboard renders on first paint.
type DashboardSummary struct {
	Profile     *Profile           `json:"profile"`
	Recommended []LearningSession  `json:"recommended"`
	Decks       []FlashcardDeck    `json:"decks"`
	Analytics   *ProgressAnalytics `json:"analytics"`
	Degraded    []string           `json:"degraded,omitempty"`
}
