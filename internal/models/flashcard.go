package models

import "time"

const (
	ReviewEasy   = "easy"
	ReviewMedium = "medium"
	ReviewHard   = "hard"
)

type FlashcardDeck struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	CardCount   int        `json:"cardCount"`
	DueCount    int        `json:"dueCount"`
	Mastery     float64    `json:"mastery"`
	LastStudied *time.Time `json:"lastStudied,omitempty"`
}

type Flashcard struct {
	ID           string     `json:"id"`
	DeckID       string     `json:"deckId"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	Difficulty   string     `json:"difficulty"`
	NextReviewAt *time.Time `json:"nextReview,omitempty"`
	ReviewCount  int        `json:"reviewCount"`
}

type ReviewCardRequest struct {
	Difficulty string `json:"difficulty"`
}
