package models

import "time"

// LearningSession is a guided lesson served by the domain backend.
type LearningSession struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Subject        string          `json:"subject"`
	Topic          string          `json:"topic"`
	Difficulty     string          `json:"difficulty"`
	EstimatedTime  int             `json:"estimatedTime"`
	Progress       float64         `json:"progress"`
	Status         string          `json:"status"` // "not-started" | "in-progress" | "completed"
	Content        []LessonSection `json:"content,omitempty"`
	Questions      []Question      `json:"questions,omitempty"`
	LastAccessedAt *time.Time      `json:"lastAccessed,omitempty"`
}

type LessonSection struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "text" | "video" | "example" | "exercise"
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type SessionProgressUpdate struct {
	Progress       float64  `json:"progress"`
	CompletedItems []string `json:"completedItems,omitempty"`
	TimeSpent      int      `json:"timeSpent,omitempty"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type AnswerResult struct {
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
	Score       int    `json:"score"`
}
