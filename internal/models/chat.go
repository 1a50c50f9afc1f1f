package models

import "time"

const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"

	MessageStatusPending = "pending"
	MessageStatusSent    = "sent"
	MessageStatusFailed  = "failed"

	ChatStatusActive   = "active"
	ChatStatusResolved = "resolved"
	ChatStatusArchived = "archived"
)

type FollowUpSuggestion struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Type     string `json:"type"` // "clarification" | "deeper" | "related" | "practice"
	Priority int    `json:"priority"`
}

type MessageMetadata struct {
	Subject             string               `json:"subject,omitempty"`
	Topic               string               `json:"topic,omitempty"`
	Difficulty          string               `json:"difficulty,omitempty"`
	FollowUpSuggestions []FollowUpSuggestion `json:"followUpSuggestions,omitempty"`
}

// ChatMessage is a single turn of a tutoring conversation.
type ChatMessage struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Status    string           `json:"status,omitempty"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

type ChatSession struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Title     string        `json:"title"`
	Subject   string        `json:"subject"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Status    string        `json:"status"`
}

type CreateChatSessionRequest struct {
	InitialQuestion string `json:"initialQuestion,omitempty"`
}

type AskQuestionRequest struct {
	Question string         `json:"question"`
	Context  map[string]any `json:"context,omitempty"`
}

type AIResponse struct {
	Message             string               `json:"message"`
	FollowUpSuggestions []FollowUpSuggestion `json:"followUpSuggestions"`
	RelatedTopics       []string             `json:"relatedTopics"`
	Confidence          float64              `json:"confidence"`
	ProcessingTime      float64              `json:"processingTime"`
}

type AskQuestionResult struct {
	MessageID  string     `json:"messageId"`
	AIResponse AIResponse `json:"aiResponse"`
}

type ExplainRequest struct {
	Concept string `json:"concept"`
	Level   string `json:"level,omitempty"` // "basic" | "intermediate" | "advanced"
	Context string `json:"context,omitempty"`
}

type Explanation struct {
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples"`
	Related     []string `json:"relatedConcepts"`
}

// DoubtMessage is the legacy doubt-clearing chat turn.
type DoubtMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject,omitempty"`
}

type DoubtRequest struct {
	UserID  string         `json:"userId"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

type DoubtReply struct {
	Response          string   `json:"response"`
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
	RelatedTopics     []string `json:"relatedTopics,omitempty"`
}

type WorkAnalysisRequest struct {
	WorkContent    string `json:"workContent"`
	Subject        string `json:"subject"`
	ExpectedAnswer string `json:"expectedAnswer,omitempty"`
}

type WorkAnalysis struct {
	Feedback    string   `json:"feedback"`
	Mistakes    []string `json:"mistakes"`
	Suggestions []string `json:"suggestions"`
	Score       float64  `json:"score"`
}

type SaveChatRequest struct {
	UserID   string         `json:"userId"`
	Messages []DoubtMessage `json:"messages"`
}
