package models

import "encoding/json"

// APIError is the error body this server returns.
type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RedirectTo string            `json:"redirect_to,omitempty"`
	RequestID  string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Envelope is the response wrapper used by the EkaAI REST backend.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Degraded wraps dashboard payloads that fell back to empty data.
type Degraded[T any] struct {
	Data     T    `json:"data"`
	Degraded bool `json:"degraded,omitempty"`
}
