package models

// WebSocket message types
const (
	WSMessageAppended = "message_appended"
	WSSubmitFailed    = "submit_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SubmitFailedEvent struct {
	Message string `json:"message"`
}

// API Error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
