package models

import "astra-chat/internal/render"

// ChatRequest is the payload sent to the submit endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the model's reply.
type ChatResponse struct {
	Reply render.MessageView `json:"reply"`
}

// ConversationResponse is the session's full history as displayed.
type ConversationResponse struct {
	ID       string               `json:"id"`
	Messages []render.MessageView `json:"messages"`
}
