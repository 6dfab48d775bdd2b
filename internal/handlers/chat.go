package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"astra-chat/internal/chat"
	"astra-chat/internal/middleware"
	"astra-chat/internal/models"
	"astra-chat/internal/render"
)

const maxRequestBytes = 64 << 10

type conversationStore interface {
	GetOrCreate(ctx context.Context, id uuid.UUID) (*chat.Conversation, error)
}

type ChatHandler struct {
	store       conversationStore
	renderer    *render.Renderer
	title       string
	placeholder string
}

func NewChatHandler(store conversationStore, renderer *render.Renderer, title, placeholder string) *ChatHandler {
	return &ChatHandler{
		store:       store,
		renderer:    renderer,
		title:       title,
		placeholder: placeholder,
	}
}

func (h *ChatHandler) conversation(r *http.Request) (*chat.Conversation, error) {
	return h.store.GetOrCreate(r.Context(), middleware.GetSessionID(r.Context()))
}

// Page draws the session's conversation.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		log.Printf("Failed to load conversation: %v", err)
		http.Error(w, "Chat is unavailable right now", http.StatusInternalServerError)
		return
	}

	h.writePage(w, http.StatusOK, conv, "", "")
}

// SubmitForm handles the plain form post used when scripts are disabled.
func (h *ChatHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	conv, err := h.conversation(r)
	if err != nil {
		log.Printf("Failed to load conversation: %v", err)
		http.Error(w, "Chat is unavailable right now", http.StatusInternalServerError)
		return
	}

	prompt := r.PostFormValue("prompt")
	if _, err := conv.Submit(r.Context(), prompt); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			h.writePage(w, http.StatusBadRequest, conv, "Please enter a message.", prompt)
			return
		}
		log.Printf("Chat submission failed [%s]: %v", r.Header.Get("X-Request-ID"), err)
		h.writePage(w, http.StatusBadGateway, conv, "Failed to get AI response. Please try again.", "")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GetConversation returns the history for the page script.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		log.Printf("Failed to load conversation: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ConversationResponse{
		ID:       conv.ID.String(),
		Messages: h.renderer.Messages(conv.Messages()),
	})
}

// SendMessage submits one prompt and returns the model's reply.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	conv, err := h.conversation(r)
	if err != nil {
		log.Printf("Failed to load conversation: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load conversation", r))
		return
	}

	reply, err := conv.Submit(r.Context(), req.Message)
	if err != nil {
		handleSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: h.renderer.Message(reply)})
}

func (h *ChatHandler) writePage(w http.ResponseWriter, status int, conv *chat.Conversation, errMsg, draft string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	err := h.renderer.Page(w, render.PageData{
		Title:       h.title,
		Placeholder: h.placeholder,
		Messages:    h.renderer.Messages(conv.Messages()),
		Error:       errMsg,
		Draft:       draft,
	})
	if err != nil {
		log.Printf("Failed to render page: %v", err)
	}
}
