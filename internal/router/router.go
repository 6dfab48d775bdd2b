package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"astra-chat/internal/handlers"
	"astra-chat/internal/middleware"
	"astra-chat/internal/websocket"
)

func New(
	sessions *middleware.Sessions,
	chatLimiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	static http.Handler,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/static/*", http.StripPrefix("/static/", static))

	// ──── Page Routes ────
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Get("/", chatHandler.Page)
		r.With(chatLimiter.Middleware).Post("/chat", chatHandler.SubmitForm)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Conversation Routes ────
		r.Route("/conversation", func(r chi.Router) {
			r.Use(sessions.Middleware)
			r.Get("/", chatHandler.GetConversation)
			r.With(chatLimiter.Middleware).Post("/messages", chatHandler.SendMessage)
		})

		// ──── WebSocket ────
		r.With(sessions.Require).Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
