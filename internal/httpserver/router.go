package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "sandwich_hub/docs"
	"sandwich_hub/internal/config"
	"sandwich_hub/internal/service"
	"sandwich_hub/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(cfg *config.Config, svc *service.Services, hub *ws.Hub, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WebSocket endpoint; long lived, so outside the request timeout
	r.Get("/ws", ws.MakeHandler(hub, svc.Auth, cfg.CORSOrigins))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0", "docs": "/docs"})
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "ws_clients": hub.Count()})
		})

		// Swagger documentation
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/docs/doc.json"), //The url pointing to API definition
		))

		// API routes
		r.Route("/api", func(r chi.Router) {
			r.Post("/auth/login", handleLogin(svc.Auth, log))

			// Authenticated routes
			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(svc.Auth, log))

				r.Get("/auth/me", handleMe())

				r.Route("/users", func(r chi.Router) {
					r.Get("/", handleListUsers(svc.Users, log))
					r.Post("/", handleCreateUser(svc.Users, log))
					r.Get("/{userID}", handleGetUser(svc.Users, log))
				})

				r.Route("/conversations", func(r chi.Router) {
					r.Post("/", handleCreateConversation(svc.Conversations, log))
					r.Get("/", handleListConversations(svc.Conversations, log))
					r.Get("/{conversationID}", handleGetConversation(svc.Conversations, log))
					r.Delete("/{conversationID}", handleDeleteConversation(svc.Conversations, log))
					r.Post("/{conversationID}/read", handleMarkConversationRead(svc.Conversations, log))
					r.Get("/{conversationID}/messages", handleListMessages(svc.Messages, log))
					r.Post("/{conversationID}/messages", handleCreateMessage(svc.Messages, log))
					r.Get("/{conversationID}/participants", handleListParticipants(svc.Conversations, log))
					r.Post("/{conversationID}/participants", handleAddParticipant(svc.Conversations, log))
					r.Delete("/{conversationID}/participants/{userID}", handleRemoveParticipant(svc.Conversations, log))
				})

				r.Route("/messages", func(r chi.Router) {
					r.Patch("/{messageID}", handleEditMessage(svc.Messages, log))
					r.Delete("/{messageID}", handleDeleteMessage(svc.Messages, log))
				})

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", handleListProjects(svc.Tasks, log))
					r.Post("/", handleCreateProject(svc.Tasks, log))
					r.Get("/{projectID}/tasks", handleListTasks(svc.Tasks, log))
					r.Post("/{projectID}/tasks", handleCreateTask(svc.Tasks, log))
				})

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/{taskID}", handleGetTask(svc.Tasks, log))
					r.Patch("/{taskID}", handleUpdateTaskStatus(svc.Tasks, log))
					r.Get("/{taskID}/completions", handleListCompletions(svc.Tasks, log))
					r.Post("/{taskID}/completions", handleCompleteTask(svc.Tasks, log))
				})
			})
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
