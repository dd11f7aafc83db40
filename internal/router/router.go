// Package router mounts every HTTP surface of the service.
package router

import (
	"net/http"

	"incident-quiz/internal/auth"
	"incident-quiz/internal/catalog"
	"incident-quiz/internal/middleware"
	"incident-quiz/internal/quiz"
	"incident-quiz/internal/watchlist"
	"incident-quiz/pkg/websocket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Container holds the services behind the routes.
type Container struct {
	Auth           *auth.Service
	Catalog        *catalog.Service
	Quiz           *quiz.Service
	Watchlist      *watchlist.Service
	Hub            *websocket.Hub
	AllowedOrigins []string
	Log            *zap.Logger
}

func New(c *Container) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logger(c.Log))

	authHandler := auth.NewHandler(c.Auth, c.Log)
	quizHandler := quiz.NewHandler(c.Quiz, c.Log)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	// Auth routes - no JWT required
	r.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost, http.MethodOptions)

	// The quiz id in the link is the respondent's only credential.
	quizHandler.RegisterPublic(r)

	// Incident handler routes - JWT required
	api := r.PathPrefix("/api").Subrouter()
	api.Use(c.Auth.JWTMiddleware, auth.RequireHandler)
	catalog.NewHandler(c.Catalog, c.Log).Register(api)
	quizHandler.Register(api)
	watchlist.NewHandler(c.Watchlist, c.Log).Register(api)

	// Live incident feed - JWT required, passed as a query parameter
	if c.Hub != nil {
		ws := r.PathPrefix("/ws").Subrouter()
		ws.Use(c.Auth.QueryTokenMiddleware, auth.RequireHandler)
		ws.HandleFunc("/incidents/{id:[0-9]+}", c.Hub.HandleWebSocket)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(r)
}
