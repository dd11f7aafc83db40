package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"incident-quiz/internal/auth"
	"incident-quiz/internal/catalog"
	"incident-quiz/internal/form"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"
	"incident-quiz/internal/quiz"
	"incident-quiz/internal/testutil"
	"incident-quiz/internal/watchlist"
	"incident-quiz/pkg/websocket"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

func TestRoutes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zaptest.NewLogger(t)

	authSvc := auth.NewService(auth.NewRepository(db), "secret", time.Hour, log)
	catalogSvc := catalog.NewService(catalog.NewRepository(db), nil, log)
	incidents := incident.NewService(incident.NewRepository(db), log)
	quizRepo := quiz.NewRepository(db)
	quizSvc := quiz.NewService(quizRepo, incidents, catalogSvc, form.Ascending, log)

	h := New(&Container{
		Auth:           authSvc,
		Catalog:        catalogSvc,
		Quiz:           quizSvc,
		Watchlist:      watchlist.NewService(watchlist.NewRepository(db), quizRepo, incidents, "", log),
		AllowedOrigins: []string{"http://localhost:3000"},
		Log:            log,
	})

	handlerToken, err := authSvc.Issue(&models.User{ID: 1, Username: "handler", IsHandler: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"api requires a token", http.MethodGet, "/api/quizzes", "", http.StatusUnauthorized},
		{"api with handler token", http.MethodGet, "/api/quizzes", handlerToken, http.StatusOK},
		{"catalog mounted", http.MethodGet, "/api/quiz-templates", handlerToken, http.StatusOK},
		{"watchlist mounted", http.MethodGet, "/api/watchlist", handlerToken, http.StatusOK},
		{"public form", http.MethodGet, "/form/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIncidentFeedRequiresHandlerToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	authSvc := auth.NewService(auth.NewRepository(db), "secret", time.Hour, log)
	catalogSvc := catalog.NewService(catalog.NewRepository(db), nil, log)
	incidents := incident.NewService(incident.NewRepository(db), log)
	quizRepo := quiz.NewRepository(db)
	hub := websocket.NewHub(nil, log)
	go hub.Run(ctx)

	srv := httptest.NewServer(New(&Container{
		Auth:      authSvc,
		Catalog:   catalogSvc,
		Quiz:      quiz.NewService(quizRepo, incidents, catalogSvc, form.Ascending, log),
		Watchlist: watchlist.NewService(watchlist.NewRepository(db), quizRepo, incidents, "", log),
		Hub:       hub,
		Log:       log,
	}))
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/incidents/1"

	handlerToken, err := authSvc.Issue(&models.User{ID: 1, Username: "handler", IsHandler: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userToken, err := authSvc.Issue(&models.User{ID: 2, Username: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "not-a-token", http.StatusUnauthorized},
		{"not a handler", userToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := base
			if tt.token != "" {
				target += "?" + url.Values{auth.QueryTokenParam: {tt.token}}.Encode()
			}
			conn, resp, err := gws.DefaultDialer.Dial(target, nil)
			if err == nil {
				conn.Close()
				t.Fatalf("expected the handshake to be rejected")
			}
			if resp == nil || resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %v", tt.want, resp)
			}
		})
	}

	conn, _, err := gws.DefaultDialer.Dial(base+"?"+url.Values{auth.QueryTokenParam: {handlerToken}}.Encode(), nil)
	if err != nil {
		t.Fatalf("dial with handler token: %v", err)
	}
	conn.Close()
}
