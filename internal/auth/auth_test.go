package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"incident-quiz/internal/models"
	"incident-quiz/internal/testutil"

	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewService(NewRepository(db), "test-secret", time.Hour, zaptest.NewLogger(t))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user := &models.User{Username: "analyst", Email: "analyst@example.org", Password: "s3cret"}
	if err := svc.Register(ctx, user); err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Password == "s3cret" {
		t.Fatalf("password must be hashed")
	}
	if err := svc.Register(ctx, &models.User{Username: "analyst", Password: "x"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	if _, err := svc.Login(ctx, "analyst", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	token, err := svc.Login(ctx, "analyst", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != user.ID || claims.IsHandler {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestMiddleware(t *testing.T) {
	svc := newService(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := UserID(r.Context())
		if id == nil {
			t.Errorf("expected user id in context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := svc.JWTMiddleware(RequireHandler(ok))

	handlerToken, err := svc.Issue(&models.User{ID: 1, Username: "handler", IsHandler: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userToken, err := svc.Issue(&models.User{ID: 2, Username: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bad format", "Token " + handlerToken, http.StatusUnauthorized},
		{"bad token", "Bearer not-a-token", http.StatusUnauthorized},
		{"not a handler", "Bearer " + userToken, http.StatusForbidden},
		{"handler", "Bearer " + handlerToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	svc := newService(t)
	h := NewHandler(svc, zaptest.NewLogger(t))

	body, _ := json.Marshal(RegisterRequest{Username: "analyst", Email: "a@example.org", Password: "pw"})
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("password must not be serialized: %s", rec.Body.String())
	}

	body, _ = json.Marshal(LoginRequest{Username: "analyst", Password: "pw"})
	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["token"] == "" {
		t.Fatalf("expected token, got %s", rec.Body.String())
	}
}

func TestQueryTokenMiddleware(t *testing.T) {
	svc := newService(t)
	h := svc.QueryTokenMiddleware(RequireHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	handlerToken, err := svc.Issue(&models.User{ID: 1, Username: "handler", IsHandler: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		query  string
		header string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "not-a-token", "", http.StatusUnauthorized},
		{"query token", handlerToken, "", http.StatusNoContent},
		{"header token", "", "Bearer " + handlerToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws/incidents/1"
			if tt.query != "" {
				target += "?" + QueryTokenParam + "=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
