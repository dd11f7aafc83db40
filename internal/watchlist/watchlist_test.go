package watchlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"incident-quiz/internal/artifact"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"
	"incident-quiz/internal/quiz"
	"incident-quiz/internal/testutil"

	"github.com/gorilla/mux"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type recorder struct {
	labels []string
}

func (r *recorder) CommentAdded(_ context.Context, _ *models.Incident, c *models.Comment) error {
	r.labels = append(r.labels, c.Action.Name)
	return nil
}

type env struct {
	db       *gorm.DB
	f        *testutil.Fixture
	quiz     *models.Quiz
	bl       models.BusinessLine
	svc      *Service
	comments *recorder
}

func setup(t *testing.T, publicURL string) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	log := zaptest.NewLogger(t)

	quizzes := quiz.NewRepository(db)
	q := &models.Quiz{TemplateID: f.Template.ID, IncidentID: f.Incident.ID, UserID: &f.Owner.ID}
	if err := quizzes.Create(context.Background(), q); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	bl := models.BusinessLine{Name: "Retail"}
	if err := db.Create(&bl).Error; err != nil {
		t.Fatalf("create business line: %v", err)
	}

	incidents := incident.NewService(incident.NewRepository(db), log)
	rec := &recorder{}
	incidents.Observe(rec)

	return &env{
		db:       db,
		f:        f,
		quiz:     q,
		bl:       bl,
		svc:      NewService(NewRepository(db), quizzes, incidents, publicURL, log),
		comments: rec,
	}
}

func TestSubscribe(t *testing.T) {
	e := setup(t, "")
	ctx := context.Background()

	q, err := e.svc.Subscribe(ctx, models.SubscribeRequest{
		FormID:        e.quiz.ID,
		BusinessLines: []uint{e.bl.ID, 9999, e.bl.ID},
	}, "http://fir.example/")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(q.Watchlist) != 1 || q.Watchlist[0].BusinessLineID != e.bl.ID {
		t.Fatalf("expected one watched business line, got %+v", q.Watchlist)
	}

	var inc models.Incident
	if err := e.db.Preload("Artifacts").First(&inc, e.f.Incident.ID).Error; err != nil {
		t.Fatalf("load incident: %v", err)
	}
	if inc.Status != models.StatusBlocked {
		t.Fatalf("expected blocked incident, got %q", inc.Status)
	}
	got := map[string]string{}
	for _, a := range inc.Artifacts {
		got[a.Type] = a.Value
	}
	wantURL := "http://fir.example/incidents/" + strconv.FormatUint(uint64(e.f.Incident.ID), 10)
	if got[artifact.TypeIncidentURL] != wantURL {
		t.Fatalf("expected incident url %q, got %q", wantURL, got[artifact.TypeIncidentURL])
	}
	if got[artifact.TypeDevice] != "pc-42" {
		t.Fatalf("expected device pc-42, got %q", got[artifact.TypeDevice])
	}

	if len(e.comments.labels) != 1 || e.comments.labels[0] != incident.LabelInitial {
		t.Fatalf("expected one Initial comment, got %v", e.comments.labels)
	}
}

func TestSubscribeUsesPublicURL(t *testing.T) {
	e := setup(t, "https://fir.corp/")
	if got := e.svc.IncidentURL("http://10.0.0.1:8080", 7); got != "https://fir.corp/incidents/7" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestSubscribeUnknownQuiz(t *testing.T) {
	e := setup(t, "")
	_, err := e.svc.Subscribe(context.Background(), models.SubscribeRequest{FormID: "missing"}, "http://fir.example")
	if !errors.Is(err, ErrUnknownQuiz) {
		t.Fatalf("expected ErrUnknownQuiz, got %v", err)
	}
	if len(e.comments.labels) != 0 {
		t.Fatalf("no comment expected, got %v", e.comments.labels)
	}
}

func TestCreateAndDelete(t *testing.T) {
	e := setup(t, "")
	ctx := context.Background()

	item, err := e.svc.Create(ctx, e.quiz.ID, e.bl.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.BusinessLine == nil || item.BusinessLine.Name != "Retail" {
		t.Fatalf("expected business line to be loaded, got %+v", item)
	}
	again, err := e.svc.Create(ctx, e.quiz.ID, e.bl.ID)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if again.ID != item.ID {
		t.Fatalf("expected the existing item to be returned")
	}
	if _, err := e.svc.Create(ctx, e.quiz.ID, 9999); !errors.Is(err, ErrUnknownBusinessLine) {
		t.Fatalf("expected ErrUnknownBusinessLine, got %v", err)
	}

	if err := e.svc.Delete(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.svc.Delete(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandler(t *testing.T) {
	e := setup(t, "")
	r := mux.NewRouter()
	NewHandler(e.svc, zaptest.NewLogger(t)).Register(r)

	post := func(path string, body interface{}) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
		req.Host = "fir.example"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := post("/watchlist/subscribe", models.SubscribeRequest{FormID: "missing"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := post("/watchlist/subscribe", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec := post("/watchlist/subscribe", models.SubscribeRequest{FormID: e.quiz.ID, BusinessLines: []uint{e.bl.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dto models.QuizDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dto.BusinessLine) != 1 || dto.BusinessLine[0] != e.bl.ID {
		t.Fatalf("expected watch list in response, got %+v", dto)
	}

	req := httptest.NewRequest(http.MethodGet, "/watchlist/12345", nil)
	get := httptest.NewRecorder()
	r.ServeHTTP(get, req)
	if get.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", get.Code)
	}
}
