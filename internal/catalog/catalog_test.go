package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"incident-quiz/internal/models"
	"incident-quiz/internal/testutil"

	"github.com/gorilla/mux"
	"go.uber.org/zap/zaptest"
)

type memoryCache struct {
	templates map[uint]*models.QuizTemplate
	deleted   []uint
}

func newMemoryCache() *memoryCache {
	return &memoryCache{templates: map[uint]*models.QuizTemplate{}}
}

func (c *memoryCache) GetTemplate(_ context.Context, categoryID uint) (*models.QuizTemplate, error) {
	tpl, ok := c.templates[categoryID]
	if !ok {
		return nil, errors.New("miss")
	}
	return tpl, nil
}

func (c *memoryCache) SetTemplate(_ context.Context, tpl *models.QuizTemplate) error {
	c.templates[tpl.CategoryID] = tpl
	return nil
}

func (c *memoryCache) DeleteTemplate(_ context.Context, categoryID uint) error {
	delete(c.templates, categoryID)
	c.deleted = append(c.deleted, categoryID)
	return nil
}

func TestCreateGroupRejectsBadOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(NewRepository(db), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	q := models.Question{FieldKind: models.FieldKindBoolean, WidgetKind: models.WidgetKindCheckbox, Label: "Rebooted?"}
	if err := svc.CreateQuestion(ctx, &q); err != nil {
		t.Fatalf("create question: %v", err)
	}

	tests := []struct {
		name  string
		items []OrderedQuestion
	}{
		{"zero", []OrderedQuestion{{QuestionID: q.ID, OrderIndex: 0}}},
		{"above max", []OrderedQuestion{{QuestionID: q.ID, OrderIndex: 101}}},
		{"duplicate", []OrderedQuestion{{QuestionID: q.ID, OrderIndex: 3}, {QuestionID: q.ID, OrderIndex: 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateGroup(ctx, &models.QuestionGroup{Title: "Device"}, tt.items)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}

	g := models.QuestionGroup{Title: "Device", Required: true}
	if err := svc.CreateGroup(ctx, &g, []OrderedQuestion{{QuestionID: q.ID, OrderIndex: 100}}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	loaded, err := svc.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(loaded.Questions) != 1 || loaded.Questions[0].Question.Label != "Rebooted?" {
		t.Fatalf("unexpected group questions: %+v", loaded.Questions)
	}
}

func TestCreateQuestionRejectsUnknownKind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(NewRepository(db), nil, zaptest.NewLogger(t))

	err := svc.CreateQuestion(context.Background(), &models.Question{FieldKind: "date", Label: "When?"})
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
}

func TestUpdateQuestionRejectedOnceAnswered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	svc := NewService(NewRepository(db), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	quiz := models.Quiz{TemplateID: f.Template.ID, IncidentID: f.Incident.ID}
	if err := db.Create(&quiz).Error; err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	answer := models.QuizAnswer{QuestionID: f.Checkbox.ID, QuestionGroupID: f.Device.ID, QuizID: quiz.ID, AnswerValue: "on"}
	if err := db.Create(&answer).Error; err != nil {
		t.Fatalf("create answer: %v", err)
	}

	updated := f.Checkbox
	updated.Label = "Changed"
	if err := svc.UpdateQuestion(ctx, &updated); !errors.Is(err, ErrQuestionInUse) {
		t.Fatalf("expected ErrQuestionInUse, got %v", err)
	}

	text := f.TextArea
	text.Label = "Anything else?"
	if err := svc.UpdateQuestion(ctx, &text); err != nil {
		t.Fatalf("update unanswered question: %v", err)
	}
}

func TestCreateTemplateOnePerCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	svc := NewService(NewRepository(db), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, &models.QuizTemplate{CategoryID: f.Category.ID, Name: "Second"}, nil, nil)
	if !errors.Is(err, ErrTemplateExists) {
		t.Fatalf("expected ErrTemplateExists, got %v", err)
	}

	_, err = svc.CreateTemplate(ctx, &models.QuizTemplate{CategoryID: 999, Name: "Orphan"}, nil, nil)
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	phishing := models.IncidentCategory{Name: "Phishing"}
	if err := db.Create(&phishing).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	tpl, err := svc.CreateTemplate(ctx,
		&models.QuizTemplate{CategoryID: phishing.ID, Name: "Phishing quiz"},
		[]OrderedGroup{{GroupID: f.Comments.ID, OrderIndex: 2}, {GroupID: f.Device.ID, OrderIndex: 1}},
		[]models.UsefulLink{{Label: "Report", URL: "https://intranet.example.org/report", OrderIndex: 1}},
	)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if len(tpl.Groups) != 2 || tpl.Groups[0].GroupID != f.Device.ID {
		t.Fatalf("expected groups ordered by order_index, got %+v", tpl.Groups)
	}
	if len(tpl.Groups[0].Group.Questions) != 1 || tpl.Groups[0].Group.Questions[0].QuestionID != f.Checkbox.ID {
		t.Fatalf("expected nested questions to be loaded")
	}
	if len(tpl.UsefulLinks) != 1 {
		t.Fatalf("expected one useful link, got %d", len(tpl.UsefulLinks))
	}
}

func TestTemplateForCategoryUsesCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	cache := newMemoryCache()
	svc := NewService(NewRepository(db), cache, zaptest.NewLogger(t))
	ctx := context.Background()

	tpl, err := svc.TemplateForCategory(ctx, f.Category.ID)
	if err != nil {
		t.Fatalf("template for category: %v", err)
	}
	if tpl.ID != f.Template.ID {
		t.Fatalf("expected template %d, got %d", f.Template.ID, tpl.ID)
	}
	if _, ok := cache.templates[f.Category.ID]; !ok {
		t.Fatalf("expected template to be cached")
	}

	if _, err := svc.UpdateTemplate(ctx, tpl.ID, "Renamed", ""); err != nil {
		t.Fatalf("update template: %v", err)
	}
	if _, ok := cache.templates[f.Category.ID]; ok {
		t.Fatalf("expected cache entry to be dropped on update")
	}

	if _, err := svc.TemplateForCategory(ctx, f.Global.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for category without template, got %v", err)
	}
}

func TestDeleteTemplateInUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	svc := NewService(NewRepository(db), nil, zaptest.NewLogger(t))
	ctx := context.Background()

	if err := db.Create(&models.Quiz{TemplateID: f.Template.ID, IncidentID: f.Incident.ID}).Error; err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if err := svc.DeleteTemplate(ctx, f.Template.ID); !errors.Is(err, ErrTemplateInUse) {
		t.Fatalf("expected ErrTemplateInUse, got %v", err)
	}
	if err := svc.DeleteTemplate(ctx, 4242); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandlerTemplateRoutes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	log := zaptest.NewLogger(t)
	r := mux.NewRouter()
	NewHandler(NewService(NewRepository(db), nil, log), log).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/quiz-templates/9999", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"category_id": f.Category.ID,
		"name":        "Duplicate",
	})
	req = httptest.NewRequest(http.MethodPost, "/quiz-templates", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	body, _ = json.Marshal(map[string]interface{}{
		"title":     "Bad",
		"questions": []map[string]int{{"question_id": int(f.Checkbox.ID), "order_index": 500}},
	})
	req = httptest.NewRequest(http.MethodPost, "/question-groups", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/quiz-templates", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var templates []models.QuizTemplate
	if err := json.Unmarshal(rec.Body.Bytes(), &templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Malware quiz" {
		t.Fatalf("unexpected templates: %+v", templates)
	}
}
