package renotify

import (
	"context"
	"testing"
	"time"

	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"
	"incident-quiz/internal/notify"
	"incident-quiz/internal/testutil"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	l.held = true
	return "holder", true, nil
}

func (l *fakeLock) Release(_ context.Context, _, token string) error {
	if token != "holder" {
		return nil
	}
	l.held = false
	l.released++
	return nil
}

type env struct {
	db   *gorm.DB
	f    *testutil.Fixture
	tpls *notify.Templates
	lock *fakeLock
	job  *Job
}

// setup blocks the fixture incident, gives it an unanswered quiz and a
// comment dated lastComment ago.
func setup(t *testing.T, lastComment time.Duration) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	f := testutil.SeedMalware(t, db)
	log := zaptest.NewLogger(t)

	if err := db.Model(&models.Incident{}).Where("id = ?", f.Incident.ID).Update("status", models.StatusBlocked).Error; err != nil {
		t.Fatalf("block incident: %v", err)
	}
	if err := db.Omit(clause.Associations).Create(&models.Quiz{TemplateID: f.Template.ID, IncidentID: f.Incident.ID}).Error; err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	label := models.Label{Name: incident.LabelInitial}
	if err := db.Create(&label).Error; err != nil {
		t.Fatalf("create label: %v", err)
	}
	if lastComment > 0 {
		c := models.Comment{IncidentID: f.Incident.ID, Comment: "Initial notification sent", ActionID: label.ID, Date: time.Now().Add(-lastComment)}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	tpls := notify.NewTemplates(db, f.Global.ID)
	lock := &fakeLock{}
	incidents := incident.NewService(incident.NewRepository(db), log)
	return &env{
		db:   db,
		f:    f,
		tpls: tpls,
		lock: lock,
		job:  NewJob(incidents, tpls, lock, 7, time.Minute, log),
	}
}

func (e *env) addTemplate(t *testing.T, categoryID uint) {
	t.Helper()
	tpl := &models.CategoryTemplate{CategoryID: categoryID, Type: models.RenotifyType(2), Subject: "Reminder", Body: "Please answer"}
	if err := e.tpls.Create(context.Background(), tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}
}

func (e *env) renotifyComments(t *testing.T) int64 {
	t.Helper()
	var n int64
	err := e.db.Model(&models.Comment{}).
		Joins("JOIN labels ON labels.id = comments.action_id").
		Where("comments.incident_id = ? AND labels.name = ?", e.f.Incident.ID, "Renotify2").
		Count(&n).Error
	if err != nil {
		t.Fatalf("count comments: %v", err)
	}
	return n
}

func TestRunRenotifiesStaleIncident(t *testing.T) {
	e := setup(t, 10*24*time.Hour)
	e.addTemplate(t, e.f.Global.ID)
	ctx := context.Background()

	n, err := e.job.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 1 || e.renotifyComments(t) != 1 {
		t.Fatalf("expected one renotification, got %d", n)
	}
	if e.lock.released != 1 || e.lock.held {
		t.Fatalf("expected lock to be released")
	}

	// The renotification is now the newest comment.
	n, err = e.job.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 0 || e.renotifyComments(t) != 1 {
		t.Fatalf("expected no second renotification, got %d", n)
	}
}

func TestRunSkips(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, e *env)
	}{
		{
			name: "no template",
			setup: func(t *testing.T, e *env) {
				other := models.IncidentCategory{Name: "Phishing"}
				e.db.Create(&other)
				e.addTemplate(t, other.ID)
			},
		},
		{
			name: "category duration not reached",
			setup: func(t *testing.T, e *env) {
				e.addTemplate(t, e.f.Category.ID)
				e.db.Create(&models.RenotifyDuration{CategoryID: e.f.Category.ID, Severity: 2, Duration: 30 * 24 * time.Hour})
			},
		},
		{
			name: "quiz answered",
			setup: func(t *testing.T, e *env) {
				e.addTemplate(t, e.f.Global.ID)
				e.db.Model(&models.Quiz{}).Where("incident_id = ?", e.f.Incident.ID).Update("is_answered", true)
			},
		},
		{
			name: "incident open",
			setup: func(t *testing.T, e *env) {
				e.addTemplate(t, e.f.Global.ID)
				e.db.Model(&models.Incident{}).Where("id = ?", e.f.Incident.ID).Update("status", models.StatusOpen)
			},
		},
		{
			name: "lock held",
			setup: func(t *testing.T, e *env) {
				e.addTemplate(t, e.f.Global.ID)
				e.lock.held = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t, 10*24*time.Hour)
			tt.setup(t, e)
			n, err := e.job.Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if n != 0 || e.renotifyComments(t) != 0 {
				t.Fatalf("expected no renotification, got %d", n)
			}
		})
	}
}

func TestRunFallsBackToIncidentDate(t *testing.T) {
	e := setup(t, 0)
	e.addTemplate(t, e.f.Category.ID)

	// The fixture incident is two days old.
	if n, _ := e.job.Run(context.Background()); n != 0 {
		t.Fatalf("expected no renotification before the default threshold, got %d", n)
	}

	e.db.Create(&models.RenotifyDuration{CategoryID: e.f.Category.ID, Severity: 2, Duration: 24 * time.Hour})
	if n, _ := e.job.Run(context.Background()); n != 1 {
		t.Fatalf("expected a renotification after the category duration, got %d", n)
	}
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	e := setup(t, 0)
	if _, err := NewScheduler(e.job, "not a schedule", zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected an error for an invalid schedule")
	}
	s, err := NewScheduler(e.job, "@hourly", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	s.Stop(context.Background())
}
