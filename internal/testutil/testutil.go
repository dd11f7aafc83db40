package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"incident-quiz/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// SetupTestDB opens an isolated in-memory database with every table migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a small incident with a two-group quiz template, matching the
// "Malware" walkthrough: a required "Device" group with one checkbox and an
// optional "Comments" group with one text area.
type Fixture struct {
	Global   models.IncidentCategory
	Category models.IncidentCategory
	Incident models.Incident
	Owner    models.User
	Template models.QuizTemplate
	Device   models.QuestionGroup
	Comments models.QuestionGroup
	Checkbox models.Question
	TextArea models.Question
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

// SeedMalware writes the fixture and returns it.
func SeedMalware(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{}

	f.Global = models.IncidentCategory{Name: "Global"}
	mustCreate(t, db, &f.Global)
	f.Category = models.IncidentCategory{Name: "Malware"}
	mustCreate(t, db, &f.Category)

	f.Owner = models.User{Username: "jdoe", Email: "jdoe@example.org"}
	mustCreate(t, db, &f.Owner)

	f.Incident = models.Incident{
		Date:        time.Now().Add(-48 * time.Hour),
		Subject:     "Malware on workstation",
		Description: "Suspicious binary found on \u200bPC-42\u200b",
		CategoryID:  f.Category.ID,
		Severity:    2,
		Status:      models.StatusOpen,
		OpenedByID:  &f.Owner.ID,
	}
	mustCreate(t, db, &f.Incident)

	f.Checkbox = models.Question{FieldKind: models.FieldKindBoolean, WidgetKind: models.WidgetKindCheckbox, Label: "I rebooted the device"}
	mustCreate(t, db, &f.Checkbox)
	f.TextArea = models.Question{FieldKind: models.FieldKindText, WidgetKind: models.WidgetKindTextArea, Label: "Anything to add?"}
	mustCreate(t, db, &f.TextArea)

	f.Device = models.QuestionGroup{Title: "Device", Required: true}
	mustCreate(t, db, &f.Device)
	mustCreate(t, db, &models.GroupQuestion{GroupID: f.Device.ID, QuestionID: f.Checkbox.ID, OrderIndex: 1})
	f.Comments = models.QuestionGroup{Title: "Comments"}
	mustCreate(t, db, &f.Comments)
	mustCreate(t, db, &models.GroupQuestion{GroupID: f.Comments.ID, QuestionID: f.TextArea.ID, OrderIndex: 1})

	f.Template = models.QuizTemplate{CategoryID: f.Category.ID, Name: "Malware quiz"}
	mustCreate(t, db, &f.Template)
	mustCreate(t, db, &models.TemplateGroup{TemplateID: f.Template.ID, GroupID: f.Device.ID, OrderIndex: 1})
	mustCreate(t, db, &models.TemplateGroup{TemplateID: f.Template.ID, GroupID: f.Comments.ID, OrderIndex: 2})

	return f
}
