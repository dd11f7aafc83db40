package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"

	"incident-quiz/internal/catalog"
	"incident-quiz/internal/config"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"
	"incident-quiz/internal/notify"
	"incident-quiz/pkg/database"
	"incident-quiz/pkg/logger"
)

var notificationTemplates = []models.CategoryTemplate{
	{
		Type:    models.TemplateTypeInitial,
		Subject: "[Security] {{incident_name}}",
		Body:    "<p>Hello {{username}},</p><p>We need your help with an incident opened on {{date}}.</p><p>{{incident_desc}}</p><p>Please answer the quiz: <a href=\"{{incident_url}}\">{{incident_url}}</a></p>",
	},
	{
		Type:    models.TemplateTypeUserAnswered,
		Subject: "[Security] Quiz answered: {{incident_name}}",
		Body:    "<p>{{username}} answered the quiz on {{date}}.</p>{{{quiz}}}",
	},
	{
		Type:    models.RenotifyType(1),
		Subject: "[Security] Reminder: {{incident_name}}",
		Body:    "<p>The quiz for incident {{incident.id}} is still unanswered.</p><p><a href=\"{{incident_url}}\">{{incident_url}}</a></p>",
	},
	{
		Type:    models.RenotifyType(2),
		Subject: "[Security] Reminder: {{incident_name}}",
		Body:    "<p>The quiz for incident {{incident.id}} is still unanswered.</p><p><a href=\"{{incident_url}}\">{{incident_url}}</a></p>",
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgresDB(&database.Config{DSN: cfg.Database.DSN()})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db, zl); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	incidents := incident.NewService(incident.NewRepository(db), zl)
	globalID, err := incidents.EnsureGlobalCategory(ctx, cfg.Notify.GlobalCategory)
	if err != nil {
		log.Fatalf("Failed to create global category: %v", err)
	}
	malware, err := incidents.Repository().EnsureCategory(ctx, "Malware")
	if err != nil {
		log.Fatalf("Failed to create category: %v", err)
	}

	templates := notify.NewTemplates(db, globalID)
	for _, tpl := range notificationTemplates {
		if _, found, err := templates.Global(ctx, tpl.Type); err != nil {
			log.Fatalf("Failed to look up template %q: %v", tpl.Type, err)
		} else if found {
			continue
		}
		tpl.CategoryID = globalID
		if err := templates.Create(ctx, &tpl); err != nil {
			log.Fatalf("Failed to create template %q: %v", tpl.Type, err)
		}
	}

	svc := catalog.NewService(catalog.NewRepository(db), nil, zl)
	if _, err := svc.TemplateForCategory(ctx, malware.ID); err == nil {
		log.Printf("Malware template already present, skipping")
		return
	} else if !errors.Is(err, catalog.ErrNotFound) {
		log.Fatalf("Failed to look up template: %v", err)
	}

	rebooted := &models.Question{FieldKind: models.FieldKindBoolean, WidgetKind: models.WidgetKindCheckbox, Label: "I rebooted the device"}
	unplugged := &models.Question{FieldKind: models.FieldKindBoolean, WidgetKind: models.WidgetKindCheckbox, Label: "I unplugged the network cable"}
	notes := &models.Question{FieldKind: models.FieldKindText, WidgetKind: models.WidgetKindTextArea, Label: "Anything to add?"}
	for _, q := range []*models.Question{rebooted, unplugged, notes} {
		if err := svc.CreateQuestion(ctx, q); err != nil {
			log.Fatalf("Failed to create question: %v", err)
		}
	}

	device := &models.QuestionGroup{Title: "Device", Description: "Tell us what you did with the device.", Required: true}
	if err := svc.CreateGroup(ctx, device, []catalog.OrderedQuestion{
		{QuestionID: rebooted.ID, OrderIndex: 1},
		{QuestionID: unplugged.ID, OrderIndex: 2},
	}); err != nil {
		log.Fatalf("Failed to create group: %v", err)
	}
	comments := &models.QuestionGroup{Title: "Comments"}
	if err := svc.CreateGroup(ctx, comments, []catalog.OrderedQuestion{{QuestionID: notes.ID, OrderIndex: 1}}); err != nil {
		log.Fatalf("Failed to create group: %v", err)
	}

	tpl, err := svc.CreateTemplate(ctx, &models.QuizTemplate{
		CategoryID:  malware.ID,
		Name:        "Malware quiz",
		Description: "A few questions about the infected device.",
	}, []catalog.OrderedGroup{
		{GroupID: device.ID, OrderIndex: 1},
		{GroupID: comments.ID, OrderIndex: 2},
	}, []models.UsefulLink{
		{Label: "Security policy", URL: "https://intranet.example/security", OrderIndex: 1},
	})
	if err != nil {
		log.Fatalf("Failed to create template: %v", err)
	}

	log.Printf("Seeded template %d (%s) for category %s", tpl.ID, tpl.Name, malware.Name)
}
