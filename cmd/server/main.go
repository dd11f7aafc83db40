package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"incident-quiz/internal/auth"
	"incident-quiz/internal/catalog"
	"incident-quiz/internal/config"
	"incident-quiz/internal/directory"
	"incident-quiz/internal/form"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/notify"
	"incident-quiz/internal/quiz"
	"incident-quiz/internal/renotify"
	"incident-quiz/internal/router"
	"incident-quiz/internal/watchlist"
	"incident-quiz/pkg/cache"
	"incident-quiz/pkg/database"
	"incident-quiz/pkg/logger"
	"incident-quiz/pkg/websocket"
)

func main() {
	// Load environment variables
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

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(&database.Config{DSN: cfg.Database.DSN()})
	if err != nil {
		return err
	}
	if err := database.Migrate(db, zl); err != nil {
		return err
	}

	redisClient := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Warn("Redis unreachable, template cache and renotify lock will fail", zap.Error(err))
	}
	templateCache := cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)

	hub := websocket.NewHub(cfg.Server.AllowedOrigins, zl.Named("ws"))
	go hub.Run(ctx)

	// Incidents and the global template category
	incidents := incident.NewService(incident.NewRepository(db), zl.Named("incident"))
	globalID, err := incidents.EnsureGlobalCategory(ctx, cfg.Notify.GlobalCategory)
	if err != nil {
		return err
	}

	// Quiz catalog and state machine
	order := form.Ascending
	if cfg.Quiz.Descending {
		order = form.Descending
	}
	catalogService := catalog.NewService(catalog.NewRepository(db), templateCache, zl.Named("catalog"))
	quizService := quiz.NewService(quiz.NewRepository(db), incidents, catalogService, order, zl.Named("quiz"))

	// Mail and directory
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		User:     cfg.Mail.User,
		Password: cfg.Mail.Password,
	}, zl.Named("mail"))
	alerter := notify.NewAdminAlerter(mailer, cfg.Mail.From, cfg.Mail.Admins)

	var retrier *directory.Retrier
	if cfg.LDAP.Enabled {
		client := directory.NewLDAPClient(directory.LDAPConfig{
			URL:          cfg.LDAP.URL,
			BindDN:       cfg.LDAP.BindDN,
			BindPassword: cfg.LDAP.BindPassword,
			UserBase:     cfg.LDAP.UserBase,
			GroupBase:    cfg.LDAP.GroupBase,
			Timeout:      cfg.LDAP.Timeout,
		})
		retrier = directory.NewRetrier(client, alerter, cfg.LDAP.Retries, cfg.LDAP.RetryDelay, zl.Named("ldap"))
	}
	recipients := directory.NewResolver(incidents.Repository(), retrier, directory.Options{
		Enabled:    cfg.LDAP.Enabled,
		ViewerRole: cfg.Notify.ViewerRole,
	}, zl.Named("directory"))

	// Notifications
	templates := notify.NewTemplates(db, globalID)
	renderer := notify.NewRenderer(cfg.Notify.TimeZone, cfg.Notify.DateLayout)
	notifier := notify.NewNotifier(templates, renderer, quizService, recipients, mailer, cfg.Mail.From, zl.Named("notify"))

	incidents.Observe(notifier)
	incidents.Observe(incident.PublishComments(hub))
	quizService.Observe(quiz.CommentOnAnswer(incidents))
	quizService.Observe(quiz.PublishAnswers(hub))

	watchlistService := watchlist.NewService(watchlist.NewRepository(db), quizService, incidents, cfg.Server.PublicURL, zl.Named("watchlist"))

	authService := auth.NewService(auth.NewRepository(db), cfg.JWT.Secret, cfg.JWT.Expire, zl.Named("auth"))

	// Renotification
	if cfg.Renotify.Enabled {
		job := renotify.NewJob(incidents, templates, cache.NewLock(redisClient), cfg.Renotify.ThresholdDays, cfg.Renotify.LockTTL, zl.Named("renotify"))
		scheduler, err := renotify.NewScheduler(job, cfg.Renotify.Schedule, zl.Named("renotify"))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	handler := router.New(&router.Container{
		Auth:           authService,
		Catalog:        catalogService,
		Quiz:           quizService,
		Watchlist:      watchlistService,
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            zl,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server shutdown gracefully")
	return nil
}
