package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/config"
	"github.com/crucial707/mydiary/internal/handlers"
	"github.com/crucial707/mydiary/internal/mail"
	"github.com/crucial707/mydiary/internal/metrics"
	"github.com/crucial707/mydiary/internal/middleware"
	"github.com/crucial707/mydiary/internal/repo"
	"github.com/crucial707/mydiary/internal/session"
	"github.com/crucial707/mydiary/internal/storage"
)

// app holds the long-lived dependencies the router is built from.
type app struct {
	cfg      config.Config
	db       *sql.DB
	accounts *auth.Service
	sessions session.Store
	images   storage.ImageStore
	checks   map[string]handlers.Pinger
	closers  []func() error
}

// newApp selects session, image and mail backends from cfg.
func newApp(ctx context.Context, cfg config.Config, database *sql.DB) (*app, error) {
	a := &app{
		cfg:    cfg,
		db:     database,
		checks: map[string]handlers.Pinger{"db": database},
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := session.NewRedisStore(rdb, cfg.SessionTTL)
		a.sessions = store
		a.checks["redis"] = handlers.PingFunc(store.Ping)
		a.closers = append(a.closers, rdb.Close)
		slog.Info("sessions: redis", "addr", cfg.RedisAddr)
	} else {
		a.sessions = session.NewMemoryStore(cfg.SessionTTL)
		slog.Info("sessions: in-memory")
	}

	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.images = store
		slog.Info("images: s3", "bucket", cfg.S3Bucket)
	} else {
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.images = store
		slog.Info("images: local", "dir", cfg.UploadDir)
	}

	var mailer mail.Mailer = mail.LogMailer{ShowTokens: cfg.Env != "prod"}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
	}

	svc, err := auth.NewService(
		repo.NewUserRepo(database),
		repo.NewResetTokenRepo(database),
		auth.SQLTransactor{DB: database},
		auth.NewBcryptHasher(cfg.BcryptCost),
		mailer,
		auth.Options{
			ResetTokenTTL: cfg.ResetTokenTTL(),
			ResetBaseURL:  cfg.ResetBaseURL,
			Audit:         repo.NewAuditRepo(database),
			Observe:       metrics.ObservePasswordReset,
		},
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("account service: %w", err)
	}
	a.accounts = svc
	return a, nil
}

// Close waits for pending reset emails and releases backend clients.
func (a *app) Close() error {
	if a.accounts != nil {
		a.accounts.Wait()
	}
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ==========================
// Router
// ==========================
func newRouter(a *app) http.Handler {
	cfg := a.cfg
	secret := []byte(cfg.JWTSecret)
	audit := repo.NewAuditRepo(a.db)

	authH := &handlers.AuthHandler{
		Accounts:     a.accounts,
		Sessions:     a.sessions,
		Secret:       secret,
		TokenTTL:     cfg.JWTExpiry(),
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure || cfg.TLSCertFile != "",
	}
	userH := &handlers.UserHandler{Accounts: a.accounts, Audit: audit}
	diaryH := &handlers.DiaryHandler{
		Repo:         repo.NewDiaryRepo(a.db),
		Images:       a.images,
		Audit:        audit,
		UploadPrefix: cfg.UploadPrefix,
	}
	uploadH := &handlers.UploadHandler{Images: a.images}
	healthH := &handlers.HealthHandler{Checks: a.checks}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Authenticate(a.sessions, secret))
	r.Use(middleware.RequestLog)

	r.Get("/health", healthH.Health)
	r.Get("/ready", healthH.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/"+uploadPrefix(cfg)+"/{key}", uploadH.Serve)

	r.Route("/api/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthRateLimiter(cfg.TrustProxy).Middleware)
			r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))
			r.Post("/signup", authH.Signup)
			r.Post("/login", authH.Login)
			r.Post("/token", authH.Token)
			r.Post("/find-id", userH.FindID)
			r.Post("/request-password-reset", userH.RequestPasswordReset)
			r.Post("/reset-password", userH.ResetPassword)
		})
		r.Post("/logout", authH.Logout)
		r.Get("/check-username/{username}", userH.CheckUsername)
		r.Get("/check-email", userH.CheckEmail)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/me", authH.Me)
			r.Get("/me/activity", userH.Activity)
		})
	})

	r.Route("/diaries", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", diaryH.ListDiaries)
		r.With(middleware.MaxBytes(cfg.MaxUploadBytes)).Post("/", diaryH.CreateDiary)
		r.Get("/{id}", diaryH.GetDiary)
		r.With(middleware.MaxBytes(middleware.DefaultMaxBodyBytes)).Patch("/{id}", diaryH.UpdateDiary)
		r.Delete("/{id}", diaryH.DeleteDiary)
	})

	return r
}

func uploadPrefix(cfg config.Config) string {
	p := strings.Trim(cfg.UploadPrefix, "/")
	if p == "" {
		return "uploads"
	}
	return p
}
