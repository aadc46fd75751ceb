package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	api "github.com/mind-engage/mindengage-practice/internal/api/http"
	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/config"
	"github.com/mind-engage/mindengage-practice/internal/db"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/judge"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := practice.NewSQLStore(dbh, cfg.DBDriver)

	// --- Grading + judge ---
	runner := judge.NewHTTPClient(cfg.JudgeURL, time.Duration(cfg.JudgeTimeoutSec)*time.Second)
	grader := grading.NewDefaultGrader(grading.WithJudge(runner))

	// --- Keys + service ---
	keys := practice.NewKeyIssuer(getenvOr("KEY_SIGNING_SECRET", "practice-key-dev-secret"))
	svc := practice.NewService(store, grader, keys)

	defaults := practice.SessionConfig{
		MaxAttempts:    cfg.MaxAttempts,
		AllowReveal:    cfg.AllowReveal,
		RevealForfeits: cfg.RevealForfeits,
		TargetCount:    cfg.TargetCount,
	}

	// --- Auth ---
	secret := getenvOr("AUTH_HMAC_SECRET", "supersecret-dev-key")
	authSvc := auth.NewAuthService(secret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.Admin{
		User:     cfg.AdminUser,
		PassHash: cfg.AdminPassHash,
	}))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("session:create")).
			Post("/practice/sessions", api.CreateSessionHandler(svc, defaults))
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/practice/sessions/{sessionID}", api.GetSessionHandler(svc))

		// Generator-facing: store a public+secret payload pair.
		pr.With(rbac.Require("practice:generate")).
			Post("/practice/sessions/{sessionID}/instances", api.DeliverInstanceHandler(svc))

		// Learner flow: one endpoint for answers and reveals.
		pr.With(rbac.RequireAny("practice:submit", "practice:reveal")).
			Post("/practice/submit", api.SubmitHandler(svc))
		pr.With(rbac.Require("practice:submit")).
			Post("/practice/attempts", api.ListAttemptsHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func getenvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
