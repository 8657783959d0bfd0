package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"funnypdf/internal/config"
	"funnypdf/internal/handler"
	"funnypdf/internal/middleware"
	"funnypdf/internal/repository"
	"funnypdf/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// --- Database (optional: run history + auth) ---
	var runRepo *repository.RunRepository
	var userRepo *repository.UserRepository
	if cfg.Database.URL != "" {
		db, err := repository.NewPostgresDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("connected to PostgreSQL")

		if err := repository.Seed(context.Background(), db, service.HashPassword); err != nil {
			log.Printf("warning: seed failed: %v", err)
		}

		runRepo = repository.NewRunRepository(db)
		userRepo = repository.NewUserRepository(db)
	} else {
		log.Println("DATABASE_URL not set: run history and auth disabled")
	}

	// --- Workspace ---
	workspace, err := service.NewWorkspace()
	if err != nil {
		log.Fatalf("failed to prepare workspace: %v", err)
	}
	go func() {
		for {
			workspace.CleanupOlderThan(24 * time.Hour)
			time.Sleep(time.Hour)
		}
	}()

	// --- Engine ---
	var remote service.RemoteRewriter
	if cfg.OpenAI.APIKey != "" {
		remote = service.NewOpenAIRewriter(cfg.OpenAI)
	}
	extractor := service.NewExtractor(cfg.Engine)
	rewriter := service.NewRewriteService(remote, cfg.Engine.RewriteWorkers)
	decorator := service.NewDecoratorService()
	composer := service.NewComposer(cfg.Engine, service.NewHTTPCatFetcher(cfg.Engine))
	pipeline := service.NewPipeline(extractor, rewriter, decorator, composer, cfg.Engine.RunDeadline)

	// --- Handlers ---
	funnyHandler := handler.NewFunnyHandler(pipeline, workspace, runRepo, cfg.Server.MaxUploadMB)

	// --- Router ---
	mux := http.NewServeMux()

	// Health check (no auth)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	funnyHandler.RegisterRoutes(mux)

	// Admin surface only exists with a database behind it.
	if userRepo != nil {
		authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
		authHandler := handler.NewAuthHandler(authService)
		authHandler.RegisterRoutes(mux)

		authMw := middleware.RequireAuth(cfg.JWT.Secret)
		runHandler := handler.NewRunHandler(runRepo)
		runHandler.RegisterRoutes(mux, authMw)
	}

	// --- Static upload UI ---
	staticDir := "web/static"
	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		fs := http.FileServer(http.Dir(staticDir))
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := staticDir + r.URL.Path
			if _, err := os.Stat(path); err == nil && r.URL.Path != "/" {
				fs.ServeHTTP(w, r)
				return
			}
			http.ServeFile(w, r, staticDir+"/index.html")
		})
		log.Println("serving upload UI from", staticDir)
	}

	// --- Server ---
	addr := ":" + cfg.Server.Port
	log.Printf("FunnyPDF server starting on %s", addr)

	wrappedMux := middleware.CORS(mux)
	if err := http.ListenAndServe(addr, wrappedMux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
