package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"rocinante/internal/alert"
	"rocinante/internal/config"
	"rocinante/internal/database"
	"rocinante/internal/handler"
	"rocinante/internal/mail"
	"rocinante/internal/mw"
	"rocinante/internal/service"
	"rocinante/internal/worker"
)

func main() {
	cfg := config.New()

	// Money fields serialize as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(context.Background(), db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	// Collaborators
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom, cfg.EmailPassword)
	var notifier alert.Notifier = alert.Nop{}
	if cfg.AlertEmail != "" {
		notifier = alert.NewEmailNotifier(mailer, cfg.AlertEmail)
	}

	// Services
	authSvc := service.NewAuthService(db)
	resetSvc := service.NewResetService(db, mailer, "https://parceirodocontador.com.br/resetar-senha/")
	orderSvc := service.NewOrderService(db)
	omieClient := service.NewOmieClient(cfg.OmieAPIURL, cfg.OmieAppKey, cfg.OmieAppSecret)
	syncSvc := service.NewSyncService(omieClient, orderSvc, notifier)
	advanceSvc := service.NewAdvanceService(omieClient, orderSvc, notifier, cfg.AdvanceCategory, cfg.AdvanceAccount)

	// Worker
	syncWorker := worker.NewSyncWorker(syncSvc, cfg.SyncInterval)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/auth/register", handler.RegisterHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/auth/login", handler.LoginHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/password/request-reset", handler.RequestResetHandler(resetSvc))
	r.Post("/api/password/reset", handler.ConfirmResetHandler(resetSvc))
	r.Post("/api/webhook/omie", handler.WebhookHandler(omieClient, orderSvc))
	r.Post("/api/log", handler.FrontendLogHandler(notifier))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/auth/logout", handler.LogoutHandler())

		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc, syncSvc))
		r.Post("/api/orders/mutate", handler.MutateOrderHandler(omieClient))
		r.Post("/api/orders/advance", handler.AdvanceOrdersHandler(advanceSvc))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go syncWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
