// cmd/server/main.go
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"buildbidz.in/internal/config"
	"buildbidz.in/internal/db"
	"buildbidz.in/internal/handlers"
	"buildbidz.in/internal/middleware"
	"buildbidz.in/internal/models"
	"buildbidz.in/internal/notify"
	"buildbidz.in/internal/payment_gateway/razorpay"
	"buildbidz.in/internal/payments"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/v2"

	_ "github.com/go-sql-driver/mysql"
)

var sessionManager *scs.SessionManager

func main() {
	configPath := "configs/config.yaml"
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.AppEnv)
	slog.Info("Starting BuildBidz server...", "app_env", cfg.AppEnv)

	err = db.InitDB(cfg)
	if err != nil {
		slog.Error("Fatal: failed to initialize database", "error", err)
		os.Exit(1)
	}
	if db.DB != nil {
		defer db.DB.Close()
	} else {
		slog.Error("Fatal: DB connection is nil after InitDB")
		os.Exit(1)
	}
	slog.Info("Database initialized and migrations applied.")

	sessionManager = scs.New()
	sessionManager.Store = mysqlstore.New(db.DB)
	sessionManager.Lifetime = 24 * time.Hour
	sessionManager.Cookie.Name = "buildbidz_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = cfg.AppEnv == "production"
	sessionManager.Cookie.Path = "/"

	slog.Info("Session manager initialized", "store", "mysqlstore", "lifetime", sessionManager.Lifetime, "secure_cookie", sessionManager.Cookie.Secure)

	hub := notify.NewHub()
	notify.StartLogSink(hub)

	gatewayClient := razorpay.NewClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.KeyID,
		cfg.Gateway.KeySecret,
		cfg.Gateway.Timeout(),
	)
	paymentStore := db.NewPaymentStore(db.DB)
	paymentService := payments.NewService(paymentStore, gatewayClient, hub, cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)

	authHandlers := handlers.NewAuthHandlers(sessionManager, cfg)
	projectHandlers := handlers.NewProjectHandlers(cfg, hub)
	bidHandlers := handlers.NewBidHandlers(cfg, hub)
	paymentHandlers := handlers.NewPaymentHandlers(paymentService, paymentStore, cfg)
	messageHandlers := handlers.NewMessageHandlers(hub)
	documentHandlers := handlers.NewDocumentHandlers()

	mainMux := http.NewServeMux()

	// Middleware
	injectUserMiddleware := middleware.InjectUserData(sessionManager)
	requireAuthMiddleware := middleware.RequireAuthentication(sessionManager)
	requireBuyerMiddleware := middleware.RequireRole(models.RoleCompany, models.RoleNGO)
	rateLimit := func(h http.Handler) http.Handler {
		return middleware.RateLimitMiddleware(h, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	// Auth Routes
	mainMux.Handle("/api/register", rateLimit(http.HandlerFunc(authHandlers.RegisterHandler)))
	mainMux.Handle("/api/login", rateLimit(http.HandlerFunc(authHandlers.LoginHandler)))
	mainMux.HandleFunc("/api/logout", authHandlers.LogoutHandler)
	mainMux.Handle("/api/me", requireAuthMiddleware(http.HandlerFunc(authHandlers.MeHandler)))

	// Project Routes
	mainMux.Handle("/api/projects", injectUserMiddleware(http.HandlerFunc(projectHandlers.ProjectsHandler)))
	mainMux.Handle("/api/projects/detail", injectUserMiddleware(http.HandlerFunc(projectHandlers.ProjectDetailHandler)))
	mainMux.Handle("/api/projects/status", requireAuthMiddleware(http.HandlerFunc(projectHandlers.UpdateProjectStatusHandler)))
	mainMux.Handle("/api/projects/award", requireAuthMiddleware(requireBuyerMiddleware(http.HandlerFunc(projectHandlers.AwardProjectHandler))))

	// Bid Routes
	mainMux.Handle("/api/bids", injectUserMiddleware(http.HandlerFunc(bidHandlers.BidsHandler)))
	mainMux.Handle("/api/bids/withdraw", requireAuthMiddleware(http.HandlerFunc(bidHandlers.WithdrawBidHandler)))

	// Payment Routes (the webhook is registered on the top-level mux, outside
	// sessions and CSRF, because the gateway cannot carry either).
	mainMux.Handle("/api/payments/create-order", rateLimit(requireAuthMiddleware(requireBuyerMiddleware(http.HandlerFunc(paymentHandlers.CreateOrderHandler)))))
	mainMux.Handle("/api/payments/verify", rateLimit(requireAuthMiddleware(http.HandlerFunc(paymentHandlers.VerifyHandler))))
	mainMux.Handle("/api/payments", requireAuthMiddleware(http.HandlerFunc(paymentHandlers.ListPaymentsHandler)))
	mainMux.Handle("/api/payments/detail", requireAuthMiddleware(http.HandlerFunc(paymentHandlers.PaymentDetailHandler)))

	// Message Routes
	mainMux.Handle("/api/messages", requireAuthMiddleware(http.HandlerFunc(messageHandlers.MessagesHandler)))
	mainMux.Handle("/api/messages/read", requireAuthMiddleware(http.HandlerFunc(messageHandlers.MarkMessageReadHandler)))

	// Document Routes
	mainMux.Handle("/api/documents", requireAuthMiddleware(http.HandlerFunc(documentHandlers.DocumentsHandler)))

	// Dashboard
	mainMux.Handle("/api/dashboard/stats", requireAuthMiddleware(http.HandlerFunc(handlers.DashboardStatsHandler)))

	csrfProtectedRoutes := middleware.NoSurfMiddleware(mainMux, cfg.AppEnv == "production")

	// Top Level Mux
	topLevelMux := http.NewServeMux()
	topLevelMux.HandleFunc("/healthz", handlers.HealthHandler)
	topLevelMux.Handle("/api/payments/webhook", rateLimit(http.HandlerFunc(paymentHandlers.WebhookHandler)))
	topLevelMux.Handle("/", csrfProtectedRoutes)

	finalHandler := sessionManager.LoadAndSave(topLevelMux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("BuildBidz server listening", "address", fmt.Sprintf("http://localhost%s", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  240 * time.Second,
	}

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Fatal: failed to start HTTP server", "address", addr, "error", err)
		os.Exit(1)
	}
}
