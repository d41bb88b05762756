package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "charter-reporter/docs" // This is for Swagger
	"charter-reporter/internal/auth"
	"charter-reporter/internal/config"
	"charter-reporter/internal/database"
	"charter-reporter/internal/email"
	"charter-reporter/internal/export"
	"charter-reporter/internal/handlers"
	"charter-reporter/internal/logger"
	"charter-reporter/internal/mariadb"
	"charter-reporter/internal/middleware"
	"charter-reporter/internal/models"
	"charter-reporter/internal/report"
	"charter-reporter/internal/repository"
	"charter-reporter/internal/scheduler"
	"charter-reporter/internal/service"
	"charter-reporter/internal/vault"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Charter Reporter API
// @version 1.0
// @description Backend API for the Charter training compliance dashboard, reconciling LMS completions with the membership database

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	// Source database passwords come from Vault when enabled, so they never
	// live in the environment of production deployments
	if cfg.Vault.Enabled {
		vaultClient, err := vault.NewClient(&vault.Config{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			KVMount: cfg.Vault.KVMount,
		})
		if err != nil {
			slog.Error("Failed to initialize Vault client", "error", err)
			os.Exit(1)
		}

		creds, err := vaultClient.SourceCredentials(context.Background(), cfg.Vault.SecretKey)
		if err != nil {
			slog.Error("Failed to read source credentials from Vault", "error", err)
			os.Exit(1)
		}
		if password, ok := creds["moodle_password"]; ok {
			cfg.Moodle.Password = password
		}
		if password, ok := creds["woo_password"]; ok {
			cfg.Woo.Password = password
		}
		slog.Info("Source credentials loaded from Vault", "vault_addr", cfg.Vault.Address)
	}

	// Initialize application database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	migrator := database.NewMigrationExecutor(db.DB)
	if err := migrator.RunMigrations("./migrations"); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Open the external report sources (read-only MariaDB)
	factory, err := mariadb.NewFactory(&cfg.Moodle, &cfg.Woo)
	if err != nil {
		slog.Error("Failed to open report sources", "error", err)
		os.Exit(1)
	}
	defer func(factory *mariadb.Factory) {
		if err := factory.Close(); err != nil {
			slog.Error("Failed to close report sources", "error", err)
		}
	}(factory)

	slog.Info("Report sources connected")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	roleRepo := repository.NewRoleRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)
	registrationRepo := repository.NewRegistrationRepository(db.DB)
	exportLogRepo := repository.NewExportLogRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	auditService := service.NewAuditService(auditRepo)
	authSvc := service.NewAuthService(userRepo, roleRepo, sessionRepo, authService)
	registrationService := service.NewRegistrationService(registrationRepo, userRepo, roleRepo, authService, emailService, auditService)

	// Report readers and the cross-source merger
	moodleReader := report.NewMoodleReader(factory)
	wordpressReader := report.NewWordPressReader(factory)
	merger := report.NewMerger(moodleReader, wordpressReader, slog.Default())

	// Export governance
	governor := export.NewGovernor(cfg.Export.RowCap, models.RoleCharterAdmin, models.RoleRebosaAdmin)
	renderer := export.NewExcelRenderer()

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(sessionRepo, registrationRepo, roleRepo, emailService, &cfg.Scheduler)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService, sessionRepo)
	rbacMw := middleware.NewRBACMiddleware(db.DB)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	auditMw := middleware.NewAuditMiddleware(db.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authSvc, auditMw)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, auditMw)
	reportHandler := handlers.NewReportHandler(moodleReader, wordpressReader, merger)
	exportHandler := handlers.NewExportHandler(moodleReader, wordpressReader, merger, governor, renderer, userRepo, exportLogRepo, auditMw)
	userHandler := handlers.NewUserHandler(userRepo, roleRepo, auditMw, authSvc)
	auditHandler := handlers.NewAuditHandler(auditRepo, exportLogRepo)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, authSvc, auditMw)

	// Setup router
	mux := http.NewServeMux()

	anyAdmin := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(
			rbacMw.RequireAnyRole(models.RoleCharterAdmin, models.RoleRebosaAdmin)(h),
		)
	}
	charterAdmin := func(h http.HandlerFunc) http.Handler {
		return authMw.Authenticate(
			rbacMw.RequireRole(models.RoleCharterAdmin)(h),
		)
	}

	// Public routes
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("POST /api/v1/registrations/submit", registrationHandler.Submit)

	// Authenticated routes
	mux.Handle("GET /api/v1/auth/me", authMw.Authenticate(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /api/v1/users/password/change", authMw.Authenticate(http.HandlerFunc(userHandler.ChangePassword)))
	mux.Handle("GET /api/v1/users/sessions", authMw.Authenticate(http.HandlerFunc(sessionHandler.GetMySessions)))
	mux.Handle("DELETE /api/v1/users/sessions/delete-all", authMw.Authenticate(http.HandlerFunc(sessionHandler.DeleteAllMySessions)))

	// Report routes (both admin roles)
	mux.Handle("GET /api/v1/reports/moodle", anyAdmin(reportHandler.GetMoodleReport))
	mux.Handle("GET /api/v1/reports/wordpress", anyAdmin(reportHandler.GetWordPressReport))
	mux.Handle("GET /api/v1/reports/merged", anyAdmin(reportHandler.GetMergedReport))
	mux.Handle("GET /api/v1/reports/categories", anyAdmin(reportHandler.GetCategories))
	mux.Handle("GET /api/v1/reports/summary", anyAdmin(reportHandler.GetSummary))

	// Export routes (both admin roles; the governor enforces the rest)
	mux.Handle("GET /api/v1/exports/columns", anyAdmin(exportHandler.GetColumns))
	mux.Handle("GET /api/v1/exports/download", anyAdmin(exportHandler.Download))

	// Admin routes (Charter admins only)
	mux.Handle("GET /api/v1/admin/registrations/pending", charterAdmin(registrationHandler.Pending))
	mux.Handle("POST /api/v1/admin/registrations/approve", charterAdmin(registrationHandler.Approve))
	mux.Handle("POST /api/v1/admin/registrations/reject", charterAdmin(registrationHandler.Reject))
	mux.Handle("GET /api/v1/admin/users/list", charterAdmin(userHandler.ListUsers))
	mux.Handle("GET /api/v1/admin/users/get", charterAdmin(userHandler.GetUser))
	mux.Handle("POST /api/v1/admin/users/update-status", charterAdmin(userHandler.UpdateUserActiveStatus))
	mux.Handle("POST /api/v1/admin/users/assign-role", charterAdmin(userHandler.AssignRole))
	mux.Handle("POST /api/v1/admin/users/remove-role", charterAdmin(userHandler.RemoveRole))
	mux.Handle("POST /api/v1/admin/users/delete", charterAdmin(userHandler.DeleteUser))
	mux.Handle("GET /api/v1/admin/roles/list", charterAdmin(userHandler.ListRoles))
	mux.Handle("GET /api/v1/admin/audit-logs/list", charterAdmin(auditHandler.ListAuditLogs))
	mux.Handle("GET /api/v1/admin/export-logs/list", charterAdmin(auditHandler.ListExportLogs))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte(`{"status":"unhealthy","database":"error"}`)); err != nil {
				slog.Error("Failed to write health check response", "error", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`)); err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
