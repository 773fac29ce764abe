package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/config"
	httptransport "github.com/example/focusguard/internal/http"
	"github.com/example/focusguard/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	userRepo := sqlite.NewUserRepository(storage)
	authSessionRepo := sqlite.NewAuthSessionRepository(storage)
	// The app repository serves both the catalog and the user-app links;
	// the circle repository also stores the activity feed.
	appRepo := sqlite.NewAppRepository(storage)
	scheduleRepo := sqlite.NewAppScheduleRepository(storage)
	focusSessionRepo := sqlite.NewFocusSessionRepository(storage)
	usageRepo := sqlite.NewUsageRepository(storage)
	circleRepo := sqlite.NewCircleRepository(storage)
	friendRepo := sqlite.NewFriendRepository(storage)

	integrity := application.NewIntegrityChecker(userRepo, appRepo, circleRepo, logger)

	accountService, err := application.NewAccountService(userRepo, authSessionRepo, idGenerator, tokenGenerator, now, cfg.SessionTTL, logger)
	if err != nil {
		fatal(logger, "account service init failed", err)
	}
	reconciler, err := application.NewUsageReconciler(usageRepo, userRepo, integrity, now, logger)
	if err != nil {
		fatal(logger, "usage reconciler init failed", err)
	}
	sessionEngine, err := application.NewSessionEngine(focusSessionRepo, circleRepo, reconciler, integrity, idGenerator, now, cfg.TickPeriod, logger)
	if err != nil {
		fatal(logger, "session engine init failed", err)
	}
	defer sessionEngine.Shutdown()

	scheduleService, err := application.NewScheduleService(scheduleRepo, integrity, idGenerator, now, logger)
	if err != nil {
		fatal(logger, "schedule service init failed", err)
	}
	catalogService, err := application.NewAppCatalogService(appRepo, appRepo, integrity, idGenerator, now, logger)
	if err != nil {
		fatal(logger, "app catalog service init failed", err)
	}
	coordinator, err := application.NewRelationshipCoordinator(circleRepo, friendRepo, circleRepo, integrity, idGenerator, now, logger)
	if err != nil {
		fatal(logger, "relationship coordinator init failed", err)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(accountService, logger),
		Apps:      httptransport.NewAppsHandler(catalogService, logger),
		Schedules: httptransport.NewScheduleHandler(scheduleService, logger),
		Focus:     httptransport.NewFocusHandler(sessionEngine, logger),
		Usage:     httptransport.NewUsageHandler(reconciler, logger),
		Social:    httptransport.NewSocialHandler(coordinator, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireSession(accountService, httptransport.PublicPath, logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("focusguard API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		// crypto/rand failure is unrecoverable for token issuance.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
