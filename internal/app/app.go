package app

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

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/config"
	"printer-fieldops/internal/database"
	"printer-fieldops/internal/event"
	"printer-fieldops/internal/handler"
	"printer-fieldops/internal/middleware"
	"printer-fieldops/internal/model"
	"printer-fieldops/internal/notify"
	"printer-fieldops/internal/objectstore"
	"printer-fieldops/internal/repository"
	"printer-fieldops/internal/router"
	"printer-fieldops/internal/service"
)

const (
	attemptPurgeInterval  = 10 * time.Minute
	attemptPurgeRetention = 24 * time.Hour
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		slog.Error("auth secrets missing; dependent routes will answer SERVICE_MISCONFIGURED", "missing", missing)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.Database.URL, database.PoolOptions{
		MaxConns:       cfg.Database.MaxConns,
		MinConns:       cfg.Database.MinConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{cfg: cfg, cleanupFuncs: []func(){db.Close}}

	if err := db.Migrate(ctx); err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	attemptRepo := repository.NewLoginAttemptRepository(pool)
	deviceTokenRepo := repository.NewDeviceTokenRepository(pool)
	installationRepo := repository.NewInstallationRepository(pool)
	incidentRepo := repository.NewIncidentRepository(pool)
	slog.Info("database ready")

	hasher, err := auth.NewHasher(cfg.Auth.PBKDF2Iterations)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	a.cleanupFuncs = append(a.cleanupFuncs, cancelJobs)

	var limiter service.LoginLimiter
	switch cfg.Auth.LoginAttemptStore {
	case config.AttemptStorePostgres:
		limiter = auth.NewLoginLimiter(attemptRepo)
		go service.StartAttemptPurgeTicker(jobsCtx, attemptRepo, attemptPurgeInterval, attemptPurgeRetention)
	case config.AttemptStoreMemory:
		slog.Warn("login attempts kept in memory; lockouts are per-process and lost on restart")
		limiter = auth.NewLoginLimiter(auth.NewMemoryAttemptStore())
	case config.AttemptStoreDisabled:
		slog.Warn("login rate limiting disabled by LOGIN_ATTEMPT_STORE=disabled")
	}

	auditService := service.NewAuditService(auditRepo)
	gate := auth.NewGate()
	authService := service.NewAuthService(userRepo, hasher, limiter, auditService, service.AuthOptions{
		SessionSecret:   cfg.Auth.SessionSecret,
		DeviceSecret:    cfg.Auth.DeviceHMACSecret,
		BootstrapSecret: cfg.Auth.BootstrapSecret,
	})
	userService := service.NewUserService(userRepo, hasher, gate, auditService)
	deviceService := service.NewDeviceService(deviceTokenRepo)

	bus := event.NewBus()

	var presigner service.PhotoPresigner
	if cfg.ObjectStorageEnabled() {
		p, err := objectstore.NewPresigner(ctx, cfg.Storage)
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		presigner = p
		slog.Info("object storage ready", "bucket", cfg.Storage.Bucket)
	} else {
		slog.Warn("object storage not configured; photo upload URLs are unavailable")
	}

	if cfg.MQTT.BrokerURL != "" {
		publisher, err := notify.Connect(cfg.MQTT)
		if err != nil {
			// Incident intake must not depend on the push gateway.
			slog.Error("mqtt unavailable; critical incidents will not be pushed", "broker", cfg.MQTT.BrokerURL, "error", err)
		} else {
			a.cleanupFuncs = append(a.cleanupFuncs, publisher.Close)
			notifier := notify.NewNotifier(bus, publisher, deviceTokenRepo, cfg.MQTT.Topic)
			go notifier.Run(jobsCtx)
			slog.Info("incident notifier ready", "broker", cfg.MQTT.BrokerURL, "topic", cfg.MQTT.Topic)
		}
	}

	fieldService := service.NewFieldService(installationRepo, incidentRepo, presigner, bus)
	credentialService := service.NewCredentialService(model.CloudCredentials{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})

	appRouter := router.New(
		cfg,
		db.Health,
		middleware.NewAuthMiddleware(authService, authService, gate),
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService),
		handler.NewAuditHandler(auditService),
		handler.NewDeviceHandler(deviceService),
		handler.NewFieldHandler(fieldService),
		handler.NewCredentialsHandler(credentialService),
	)

	a.server = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return a, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// cleanup releases resources in reverse order of acquisition.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
