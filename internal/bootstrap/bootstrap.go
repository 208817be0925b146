// Package bootstrap wires the token service together: configuration,
// logging, storage, the oauth core and the HTTP transport, with an
// explicit init-step graph and graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"aegis-server-go/internal/domain/eventbus"
	"aegis-server-go/internal/domain/eventbus/infrastructure"
	"aegis-server-go/internal/domain/eventbus/repository"
	"aegis-server-go/internal/domain/oauth/accounts"
	"aegis-server-go/internal/domain/oauth/clients"
	"aegis-server-go/internal/domain/oauth/grant"
	"aegis-server-go/internal/domain/oauth/keys"
	oauthstore "aegis-server-go/internal/domain/oauth/store"
	"aegis-server-go/internal/domain/oauth/token"
	platformconfig "aegis-server-go/internal/platform/config"
	platformerrors "aegis-server-go/internal/platform/errors"
	platformlogging "aegis-server-go/internal/platform/logging"
	platformobservability "aegis-server-go/internal/platform/observability"
	platformstorage "aegis-server-go/internal/platform/storage"
	httptransport "aegis-server-go/internal/transport/http"
	httpoauth "aegis-server-go/internal/transport/http/oauth"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	keyManager            *keys.Manager
	generator             *token.Generator
	authStore             oauthstore.Store
	dispatcher            *grant.Dispatcher
	events                repository.EventRepository
}

// Run drives the whole service lifecycle: init graph, serving, shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.dispatcher == nil || state.authStore == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"oauth core not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("observability did not shut down cleanly: %v", err)
			}
		}()
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := state.authStore.Close(closeCtx); err != nil {
			logger.ErrorTag("store", "authorization store did not close cleanly: %v", err)
		}
		eventbus.Shutdown()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}
	startCleanupLoop(state, group, groupCtx)

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("bootstrap", "service stopped")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("bootstrap", "initialisation order")
	for _, step := range steps {
		logger.InfoTag("bootstrap", "  %s", step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					"dependency "+dep+" not satisfied",
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init",
			Title:     "Open database and run migrations",
			DependsOn: []string{"config:load", "logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initStorageStep,
		},
		{
			ID:        "oauth:init-core",
			Title:     "Initialise oauth core",
			DependsOn: []string{"storage:init", "observability:setup"},
			Kind:      platformerrors.KindOAuth,
			Execute:   initOAuthCoreStep,
		},
		{
			ID:        "events:subscribe",
			Title:     "Register audit event handlers",
			DependsOn: []string{"storage:init", "logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   subscribeEventsStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().WithDotEnv(true).Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init", "failed to initialise logging", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()

	logger.InfoTag("bootstrap", "logging ready [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initStorageStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindStorage,
			"storage:init",
			"config not loaded",
		)
	}

	db, err := platformstorage.Open(state.config.DB.DSN)
	if err != nil {
		return err
	}
	state.db = db

	if state.config.OAuth.Seed.Enabled {
		if err := platformstorage.Seed(db, state.config.OAuth.Seed); err != nil {
			return err
		}
		state.logger.InfoTag("storage", "seed data applied")
	}
	return nil
}

func initOAuthCoreStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil || state.db == nil {
		return platformerrors.New(
			platformerrors.KindOAuth,
			"oauth:init-core",
			"missing config/logger/database",
		)
	}

	keyManager, err := keys.NewManager()
	if err != nil {
		return err
	}
	state.keyManager = keyManager

	verifier := accounts.NewVerifier(state.db)
	registry := clients.NewRegistry(state.db)
	customizer := token.NewAccountClaims(verifier, state.logger)
	state.generator = token.NewGenerator(keyManager, state.config.OAuth.Issuer, customizer)

	authStore, err := buildAuthStore(state.config, state.db)
	if err != nil {
		return err
	}
	state.authStore = authStore

	state.dispatcher = grant.NewDispatcher(registry, verifier, state.generator, authStore, state.logger)
	return nil
}

func buildAuthStore(config *platformconfig.Config, db *gorm.DB) (oauthstore.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(config.OAuth.Store.Type))
	storeCfg := oauthstore.Config{Driver: driver}

	cleanupInterval := config.OAuth.Store.Cleanup
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}

	switch driver {
	case "", "database", oauthstore.DriverSQLite:
		storeCfg.Driver = oauthstore.DriverSQLite
		storeCfg.SQLite = &oauthstore.SQLiteConfig{DSN: config.OAuth.Store.SQLite.DSN}
	case oauthstore.DriverMemory:
		if config.OAuth.Store.Memory.Cleanup > 0 {
			cleanupInterval = config.OAuth.Store.Memory.Cleanup
		}
		storeCfg.Memory = &oauthstore.MemoryConfig{GCInterval: cleanupInterval}
	case oauthstore.DriverRedis:
		storeCfg.Redis = &oauthstore.RedisConfig{
			Addr:     config.OAuth.Store.Redis.Addr,
			Username: config.OAuth.Store.Redis.Username,
			Password: config.OAuth.Store.Redis.Password,
			DB:       config.OAuth.Store.Redis.DB,
			Prefix:   config.OAuth.Store.Redis.Prefix,
		}
		if storeCfg.Redis.Addr == "" {
			return nil, platformerrors.New(
				platformerrors.KindBootstrap,
				"oauth:init-core",
				"redis store addr is required",
			)
		}
	default:
		// Config validation already rejects unknown types; this guards
		// direct callers.
		return nil, platformerrors.New(
			platformerrors.KindBootstrap,
			"oauth:init-core",
			"unsupported authorization store type: "+driver,
		)
	}

	authStore, err := oauthstore.New(storeCfg, oauthstore.Dependencies{SQLiteDB: db})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap, "oauth:init-core", "failed to create authorization store", err)
	}
	return authStore, nil
}

func subscribeEventsStep(_ context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.db == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"events:subscribe",
			"missing logger/database",
		)
	}

	state.events = infrastructure.NewEventRepository(state.db)
	recorder := eventbus.NewAuditRecorder(state.logger, state.events)
	if err := recorder.Register(); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:subscribe", "failed to register audit handlers", err)
	}
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	httpRouter.Engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httptransport.APIResponse{
			Success: false,
			Data:    gin.H{},
			Message: "not found",
			Code:    http.StatusNotFound,
		})
	})

	oauthService, err := httpoauth.NewService(
		state.dispatcher,
		state.generator,
		state.keyManager,
		state.authStore,
		state.events,
		logger,
	)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "oauth:new-service", "failed to create oauth service", err)
	}
	if err := oauthService.Register(groupCtx, httpRouter); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "oauth:register-routes", "failed to register oauth routes", err)
	}

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: httpRouter.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "token service listening on http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "token endpoint: POST /oauth2/token")
		logger.InfoTag("HTTP", "jwks endpoint: GET /oauth2/jwks")

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

// startCleanupLoop periodically removes fully expired authorizations.
func startCleanupLoop(state *appState, g *errgroup.Group, groupCtx context.Context) {
	interval := state.config.OAuth.Store.Cleanup
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if err := state.authStore.CleanupExpired(groupCtx); err != nil {
					state.logger.WarnTag("store", "authorization cleanup failed: %v", err)
				}
			}
		}
	})
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("bootstrap", "received signal %v, cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("bootstrap", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
