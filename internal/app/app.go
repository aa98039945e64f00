package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/config"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/httpserver"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/redis"
	"github.com/MrSnakeDoc/dash/internal/scheduler"
	"github.com/MrSnakeDoc/dash/internal/sources/layout"
	"github.com/MrSnakeDoc/dash/internal/store"
	"github.com/MrSnakeDoc/dash/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/dash/internal/store/redis"
	"github.com/MrSnakeDoc/dash/internal/store/sqlite"
	"github.com/MrSnakeDoc/dash/internal/version"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	repo    store.Repository
	sweeper *scheduler.CredentialSweeper
}

func New(cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Open the record store early - fail fast if unavailable
	repo, err := OpenStore(cfg, loggerClient)
	if err != nil {
		return nil, err
	}
	loggerClient.Info("store initialized successfully",
		logger.String("backend", repo.Name()))

	catalog, err := layout.Load(cfg.WidgetTemplates)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load widget templates: %w", err)
	}
	loggerClient.Info("widget templates loaded",
		logger.Int("templates", catalog.Len()),
		logger.String("file", cfg.WidgetTemplates))

	sweeper := scheduler.NewCredentialSweeper(repo, loggerClient.Named("sweeper"), cfg.SweepInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		RequestTimeout: cfg.RequestTimeout,
		CookieSecure:   cfg.CookieSecure,
		Store:          repo,
		Auth:           auth.NewManager(repo, catalog, cfg.SessionTTL, loggerClient.Named("auth")),
		Connectors:     connector.OptionsFromConfig(cfg, loggerClient.Named("connector")).Builder(),
		Catalog:        catalog,
		Sweeper:        sweeper,
		Upstreams: map[string]bool{
			"trello_api_key":  cfg.TrelloAPIKey != "",
			"trello_base_url": cfg.TrelloBaseURL != "",
			"notion_base_url": cfg.NotionBaseURL != "",
			"gmail_base_url":  cfg.GmailBaseURL != "",
		},
	}

	if cfg.TrelloAPIKey == "" {
		loggerClient.Warn("DASH_TRELLO_API_KEY is not set, task-board calls will be rejected upstream")
	}

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  httpserver.New(cfg, loggerClient, d),
		repo:    repo,
		sweeper: sweeper,
	}, nil
}

// OpenStore opens the backend selected by DASH_STORE.
func OpenStore(cfg *config.Config, loggerClient logger.Logger) (store.Repository, error) {
	switch cfg.Store {
	case config.StoreRedis:
		client, err := redis.New(redis.OptionsFromConfig(cfg), loggerClient.Named("redis"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisstore.NewStore(client), nil
	case config.StoreSQLite:
		loggerClient.Info("opening sqlite database",
			logger.String("path", cfg.SQLitePath))
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return s, nil
	default:
		loggerClient.Warn("using in-memory store, all data is lost on restart")
		return memory.New(), nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Dash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Dash %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start credential sweeper (runs once now, then periodically)
	a.sweeper.Start(ctx)
	a.logger.Info("credential sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.sweeper.Stop()
		a.closeStore()
		return err
	}

	// Stop sweeper
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.closeStore()
	a.logger.Info("✅ Dash stopped cleanly")
	return nil
}

func (a *App) closeStore() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warnf("failed to close %s store: %v", a.repo.Name(), err)
		return
	}
	a.logger.Infof("✅ %s store closed cleanly", a.repo.Name())
}
