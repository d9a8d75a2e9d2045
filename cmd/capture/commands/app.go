package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benvon/capture/internal/auth"
	"github.com/benvon/capture/internal/clipboard"
	"github.com/benvon/capture/internal/config"
	"github.com/benvon/capture/internal/coordinator"
	"github.com/benvon/capture/internal/database"
	"github.com/benvon/capture/internal/gateway"
	"github.com/benvon/capture/internal/localstore"
	"github.com/benvon/capture/internal/logger"
	"github.com/benvon/capture/internal/models"
	"github.com/benvon/capture/internal/pending"
	"github.com/benvon/capture/internal/queue"
	"github.com/benvon/capture/internal/retry"
	"github.com/benvon/capture/internal/session"
	"github.com/benvon/capture/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const serviceName = "capture"

// App is the wired client: local storage, optional remote sync, session and state.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	KV          localstore.KeyValueStore
	DB          *database.DB
	Pending     *pending.Queue
	Provider    auth.Provider
	Feed        queue.Feed
	Coordinator *coordinator.Coordinator
	Session     *session.Controller
	Out         io.Writer

	closers []func() error
}

// Open wires every component from cfg and waits for the session to settle.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer, bell bool) (*App, error) {
	app := &App{Config: cfg, Logger: log, Out: out}

	app.initTracing(ctx)

	kv, err := openKV(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.KV = kv
	if c, ok := kv.(io.Closer); ok {
		app.closers = append(app.closers, c.Close)
	}

	keys := localstore.NewKeys(cfg.KeyPrefix)
	store := localstore.NewStore(kv, keys, log).WithDefaultPriority(models.Priority(cfg.DefaultPriority))
	pendingQueue := pending.NewQueue(kv, keys, log)
	app.Pending = pendingQueue

	deps := coordinator.Deps{
		Store:     store,
		Pending:   pendingQueue,
		Clipboard: clipboard.System{},
	}

	app.Provider = auth.Disabled{}
	if cfg.RemoteConfigured() {
		provider, err := auth.NewOIDCProvider(auth.OIDCOptions{
			Issuer:       cfg.Auth.Issuer,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			JWKSURL:      cfg.Auth.JWKSURL,
			SignupURL:    cfg.Auth.SignupURL,
			Audience:     cfg.Auth.Audience,
			StorageKey:   cfg.KeyPrefix + "auth-session",
		}, kv, log)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to configure auth provider: %w", err)
		}
		app.Provider = provider

		if remote := app.openRemote(cfg); remote != nil {
			deps.Remote = remote
		}
	} else {
		log.Debug("remote_sync_not_configured")
	}

	app.Feed = app.openFeed(ctx, cfg)
	deps.Publisher = app.Feed

	opts := coordinator.Options{
		Retry: retry.Options{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
		},
		MirrorTimeout:   cfg.MirrorTimeout,
		DefaultPriority: models.Priority(cfg.DefaultPriority),
		DeviceID:        deviceID(kv, cfg.KeyPrefix, log),
	}
	if bell {
		opts.Feedback = func(string) { fmt.Fprint(os.Stderr, "\a") }
	}
	app.Coordinator = coordinator.New(deps, opts, log)

	app.Session = session.NewController(app.Provider, app.Coordinator, session.Options{
		Watchdog:    cfg.SessionWatchdog,
		LoadTimeout: cfg.FetchTimeout + cfg.MirrorTimeout,
	}, log)
	app.Session.Start()
	app.closers = append(app.closers, func() error {
		app.Session.Teardown()
		<-app.Session.Done()
		return nil
	})

	readyCtx, cancel := context.WithTimeout(ctx, cfg.SessionWatchdog+cfg.FetchTimeout+cfg.MirrorTimeout)
	state, err := app.Session.WaitReady(readyCtx)
	cancel()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("session did not become ready: %w", err)
	}
	log.Debug("client_ready", zap.String("state", string(state)))

	return app, nil
}

func openKV(cfg *config.Config) (localstore.KeyValueStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return localstore.NewMemoryKV(), nil
	case config.StoreRedis:
		kv, err := localstore.NewRedisKV(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		return kv, nil
	default:
		kv, err := localstore.OpenSQLite(localstore.DefaultSQLitePath(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		return kv, nil
	}
}

// openRemote connects to the remote store. An unreachable store is not fatal: the client
// runs in local mode and the pending queue holds new records until the next sync.
func (a *App) openRemote(cfg *config.Config) *gateway.Gateway {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		a.Logger.Warn("remote_store_unavailable",
			zap.String("database_url", logger.SanitizeURL(cfg.DatabaseURL)),
			zap.String("error", logger.SanitizeError(err)))
		return nil
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	a.Logger.Debug("connected_to_database", zap.String("database_url", logger.SanitizeURL(cfg.DatabaseURL)))
	return gateway.New(database.NewRepositories(db), gateway.Options{FetchTimeout: cfg.FetchTimeout}, a.Logger)
}

func (a *App) openFeed(ctx context.Context, cfg *config.Config) queue.Feed {
	if cfg.RabbitMQURL == "" {
		return queue.NopFeed{}
	}

	feed, err := retry.WithRetry(ctx, retry.Options{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Logger:      a.Logger,
		Name:        "connect_rabbitmq",
	}, func(context.Context) (*queue.RabbitMQFeed, error) {
		return queue.NewRabbitMQFeed(cfg.RabbitMQURL)
	})
	if err != nil {
		a.Logger.Warn("change_feed_unavailable",
			zap.String("rabbitmq_url", logger.SanitizeURL(cfg.RabbitMQURL)),
			zap.String("error", logger.SanitizeError(err)))
		return queue.NopFeed{}
	}

	a.closers = append(a.closers, feed.Close)
	a.Logger.Debug("connected_to_rabbitmq")
	return feed
}

func (a *App) initTracing(ctx context.Context) {
	cfg := a.Config
	if !cfg.OTELEnabled {
		return
	}
	if cfg.OTELEndpoint == "" {
		a.Logger.Warn("otel_enabled_but_endpoint_not_configured")
		return
	}

	tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		a.Logger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return
	}
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return telemetry.Shutdown(shutdownCtx, tp)
	})
}

// Close releases everything Open acquired, in reverse order.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("failed_to_close_resources", zap.Error(err))
	}
}

// deviceID returns this installation's id, creating it on first use.
func deviceID(kv localstore.KeyValueStore, prefix string, log *zap.Logger) string {
	key := prefix + "device-id"
	if id, found, err := kv.Get(key); err == nil && found && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	id := uuid.NewString()
	if err := kv.Set(key, id); err != nil {
		log.Warn("failed_to_persist_device_id", zap.Error(err))
	}
	return id
}
