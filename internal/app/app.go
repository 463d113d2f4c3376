package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"jurify/internal/config"
	"jurify/internal/db"
	"jurify/internal/diagnostics"
	"jurify/internal/engine"
	"jurify/internal/migrate"
	"jurify/internal/webhook"
)

// App bundles what a command or the HTTP server needs for one workspace.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Dialect   db.Dialect
	Engine    engine.Engine
	Log       *logrus.Logger

	redis *redis.Client
}

// Open connects the database, applies migrations and wires the engine.
func Open(ctx context.Context, workspace string, cfg *config.Config, log *logrus.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, dialect, err := db.Open(db.Config{Workspace: workspace, Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	a := &App{Workspace: workspace, Config: cfg, DB: conn, Dialect: dialect, Log: log}
	sink, err := a.newSink(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.Engine = engine.New(conn, dialect, cfg, NewTransport(cfg, log), sink, log)
	return a, nil
}

// NewTransport builds the webhook transport from configuration.
func NewTransport(cfg *config.Config, log *logrus.Logger) *webhook.Transport {
	return webhook.New(webhook.Options{
		URL:              cfg.Webhook.URL,
		Origin:           cfg.Webhook.Origin,
		UserAgent:        cfg.Webhook.UserAgent,
		Timeout:          cfg.Webhook.Timeout(),
		MaxResponseBytes: cfg.Webhook.MaxResponseBytes(),
		Client:           &http.Client{},
		Logger:           log,
	})
}

func (a *App) newSink(ctx context.Context) (diagnostics.Sink, error) {
	d := a.Config.Diagnostics
	switch d.Backend {
	case "", "file":
		return diagnostics.NewFileSink(db.StateDir(a.Workspace), d.Capacity), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: d.RedisAddr, DB: d.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrapf(err, "connect redis %s", d.RedisAddr)
		}
		a.redis = client
		return diagnostics.NewRedisSink(client, d.Capacity), nil
	default:
		return nil, errors.Newf("unknown diagnostics backend %q", d.Backend)
	}
}

// Close waits for detached tasks, then releases connections.
func (a *App) Close() error {
	a.Engine.Wait()
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
