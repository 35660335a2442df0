package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maintdash/internal/config"
	"maintdash/internal/dashboard"
	"maintdash/internal/events"
	"maintdash/internal/gate"
	appLog "maintdash/internal/log"
	"maintdash/internal/notify"
	"maintdash/internal/rowstore"
	"maintdash/internal/view"
)

// env is everything a command needs, built from one config file.
type env struct {
	cfg     *config.Config
	store   *events.Store
	app     *dashboard.App
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			appLog.Error("close failed", err)
		}
	}
}

// logAlerter surfaces failed writes in the log. HTTP and CLI callers also
// get the error itself.
type logAlerter struct{}

func (logAlerter) Alert(_ context.Context, msg string) {
	appLog.Warn("alert", "message", msg)
}

func setup(ctx context.Context, flags *rootFlags) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}
	level := cfg.Log.Level
	if flags.debug {
		level = "debug"
	}
	if err := appLog.Configure(level, cfg.Log.Format); err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	rows, closer, err := openRows(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}

	opts := []events.Option{events.WithAlerter(logAlerter{})}
	if cfg.Notify.RedisAddr != "" {
		n, err := notify.NewRedis(ctx, cfg.Notify.RedisAddr, cfg.Notify.Stream)
		if err != nil {
			// The feed is optional; the dashboard works without it.
			appLog.Error("change feed disabled", err, "addr", cfg.Notify.RedisAddr)
		} else {
			opts = append(opts, events.WithNotifier(n))
			e.closers = append(e.closers, n.Close)
		}
	}

	e.store = events.NewStore(rows, opts...)
	e.app = dashboard.New(
		e.store,
		gate.New(cfg.Passcode),
		view.Options{Location: cfg.Location(), Locale: cfg.Locale},
		time.Now,
	)

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"refresh", cfg.RefreshCron,
		"backend", cfg.Backend.Driver,
		"table", cfg.Backend.Table,
		"change_feed", cfg.Notify.RedisAddr != "",
		"basic_auth", cfg.BasicAuth != nil,
	)
	return e, nil
}

// openRows builds the configured backend. The closer may be nil.
func openRows(ctx context.Context, cfg *config.Config) (rowstore.RowStore, func() error, error) {
	b := cfg.Backend
	switch b.Driver {
	case config.DriverMemory:
		appLog.Warn("using in-memory backend; data is lost on exit")
		return rowstore.NewMemory(time.Now), nil, nil

	case config.DriverPostgres, config.DriverSQLite:
		if b.DSN == "" {
			return nil, nil, fmt.Errorf("backend %s needs a dsn (or %s)", b.Driver, config.EnvDSN)
		}
		dialect := rowstore.Postgres
		if b.Driver == config.DriverSQLite {
			dialect = rowstore.SQLite
		}
		db, err := rowstore.OpenSQL(ctx, dialect, b.DSN)
		if err != nil {
			return nil, nil, err
		}
		st, err := rowstore.NewSQLStore(db, dialect, b.Table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := st.EnsureTable(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, db.Close, nil

	case config.DriverREST:
		if b.REST.URL == "" {
			return nil, nil, errors.New("backend rest needs rest.url")
		}
		st, err := rowstore.NewREST(rowstore.RESTOptions{
			BaseURL: b.REST.URL,
			APIKey:  b.REST.APIKey,
			Table:   b.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", b.Driver)
	}
}
