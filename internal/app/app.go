// Package app wires configuration, storage, the support router and the
// Telegram runtime into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/supportbot/core/bootstrap"
	corecmd "github.com/m3rciful/supportbot/core/cmd"
	"github.com/m3rciful/supportbot/core/database"
	"github.com/m3rciful/supportbot/core/logger"
	tg "github.com/m3rciful/supportbot/core/telegram"
	"github.com/m3rciful/supportbot/core/telegram/helpers"
	"github.com/m3rciful/supportbot/core/telegram/sender"
	"github.com/m3rciful/supportbot/internal/health"
	"github.com/m3rciful/supportbot/internal/keepalive"
	"github.com/m3rciful/supportbot/internal/repository"
	"github.com/m3rciful/supportbot/internal/support"
	"github.com/m3rciful/supportbot/internal/transport"
)

// App owns the long-lived components of the bot process.
type App struct {
	cfg  *Config
	db   *sqlx.DB
	repo *repository.Repository

	router *support.Router
	health *health.Server

	stopKeepAlive context.CancelFunc
	keepAliveDone chan struct{}
}

// Load adapts LoadConfig to the process runner.
func Load(path string) (corecmd.ConfigCarrier, error) {
	return LoadConfig(path)
}

// Bootstrap initializes logging and storage for a loaded configuration.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB), nil
}

func New(cfg *Config, db *sqlx.DB) *App {
	return &App{cfg: cfg, db: db, repo: repository.New(db)}
}

// TelegramRunOptions assembles the runtime: middleware chain, lifecycle
// hooks and routes.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.cfg == nil {
		return tg.RunOptions{}, errors.New("app: nil config")
	}
	core := &a.cfg.Config
	return tg.RunOptions{
		Config:            core,
		Registry:          tg.NewRegistry(),
		DispatcherOptions: sender.Options{Workers: 2},
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnPanic: a.onPanic,
		}),
		OnStart: a.start,
		Routes:  a.routes,
		OnStop:  a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt tg.Runtime) error {
	core := &a.cfg.Config
	router, err := support.NewRouter(a.repo, transport.NewMessenger(rt.Bot, rt.Dispatcher), support.NewStore(), support.Options{
		AdminID:    core.Telegram.AdminID,
		Production: core.Production(),
		Links: support.Links{
			WebsiteURL: a.cfg.Support.WebsiteURL,
			ChannelURL: a.cfg.Support.ChannelURL,
		},
		StorageName: storageName(a.cfg.Database.Driver),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := router.Reconcile(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.router = router

	if core.HTTPListenerEnabled() {
		a.health = health.NewServer(core.HTTP.Port)
		if err := a.health.Start(); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	if url := core.KeepAliveURL(); url != "" && core.Production() {
		if err := a.startKeepAlive(ctx, url); err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}
	return nil
}

func (a *App) startKeepAlive(ctx context.Context, url string) error {
	p, err := keepalive.New(keepalive.Options{
		URL:      url,
		Interval: a.cfg.KeepAlive.Interval,
		Delay:    a.cfg.KeepAlive.Delay,
	})
	if err != nil {
		return err
	}
	kctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(kctx)
	}()
	a.stopKeepAlive = cancel
	a.keepAliveDone = done
	return nil
}

func (a *App) routes(rt tg.Runtime) []tg.Route {
	h := transport.NewHandlers(a.router)
	transport.Register(rt.Registry, h)
	return transport.Routes(rt.Registry, h, a.cfg.Telegram.AdminID)
}

func (a *App) onPanic(c tele.Context, err error) {
	if a.router == nil {
		return
	}
	a.router.ReportPanic(helpers.BuildContext(c), err)
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.router != nil {
		if err := a.router.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}
	if a.stopKeepAlive != nil {
		a.stopKeepAlive()
		<-a.keepAliveDone
	}
	if a.health != nil {
		if err := a.health.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop liveness listener: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Error(ctx, "app", "shutdown.incomplete", slog.String("err", err.Error()))
	}
	return err
}

func storageName(driver string) string {
	switch driver {
	case database.DriverPostgres:
		return "PostgreSQL"
	default:
		return "SQLite"
	}
}
