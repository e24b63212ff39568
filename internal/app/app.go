// Package app wires the reminder pipeline: store, scheduler, delivery, the
// alarm surfaces and the HTTP API.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tazhate/remora/config"
	"github.com/tazhate/remora/internal/api"
	"github.com/tazhate/remora/internal/bot"
	"github.com/tazhate/remora/internal/calendar"
	"github.com/tazhate/remora/internal/delivery"
	"github.com/tazhate/remora/internal/metrics"
	"github.com/tazhate/remora/internal/presentation"
	"github.com/tazhate/remora/internal/repository"
	"github.com/tazhate/remora/internal/scheduler"
	"github.com/tazhate/remora/internal/service"
	"github.com/tazhate/remora/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Options carries what the config file cannot: the terminal to draw the
// full-screen alarm on and the metrics sink.
type Options struct {
	// Terminal enables the full-screen alarm view on In/Out.
	Terminal bool
	In       io.Reader
	Out      io.Writer
	// BellOut receives the bell pattern when alarm.bell is set.
	BellOut io.Writer
	Metrics *metrics.Metrics
}

type App struct {
	cfg         *config.Config
	store       *storage.Storage
	permissions *scheduler.SwitchablePermissions
	gateway     *scheduler.Gateway
	alerts      *delivery.AlertController
	signals     *delivery.Signals
	unsubscribe []func()
	service     *service.ReminderService
	session     *presentation.Session
	bot         *bot.Bot
	api         *api.Server
}

func New(cfg *config.Config, opts Options) (*App, error) {
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{
		cfg:         cfg,
		store:       store,
		permissions: scheduler.NewSwitchablePermissions(cfg.Permissions.ExactAlarms, cfg.Permissions.Notifications),
		signals:     delivery.NewSignals(),
	}

	a.gateway = scheduler.New(scheduler.Config{
		Location:  cfg.Location,
		AlarmMode: cfg.Alarm.Mode,
	}, a.permissions, opts.Metrics)

	var sound delivery.Sound
	if cfg.Alarm.Bell && opts.BellOut != nil {
		sound = delivery.NewBellRinger(opts.BellOut, cfg.RingPattern())
	}
	a.alerts = delivery.NewAlertController(sound, opts.Metrics)

	receiver, unsubscribe := delivery.NewReceiver(a.gateway, a.permissions, a.alerts, a.signals, cfg.Location, opts.Metrics)
	a.unsubscribe = append(a.unsubscribe, unsubscribe)
	a.gateway.SetReceiver(receiver)

	svcOpts := service.Options{
		Location:    cfg.Location,
		GracePeriod: cfg.Live.GracePeriod,
	}
	if cfg.CalDAVEnabled() {
		svcOpts.Mirror = calendar.NewMirror(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.Calendar, cfg.Location)
		log.Printf("CalDAV mirror enabled (%s)", cfg.CalDAV.Calendar)
	}
	a.service = service.NewReminderService(repository.NewReminderRepository(store), a.gateway, svcOpts)

	if opts.Terminal {
		a.session = presentation.NewSession(a.service, a.signals, opts.In, opts.Out)
		a.session.SetMetrics(opts.Metrics)
		a.unsubscribe = append(a.unsubscribe, a.session.Follow(a.signals))
		a.gateway.AddPresenter(scheduler.SurfaceFullScreen, a.session)
	}

	if cfg.TelegramEnabled() {
		b, err := bot.New(bot.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			Location: cfg.Location,
			Metrics:  opts.Metrics,
		}, a.service, a.signals)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init bot: %w", err)
		}
		a.bot = b
		a.unsubscribe = append(a.unsubscribe, b.Follow(a.signals))
		a.gateway.AddPresenter(scheduler.SurfaceNotification, b)
	}

	a.api = api.NewServer(api.Config{
		Port:     cfg.Server.Port,
		Username: cfg.Server.Username,
		Password: cfg.Server.Password,
		Location: cfg.Location,
	}, a.service, a.gateway, a.signals)

	return a, nil
}

func (a *App) Service() *service.ReminderService { return a.service }

func (a *App) Gateway() *scheduler.Gateway { return a.gateway }

func (a *App) Signals() *delivery.Signals { return a.signals }

func (a *App) Alerts() *delivery.AlertController { return a.alerts }

func (a *App) Permissions() *scheduler.SwitchablePermissions { return a.permissions }

// Run starts every component and blocks until ctx is done or one of them
// fails. Registrations are rebuilt from the store first.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gateway.Start(ctx)
	})

	n, err := a.service.Rearm(ctx)
	if err != nil {
		log.Printf("Failed to rearm reminders: %v", err)
	} else {
		log.Printf("Rearmed %d reminders", n)
	}

	if a.bot != nil {
		g.Go(func() error {
			return a.bot.Run(ctx)
		})
	}

	g.Go(func() error {
		return a.api.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.api.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error stopping API server: %v", err)
		}
		return nil
	})

	log.Printf("Remora started (alarm mode: %s)", a.cfg.Alarm.Mode)
	err = g.Wait()
	a.gateway.Stop()
	return err
}

// Close releases everything New acquired. It is safe after a failed Run.
func (a *App) Close() {
	if a.session != nil {
		a.session.Close()
	}
	a.alerts.StopAll()
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	a.gateway.Stop()
	a.service.Close()
	if err := a.store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}
}
