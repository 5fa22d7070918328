// Package app assembles the daemon: config, logging, storage, timers,
// execution handler, notifier, and janitor, with hot config reload and
// systemd readiness/watchdog integration.
package app

import (
	"context"
	"fmt"
	"time"

	"appsched/internal/alarm"
	"appsched/internal/apps"
	"appsched/internal/config"
	"appsched/internal/engine"
	"appsched/internal/eventbus"
	"appsched/internal/janitor"
	"appsched/internal/keyed"
	"appsched/internal/launcher"
	"appsched/internal/notifier"
	rtsup "appsched/internal/runtime/supervisor"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store  storage.Store
	bus    eventbus.Bus
	locks  *keyed.Mutex
	dir    *apps.DesktopDirectory
	notif  *notifier.Service
	hand   *launcher.Handler
	timers *alarm.Service
	eng    *engine.Engine
	jan    *janitor.Janitor
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	st := cfg.StorageOrDefault()
	busy, err := config.ParseDurationField("storage.busy_timeout", st.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      st.Driver,
		Path:        st.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	locks := keyed.New()

	cacheTTL, err := config.ParseDurationField("apps.cache_ttl", cfg.Apps.CacheTTL)
	if err != nil {
		return nil, err
	}
	dir := apps.NewDesktopDirectory(
		log.With(logx.String("comp", "apps")),
		apps.WithDirs(cfg.Apps.Dirs),
		apps.WithCacheTTL(cacheTTL),
	)

	ncfg, sender, err := notifierSetup(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")), bus)

	hand := launcher.New(store, dir, notif, locks, bus, log.With(logx.String("comp", "launcher")))

	timers := alarm.New(log.With(logx.String("comp", "alarm")), hand.HandleFire)

	eng := engine.New(engine.Config{
		FireMissedOnRestore: cfg.Engine.FireMissedOnRestore,
	}, store, timers, locks, bus, log.With(logx.String("comp", "engine")))
	eng.SetFireFunc(hand.HandleFire)

	jopts, err := janitor.OptionsFromConfig(cfg.Janitor)
	if err != nil {
		return nil, err
	}
	jan := janitor.New(jopts, store, log)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		bus:     bus,
		locks:   locks,
		dir:     dir,
		notif:   notif,
		hand:    hand,
		timers:  timers,
		eng:     eng,
		jan:     jan,
	}, nil
}

// Engine is the scheduling API surface for presentation layers.
func (a *App) Engine() *engine.Engine { return a.eng }

// Apps exposes application discovery for presentation layers.
func (a *App) Apps() apps.Directory { return a.dir }

// Bus exposes lifecycle events for push-style UIs.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
	)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// transactional config reload: validate before commit/publish
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	a.timers.Start(a.sup.Context())
	a.notif.Start(a.sup.Context())

	// Wake timers never survive a restart; re-arm from the store before
	// declaring readiness.
	if _, err := a.eng.RestoreAll(a.sup.Context()); err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}

	if err := a.jan.Start(); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.startWatchdog()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("daemon started")
	return nil
}

// applyConfig handles a validated hot reload. Storage and engine settings
// require a restart; logging, notifier, and janitor settings apply live.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	ncfg, _, err := notifierSetup(cfg)
	if err != nil {
		// Validate() already ran; this only trips on sender construction.
		a.log.Warn("notifier config not applied", logx.Err(err))
	} else {
		prevEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		if prevEnabled && !ncfg.Enabled {
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		} else if !prevEnabled && ncfg.Enabled {
			a.log.Info("notifier enabled via config")
			a.notif.Start(a.sup.Context())
		}
	}

	a.log.Info("config reloaded")
}

// startWatchdog pings systemd's watchdog when the unit enables one.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	// Notify at half the timeout, per sd_watchdog convention.
	tick := interval / 2
	a.sup.Go0("watchdog", func(c context.Context) {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
	a.log.Debug("watchdog enabled", logx.Duration("interval", interval))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// step bounds one shutdown phase so a stuck component can't stall the
	// whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("janitor", 2*time.Second, func(c context.Context) error { a.jan.Stop(c); return nil })
	step("timers", time.Second, func(context.Context) error { a.timers.Stop(); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 2*time.Second, func(context.Context) error { return a.store.Close() })

	_ = a.logs.Close()
	a.log.Info("stopped")
	return nil
}

// notifierSetup maps the config section to the runtime notifier config and
// builds the delivery surfaces.
func notifierSetup(cfg *config.Config) (notifier.Config, notifier.Sender, error) {
	nc := cfg.NotifierOrDefault()

	retryBase, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, nil, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, nil, err
	}

	out := notifier.Config{
		Enabled:       nc.Enabled,
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}

	senders := []notifier.Sender{notifier.NewDesktopSender()}
	if t := nc.Telegram; t != nil && t.Enabled {
		tg, err := notifier.NewTelegramSender(notifier.TelegramConfig{
			Token:  t.Token,
			ChatID: t.ChatID,
		})
		if err != nil {
			return notifier.Config{}, nil, fmt.Errorf("telegram sender: %w", err)
		}
		senders = append(senders, tg)
	}
	if len(senders) == 1 {
		return out, senders[0], nil
	}
	return out, notifier.NewMultiSender(senders...), nil
}
