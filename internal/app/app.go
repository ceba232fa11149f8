package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ykvlv/time-signal/assets"
	"github.com/ykvlv/time-signal/internal/center"
	"github.com/ykvlv/time-signal/internal/config"
	"github.com/ykvlv/time-signal/internal/debounce"
	"github.com/ykvlv/time-signal/internal/domain"
	"github.com/ykvlv/time-signal/internal/engine"
	"github.com/ykvlv/time-signal/internal/power"
	"github.com/ykvlv/time-signal/internal/selection"
	"github.com/ykvlv/time-signal/internal/store"
	"github.com/ykvlv/time-signal/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	loc     *time.Location
	bot     *tgbotapi.BotAPI // nil without BOT_TOKEN
	httpSrv *http.Server

	db        *store.SQLite
	presenter center.Presenter
	center    *center.Center
	engine    *engine.Engine
	sel       *selection.Store
	trigger   *debounce.Trigger
	power     *power.Toggle
	router    *telegram.Router

	lastFlash time.Time // minute of the last flash cue

	reportMu    sync.Mutex
	soundWarned bool
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := domain.LoadZone(cfg.TZName)
	if err != nil {
		return nil, err
	}

	var bot *tgbotapi.BotAPI
	if cfg.BotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return nil, err
		}
		bot.Debug = false
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:       cfg,
		log:       log,
		loc:       loc,
		bot:       bot,
		httpSrv:   srv,
		presenter: center.NewConsolePresenter(os.Stdout),
	}, nil
}

// now is the wall clock in the configured zone.
func (a *App) now() time.Time { return time.Now().In(a.loc) }

// setup opens storage and wires the components.
func (a *App) setup(ctx context.Context) error {
	db, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return err
	}
	a.db = db
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))

	var kv store.KV = db
	if a.cfg.StoreBackend == config.BackendFile {
		fkv, err := store.OpenFileKV(a.cfg.StoreFile)
		if err != nil {
			return err
		}
		kv = fkv
		a.log.Info("selection stored in file", zap.String("path", a.cfg.StoreFile))
	}

	sounds, err := assets.Sounds()
	if err != nil {
		return err
	}
	mode, err := engine.ParseMode(a.cfg.ScheduleMode)
	if err != nil {
		return err
	}

	a.center = center.New(db, a.presenter, a.log, center.Options{
		AutoGrant:    a.cfg.AutoGrant,
		SoundEnabled: a.cfg.SoundEnabled,
		PollInterval: a.cfg.PollInterval,
		Location:     a.loc,
	})
	a.engine = engine.New(a.center, sounds,
		engine.NewFSResolver(afero.NewOsFs(), a.cfg.SoundDir),
		a.log,
		engine.Options{Mode: mode, SlotBudget: a.cfg.SlotBudget},
	)

	a.sel, err = selection.Open(ctx, kv, a.log)
	if err != nil {
		return err
	}
	// Rebuilds outlive the signal context so an edit flushed on shutdown still lands.
	rebuildCtx := context.WithoutCancel(ctx)
	a.trigger = debounce.New(a.cfg.Debounce, func() { a.rebuild(rebuildCtx) })
	a.sel.SetRescheduler(a.trigger)
	a.power = power.New(a.center, a.sel, a.engine, a.trigger, a.log)

	if a.bot != nil {
		a.router, err = telegram.NewRouter(ctx, telegram.Deps{
			Bot:       a.bot,
			Log:       a.log,
			Selection: a.sel,
			Power:     a.power,
			Engine:    a.engine,
			Sounds:    sounds,
			KV:        kv,
			Owner:     a.cfg.OwnerChatID,
			Now:       a.now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting time-signal",
		zap.String("mode", a.cfg.ScheduleMode),
		zap.String("tz", a.loc.String()),
		zap.Bool("telegram", a.bot != nil),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.setup(ctx); err != nil {
		a.log.Error("setup failed", zap.Error(err))
		if a.db != nil {
			_ = a.db.Close()
		}
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.center.Run(ctx)
	}()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	// Triggers in daily mode depend on the time of the rebuild.
	if a.sel.Enabled() {
		a.trigger.RequestReschedule()
	}

	var updCh tgbotapi.UpdatesChannel
	if a.bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updCh = a.bot.GetUpdatesChan(u)
	}

	clock := time.NewTicker(time.Second)
	defer clock.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdownReschedule()
			if a.bot != nil {
				a.bot.StopReceivingUpdates()
			}

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			wg.Wait()
			_ = a.db.Close()
			return nil

		case now := <-clock.C:
			a.checkFlash(now.In(a.loc))

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
