package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/config"
	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/httpapi"
	"github.com/DoyleJ11/golf-pickem/internal/hub"
	"github.com/DoyleJ11/golf-pickem/internal/notify"
	"github.com/DoyleJ11/golf-pickem/internal/standings"
	"github.com/DoyleJ11/golf-pickem/internal/store"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(start())
}

// start returns the process exit code.
func start() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zc.Build()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(db) }()
	if err := standings.Migrate(db); err != nil {
		return fmt.Errorf("migrate standings: %w", err)
	}

	var draftStore store.Store
	switch cfg.Store {
	case config.StoreGorm:
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate draft tables: %w", err)
		}
		draftStore = store.NewGormStore(db)
	default:
		draftStore = store.NewMemory()
	}

	clock := clockwork.NewRealClock()
	app := standings.NewApp(standings.NewRepository(db), clock, log)
	h := hub.NewHub(ctx, log)

	svc := draft.NewService(draftStore, draftStore, draft.NewSeededOrders(app, draftStore, log), cfg.Rules,
		draft.WithClock(clock),
		draft.WithLogger(log),
		draft.WithRetries(cfg.SubmitRetries),
		draft.WithListener(h),
		draft.WithListener(notify.NewTurnAlerts(notify.NewLogSender(log))),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(httpapi.Deps{Hub: h, Draft: svc, Standings: app, Log: log}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store),
			zap.String("db_driver", cfg.DBDriver),
			zap.Int("roster_cap", cfg.Rules.RosterCap),
			zap.String("format", string(cfg.Rules.Format)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.Inbox() <- hub.ShutdownHub{}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
