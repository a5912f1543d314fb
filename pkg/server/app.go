package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"PairWatch/internal/handler/stream"
	"PairWatch/internal/service/ratelimit"
	"PairWatch/internal/usecase"
	"PairWatch/pkg/config"
	xhttp "PairWatch/pkg/http"
	pkgkafka "PairWatch/pkg/kafka"
	applogger "PairWatch/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	monitor    *usecase.PairMonitor
	charts     *usecase.ChartSync
	hub        *stream.Hub
	limiter    *ratelimit.Limiter
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	results  pkgkafka.MessageHandler

	// closed last, in order
	closers []io.Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	monitor *usecase.PairMonitor,
	charts *usecase.ChartSync,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		monitor:    monitor,
		charts:     charts,
		hub:        hub,
		limiter:    limiter,
		httpServer: httpServer,
	}
}

// WithConsumer attaches a Kafka consumer and the handler it should run.
func (a *App) WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) *App {
	a.consumer = c
	a.results = h
	return a
}

// OnClose registers resources released after everything else has stopped.
func (a *App) OnClose(c ...io.Closer) *App {
	a.closers = append(a.closers, c...)
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	a.charts.Init(ctx)

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { a.hub.Run(ctx) })
	spawn(func() {
		Every(ctx, a.cfg.Dashboard.RefreshInterval, func(ctx context.Context) {
			if _, err := a.monitor.Refresh(ctx); err != nil && !errors.Is(err, usecase.ErrRefreshInProgress) {
				a.log.Error("scheduled refresh", applogger.Error(err))
			}
		})
	})
	spawn(func() {
		Every(ctx, a.cfg.Dashboard.ChartInterval, func(ctx context.Context) {
			if err := a.charts.Refresh(ctx); err != nil {
				a.log.Warn("scheduled chart refresh", applogger.Error(err))
			}
		})
	})
	if a.limiter != nil {
		spawn(func() {
			Every(ctx, time.Minute, func(context.Context) { a.limiter.Prune(10 * time.Minute) })
		})
	}

	if a.consumer != nil && a.results != nil {
		a.consumer.RegisterHandler(a.results)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.results.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("pairwatch started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("pairs", len(a.monitor.Pairs())),
		applogger.Int("window_size", a.charts.WindowSize()),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	err := a.shutdown(shutdownCtx)
	wg.Wait()
	return err
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
