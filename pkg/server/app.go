package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SignalPilot/internal/middleware"
	"SignalPilot/internal/scheduler"
	"SignalPilot/pkg/config"
	xhttp "SignalPilot/pkg/http"
	pkgkafka "SignalPilot/pkg/kafka"
	applogger "SignalPilot/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	scheduler  *scheduler.Scheduler
	intake     *middleware.SignalIntake
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	sched *scheduler.Scheduler,
	intake *middleware.SignalIntake,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		scheduler:  sched,
		intake:     intake,
		consumer:   consumer,
		kh:         kh,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.intake.Start(ctx)

	if err := a.scheduler.RegisterAll(); err != nil {
		return err
	}
	a.scheduler.Start()
	a.logger.Info("market monitor scheduled", applogger.Duration("interval", a.cfg.Monitor.Interval))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.logger.Info("kafka signal consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops inbound traffic first, then background work. Resource
// handles are closed by the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.logger.Warn("scheduler stop error", applogger.Error(err))
	}
	a.intake.Stop()

	a.logger.Info("shutdown complete")
	return nil
}
