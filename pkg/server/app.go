package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WaveScan/internal/handler/api"
	"WaveScan/internal/handler/ws"
	mid "WaveScan/internal/middleware"
	"WaveScan/internal/usecase"
	pkgcache "WaveScan/pkg/cache"
	pkgch "WaveScan/pkg/clickhouse"
	"WaveScan/pkg/config"
	xhttp "WaveScan/pkg/http"
	pkgkafka "WaveScan/pkg/kafka"
	applogger "WaveScan/pkg/logger"
	"WaveScan/pkg/queue"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	handler    xhttp.Handler
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server

	logger      *applogger.Logger
	ops         *api.StructureHandler
	hub         *ws.Hub
	scheduler   *usecase.ScanScheduler
	watcher     *usecase.CageWatcher
	pipeline    *mid.ResultPipeline
	jobQueue    *queue.RedisQueue
	candleCache pkgcache.Service

	// Processor owns the publisher and store handles; closed on shutdown.
	Processor *usecase.ResultProcessor
}

// New creates a new App instance with the core dependencies. Optional
// components are attached with the Set methods.
func New(
	cfg *config.Config,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		handler:  handler,
		consumer: consumer,
		kh:       kh,
		chClient: chClient,
	}
}

// SetLogger attaches a shared logger. Without one Run builds its own.
func (a *App) SetLogger(l *applogger.Logger) { a.logger = l }

// SetOpsHandler attaches the plain-HTTP operational endpoints.
func (a *App) SetOpsHandler(h *api.StructureHandler) { a.ops = h }

// SetHub attaches the WebSocket broadcast hub.
func (a *App) SetHub(h *ws.Hub) { a.hub = h }

// SetScheduler attaches the periodic scan loop.
func (a *App) SetScheduler(s *usecase.ScanScheduler) { a.scheduler = s }

// SetWatcher attaches the live cage-break watcher.
func (a *App) SetWatcher(w *usecase.CageWatcher) { a.watcher = w }

// SetPipeline attaches the result pipeline so it is flushed on shutdown.
func (a *App) SetPipeline(p *mid.ResultPipeline) { a.pipeline = p }

// SetJobQueue attaches the redis queue consumer for async scans.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobQueue = q }

// SetCandleCache attaches the candle store so shutdown closes it.
func (a *App) SetCandleCache(c pkgcache.Service) { a.candleCache = c }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: a.logLevel(), Format: a.logFormat(), Output: "stdout"})
		if err != nil {
			log.Printf("logger init failed: %v", err)
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, 2*time.Second),
		xhttp.WithMetricsEndpoint(!a.cfg.Metrics.Disabled, a.cfg.Metrics.Path),
	)
	a.mountExtraRoutes()

	if a.hub != nil {
		go func() {
			if err := a.hub.Run(ctx); err != nil && err != context.Canceled {
				l.Error("ws hub error", applogger.Error(err))
			}
		}()
		l.Info("ws hub started")
	}

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			// A dead quote stream should not take the API down.
			l.Warn("cage watcher start failed", applogger.Error(err))
		} else {
			l.Info("cage watcher started")
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		l.Info("scan scheduler started", applogger.Duration("interval", a.cfg.Screener.ScanInterval))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			l.Error("job queue start error", applogger.Error(err))
		} else {
			l.Info("job queue started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// mountExtraRoutes exposes the plain-HTTP operational surface and the
// WebSocket endpoint on the shared Echo server.
func (a *App) mountExtraRoutes() {
	e := a.httpServer.Echo()

	if a.ops != nil {
		e.GET("/healthz", echo.WrapHandler(a.ops.Healthz()))
		ops := e.Group("/ops")
		ops.GET("/prefilter", echo.WrapHandler(a.ops.Prefilter()))
		ops.GET("/pivots", echo.WrapHandler(a.ops.Pivots()))
		ops.POST("/scan", echo.WrapHandler(a.ops.Scan()))
		ops.GET("/scans", echo.WrapHandler(a.ops.ScanResults()))
		ops.GET("/top", echo.WrapHandler(a.ops.Top()))
		ops.POST("/cache/purge", echo.WrapHandler(a.ops.PurgeCache()))
	}

	if a.hub != nil {
		e.GET("/ws", echo.WrapHandler(http.HandlerFunc(a.hub.HandleWS)))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			l.Warn("cage watcher stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	// Stop bounds the wait with the configured shutdown timeout.
	if err := a.httpServer.Stop(ctx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.logger != nil {
		// Flush pending log aggregates while the queue still accepts them.
		a.logger.RemoveCollector()
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.candleCache != nil {
		if err := a.candleCache.Close(); err != nil {
			l.Warn("candle cache close error", applogger.Error(err))
		}
	}

	if a.Processor != nil {
		a.Processor.Close()
	}

	l.Info("shutdown complete")
	return nil
}

func (a *App) logLevel() string {
	if a.cfg.Log.Level != "" {
		return a.cfg.Log.Level
	}
	return "info"
}

func (a *App) logFormat() string {
	if a.cfg.Log.Pretty {
		return "console"
	}
	return "json"
}
