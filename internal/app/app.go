package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sundayezeilo/linkregistry/internal/config"
	"github.com/sundayezeilo/linkregistry/internal/metrics"
	"github.com/sundayezeilo/linkregistry/internal/notify"
	"github.com/sundayezeilo/linkregistry/internal/server"
	"github.com/sundayezeilo/linkregistry/internal/shortener"
)

const natsFlushTimeout = 5 * time.Second

// App holds the application dependencies and configuration.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      Store
	Metrics    *metrics.Metrics
	Dispatcher *notify.Dispatcher
	Server     *server.Server
	Handler    *shortener.Handler

	natsConn *nats.Conn
	logFile  io.Closer
}

// New loads the environment and configuration and wires up every dependency.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile := setupLogger(cfg.App)

	a, err := Build(ctx, cfg, logger)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

// Build wires an App from an already loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"service", cfg.Metrics.ServiceName,
		"version", cfg.Metrics.ServiceVersion,
		"storage", cfg.Storage.Driver,
	)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}

	m := setupMetrics(cfg.Metrics)

	sinks, natsConn, err := setupSinks(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to set up notifications: %w", err)
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Sinks:       sinks,
		Logger:      logger,
		Metrics:     m,
		Timeout:     cfg.Notify.Timeout,
		MaxInFlight: cfg.Notify.MaxInFlight,
	})

	svc := shortener.NewService(store, &shortener.ServiceConfig{
		CodeLength:     cfg.Registry.CodeLength,
		MaxAttempts:    cfg.Registry.MaxAttempts,
		StorageTimeout: cfg.Storage.Timeout,
		ReadRetries:    cfg.Storage.ReadRetries,
		ReservedCodes:  server.ReservedCodes(cfg),
		Notifier:       dispatcher,
		Metrics:        m,
		Logger:         logger,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	srv := server.New(cfg, logger, handler, m)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"notifications", dispatcher.Enabled(),
		"metrics", cfg.Metrics.Enabled,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Metrics:    m,
		Dispatcher: dispatcher,
		Server:     srv,
		Handler:    handler,
		natsConn:   natsConn,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown waits for in-flight notifications, then releases the notifier
// connection, the storage backend and the log file in that order.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	var errs []error

	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if a.natsConn != nil {
		closeNATS(ctx, a.natsConn, a.Logger)
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		} else {
			a.Logger.Info("storage closed", "driver", a.Config.Storage.Driver)
		}
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	return errors.Join(errs...)
}

// closeNATS waits until the server has acknowledged every buffered publish,
// or until ctx expires, then closes the connection.
func closeNATS(ctx context.Context, conn *nats.Conn, logger *slog.Logger) {
	timeout := natsFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if timeout > 0 {
		if err := conn.FlushTimeout(timeout); err != nil {
			logger.Warn("nats flush incomplete, buffered click events may be lost", "error", err)
		}
	}
	conn.Close()
	logger.Info("nats connection closed")
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(".env", "../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured JSON logger. With LOG_FILE set, output
// also goes to a size-rotated file, which the caller must close.
func setupLogger(cfg config.AppConfig) (*slog.Logger, io.Closer) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var (
		out     io.Writer = os.Stdout
		closer  io.Closer
		rotated *lumberjack.Logger
	)
	if cfg.LogFile != "" {
		rotated = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeInDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotated)
		closer = rotated
	}

	handler := slog.NewJSONHandler(out, opts)
	return slog.New(handler), closer
}

// setupMetrics returns nil when metrics are disabled; every Metrics method
// is a no-op on nil.
func setupMetrics(cfg config.MetricsConfig) *metrics.Metrics {
	if !cfg.Enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg)
}

// setupSinks builds the configured notification sinks. The returned NATS
// connection, if any, is owned by the caller.
func setupSinks(cfg *config.Config, logger *slog.Logger) ([]notify.Sink, *nats.Conn, error) {
	var sinks []notify.Sink
	nc := cfg.Notify

	switch {
	case nc.TelegramEnabled():
		loc, err := nc.Location()
		if err != nil {
			return nil, nil, fmt.Errorf("load notify timezone: %w", err)
		}
		sinks = append(sinks, notify.NewTelegramSink(notify.TelegramConfig{
			APIURL:   nc.TelegramAPIURL,
			Token:    nc.TelegramBotToken,
			ChatID:   nc.TelegramChatID,
			Location: loc,
		}))
		logger.Info("telegram notifications enabled", "timezone", loc.String())

	case nc.TelegramBotToken != "" || nc.TelegramChatID != "":
		logger.Warn("telegram notifications disabled: both TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are needed")
	}

	var conn *nats.Conn
	if nc.NATSEnabled() {
		var err error
		conn, err = notify.ConnectNATS(nc.NATSURL, cfg.Metrics.ServiceName, logger)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, notify.NewNATSSink(conn, nc.NATSSubject))
		logger.Info("nats notifications enabled", "subject", nc.NATSSubject)
	}

	return sinks, conn, nil
}
