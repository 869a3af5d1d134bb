package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/bufferlab/internal/config"
	"github.com/Iron-Ham/bufferlab/internal/event"
	"github.com/Iron-Ham/bufferlab/internal/logging"
	"github.com/Iron-Ham/bufferlab/internal/metrics"
	"github.com/Iron-Ham/bufferlab/internal/report"
)

// environment bundles what every experiment command needs.
type environment struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	metrics *metrics.Metrics
	out     *report.Writer
	format  report.Format

	stopMetrics context.CancelFunc
	metricsErr  chan error
}

func newEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	var logger *logging.Logger
	if cfg.Logging.Dir != "" {
		logger, err = logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	} else {
		logger = logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging.Level)
	}
	logger = logger.With("command", cmd.Name())

	env := &environment{
		cfg:     cfg,
		logger:  logger,
		bus:     event.NewBus(logger),
		metrics: metrics.New(cfg.Metrics.Namespace),
		out:     report.New(cmd.OutOrStdout(), format),
		format:  format,
	}
	env.metrics.Subscribe(env.bus)
	env.bus.Subscribe(event.TypeWorkerFailed, func(e event.Event) {
		if wf, ok := e.(event.WorkerFailedEvent); ok {
			logger.Warn("worker failed", "pool", wf.Pool, "worker", wf.Worker, "error", wf.Err.Error())
		}
	})

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "file", used)
		viper.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("config file changed; new values apply to the next run", "file", e.Name, "op", e.Op.String())
		})
		viper.WatchConfig()
	}

	if addr := cfg.Metrics.Addr; addr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		env.stopMetrics = cancel
		env.metricsErr = make(chan error, 1)
		go func() {
			env.metricsErr <- env.metrics.Serve(ctx, addr, logger)
		}()
	}
	return env, nil
}

func (e *environment) Close() error {
	if e.stopMetrics != nil {
		e.stopMetrics()
		if err := <-e.metricsErr; err != nil {
			e.logger.Error("metrics server failed", "error", err.Error())
		}
	}
	return e.logger.Close()
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
