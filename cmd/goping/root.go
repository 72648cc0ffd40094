package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgkaleda/go-echoping"
	"github.com/drgkaleda/go-echoping/config"
	"github.com/drgkaleda/go-echoping/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errInterrupted ends the process with non zero status after statistics
// were printed
var errInterrupted = errors.New("interrupted")

// flag name -> config key
var flagKeys = map[string]string{
	"count":        "count",
	"timeout":      "timeout",
	"interval":     "interval",
	"socket":       "socket",
	"size":         "payload_size",
	"strict-id":    "strict_identifier",
	"output":       "output",
	"log-level":    "log_level",
	"metrics-addr": "metrics_addr",
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "goping [flags] [host]",
		Short:         "Measure round trip time to a host with ICMP echo",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := flagOverrides(cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				overrides["host"] = args[0]
			}

			cfg, err := config.Load(cfgPath, overrides)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Level())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout(), logger)
		},
	}

	defaults := config.Default()
	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (yaml or toml)")
	f.IntP("count", "c", defaults.Count, "number of echo requests to send")
	f.DurationP("timeout", "W", defaults.Timeout, "time to wait for each reply")
	f.DurationP("interval", "i", defaults.Interval, "time between two requests")
	f.String("socket", defaults.Socket, "socket kind: raw, icmp or udp (unprivileged)")
	f.IntP("size", "s", defaults.PayloadSize, "payload bytes per request")
	f.Bool("strict-id", defaults.StrictIdentifier, "also match reply identifier, not only sequence")
	f.StringP("output", "o", defaults.Output, "output format: text, json or yaml")
	f.String("log-level", defaults.LogLevel, "log level")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// flagOverrides returns values of flags set on command line only, so that
// config file values are not shadowed by flag defaults
func flagOverrides(fs *pflag.FlagSet) (map[string]interface{}, error) {
	overrides := map[string]interface{}{}

	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}

		var val interface{}
		switch f.Value.Type() {
		case "int":
			val, err = fs.GetInt(f.Name)
		case "duration":
			val, err = fs.GetDuration(f.Name)
		case "bool":
			val, err = fs.GetBool(f.Name)
		default:
			val = f.Value.String()
		}
		overrides[key] = val
	})

	return overrides, err
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.New(reg, cfg.Host)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	ep, err := echoping.New(ctx, cfg,
		echoping.WithLogger(logger),
		echoping.WithObserver(metrics))
	if err != nil {
		return err
	}
	defer ep.Close()

	reporter := echoping.NewReporter(out, cfg.Output, cfg.Host, ep.Size())
	reporter.Start(ep.Addr())

	start := time.Now()
	sum, runErr := ep.Run(ctx, reporter)
	logger.Debug("session finished", zap.Duration("elapsed", time.Since(start)), zap.Error(runErr))

	if err := reporter.Summary(ep.Addr(), sum); err != nil {
		return err
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		return errInterrupted
	}
	if runErr != nil {
		return fmt.Errorf("ping %s: %w", cfg.Host, runErr)
	}
	return nil
}
