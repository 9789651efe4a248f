package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/backkem/mediaremote/pkg/mediaremote"
	"github.com/backkem/mediaremote/pkg/storage"
	"github.com/backkem/mediaremote/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	storePath   string
	metricsAddr string

	cfg           *mediaremote.Config
	loggerFactory *logging.DefaultLoggerFactory
	metrics       *transport.Metrics
	store         storage.Store
	metricsServer *http.Server
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "mrpctl",
		Short:         "Pair with and control MediaRemote devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configPath != "" {
				if cfg, err = mediaremote.LoadConfig(configPath); err != nil {
					return err
				}
			} else {
				cfg = mediaremote.DefaultConfig()
			}
			if storePath != "" {
				cfg.StorePath = storePath
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}

			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			loggerFactory = logging.NewDefaultLoggerFactory()
			loggerFactory.DefaultLogLevel = level

			if cfg.MetricsAddr != "" {
				metrics = transport.NewMetrics(nil)
				startMetrics(cfg.MetricsAddr)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if metricsServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				metricsServer.Shutdown(ctx)
			}
			if store != nil {
				return store.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (error, warn, info, debug, trace)")
	root.PersistentFlags().StringVar(&storePath, "store", "", "SQLite store path (default "+mediaremote.DefaultStorePath+")")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(scanCmd(), pairCmd(), verifyCmd(), accessoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

// openStore opens the SQLite store on first use.
func openStore() (storage.Store, error) {
	if store != nil {
		return store, nil
	}
	s, err := storage.NewSQLite(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	store = s
	return store, nil
}

func connConfig() transport.ConnConfig {
	return transport.ConnConfig{
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics,
		LoggerFactory:  loggerFactory,
	}
}

func startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "metrics:", err)
		}
	}()
}
