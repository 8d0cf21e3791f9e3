package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nexus-trading/cyclelab/internal/config"
	"github.com/nexus-trading/cyclelab/internal/observability"
	"github.com/nexus-trading/cyclelab/internal/progress"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	pricesPath string
	metricsOut string

	cfg      *config.Config
	registry *observability.Registry
)

// rootCmd is the base command for the cyclelab CLI
var rootCmd = &cobra.Command{
	Use:   "cyclelab",
	Short: "Backtest and walk-forward evaluation for cycle strategies",
	Long: `cyclelab runs single backtests, parameter sweeps and walk-forward
evaluations of FLD cycle strategies over CSV price data.

Example usage:
  cyclelab backtest --config cyclelab.yaml --trades-out trades.csv
  cyclelab sweep --config cyclelab.yaml --workers 8
  cyclelab walkforward --config cyclelab.yaml --metrics-out -`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return dumpMetrics()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML configuration (defaults are used when empty)")
	pf.StringVar(&logLevel, "log-level", "", "Override logging.level")
	pf.StringVar(&logFormat, "log-format", "", "Override logging.format: json or text")
	pf.StringVar(&pricesPath, "prices", "", "Override data.prices_path")
	pf.StringVar(&metricsOut, "metrics-out", "", "Write engine metrics in Prometheus text format to this file (- for stdout)")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received, finishing in-flight work")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("prices") {
		cfg.Data.PricesPath = pricesPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cfg.Logging)
	registry = observability.EngineMetrics()

	log.Info().
		Str("config", configPath).
		Str("strategy", cfg.Strategy.Name).
		Str("prices", cfg.Data.PricesPath).
		Int("periods_per_year", cfg.Data.PeriodsPerYear).
		Msg("Configuration loaded")
	return nil
}

// setupLogging configures the global zerolog logger. Validate has already
// checked the level.
func setupLogging(lc config.LoggingConfig) {
	level, _ := zerolog.ParseLevel(lc.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro

	var logger zerolog.Logger
	if lc.Format == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	log.Logger = logger.With().
		Timestamp().
		Str("service", "cyclelab").
		Logger()
}

func newObserver() progress.Observer {
	return progress.NewMulti(
		progress.NewLogObserver(log.Logger),
		progress.NewMetricsObserver(registry),
	)
}

func dumpMetrics() error {
	if metricsOut == "" || registry == nil {
		return nil
	}
	exporter := observability.NewTextExporter(registry)
	if metricsOut == "-" {
		return exporter.Write(os.Stdout)
	}
	f, err := os.Create(metricsOut)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := exporter.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	return f.Close()
}
