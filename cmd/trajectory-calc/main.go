package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iwvelando/trajectory-calc/internal/config"
	"github.com/iwvelando/trajectory-calc/internal/presets"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Fail early rather than on the first log write.
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		cfg.OutputPaths = []string{loggingConfig.OutputFile}
		cfg.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return cfg.Build()
}

// app carries the state shared by every subcommand once the root command has
// loaded configuration.
type app struct {
	configPath   string
	logLevel     string
	outputFormat string

	conf    *config.Configuration
	logger  *zap.Logger
	catalog *presets.Catalog
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "trajectory-calc",
		Short: "Bullet trajectory calculator",
		Long: `trajectory-calc estimates bullet drop, wind drift, time of flight, remaining
velocity and energy at a target distance.

Calculations run locally with the configured model, against a running server
with "remote", or as an HTTP service with "serve".`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file, - for stdin (built-in defaults when empty)")
	root.PersistentFlags().StringVar(&a.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		a.newCalcCmd(),
		a.newTrajectoryCmd(),
		a.newCompareCmd(),
		a.newPresetsCmd(),
		a.newServeCmd(),
		a.newRemoteCmd(),
	)
	return root
}

// setup loads configuration, builds the logger and resolves the output
// format before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var conf *config.Configuration
	var err error
	if a.configPath == "-" {
		conf, err = config.LoadConfigurationFromReader(cmd.InOrStdin())
	} else {
		conf, err = config.LoadConfiguration(a.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration at %q: %w", a.configPath, err)
	}
	a.conf = conf

	logger, err := initializeLogger(conf.Logging, a.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	// CLI override takes precedence over config
	if a.outputFormat == "" {
		a.outputFormat = conf.Output.Format
	}
	if a.outputFormat == "" {
		a.outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(a.outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		a.logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	catalog, err := presets.Load()
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	a.catalog = catalog

	a.logger.Debug("configuration loaded",
		zap.String("op", "main"),
		zap.String("command", cmd.Name()),
		zap.String("model", conf.Model),
		zap.String("outputFormat", a.outputFormat),
	)
	return nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
