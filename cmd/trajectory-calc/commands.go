package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/internal/client"
	"github.com/iwvelando/trajectory-calc/internal/server"
	"github.com/iwvelando/trajectory-calc/internal/telemetry"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shotFlags binds the calculator inputs to command-line flags. Only flags the
// user actually set end up in the request; everything else is resolved from
// the preset and the configured defaults.
type shotFlags struct {
	distance      float64
	bulletWeight  float64
	velocity      float64
	bc            float64
	windSpeed     float64
	windDirection string
	temperature   float64
	humidity      float64
	pressure      float64
	preset        string
	model         string
	step          float64
}

func (f *shotFlags) register(cmd *cobra.Command, withStep bool) {
	fs := cmd.Flags()
	fs.Float64VarP(&f.distance, "distance", "d", 0, "target distance in yards (required)")
	fs.Float64Var(&f.bulletWeight, "bullet-weight", 0, "bullet weight in grains")
	fs.Float64Var(&f.velocity, "muzzle-velocity", 0, "muzzle velocity in fps")
	fs.Float64Var(&f.bc, "bc", 0, "ballistic coefficient")
	fs.Float64Var(&f.windSpeed, "wind-speed", 0, "wind speed in mph")
	fs.StringVar(&f.windDirection, "wind-direction", "", "compass direction the wind blows from (N, NE, E, SE, S, SW, W, NW)")
	fs.Float64Var(&f.temperature, "temperature", 0, "air temperature in °F")
	fs.Float64Var(&f.humidity, "humidity", 0, "relative humidity in percent")
	fs.Float64Var(&f.pressure, "pressure", 0, "barometric pressure in inHg")
	fs.StringVar(&f.preset, "preset", "", "ammunition preset id or name")
	fs.StringVar(&f.model, "model", "", "calculation model override (siacci, approximation)")
	if withStep {
		fs.Float64Var(&f.step, "step", 0, "yards between trajectory points")
	}
}

func (f *shotFlags) request(cmd *cobra.Command) server.CalculationRequest {
	fs := cmd.Flags()
	set := func(name string, v float64) *float64 {
		if !fs.Changed(name) {
			return nil
		}
		return ballistics.Float(v)
	}

	var dir ballistics.WindDirection
	_ = dir.UnmarshalText([]byte(f.windDirection))

	return server.CalculationRequest{
		Input: ballistics.Input{
			Distance:             set("distance", f.distance),
			BulletWeight:         set("bullet-weight", f.bulletWeight),
			MuzzleVelocity:       set("muzzle-velocity", f.velocity),
			BallisticCoefficient: set("bc", f.bc),
			WindSpeed:            set("wind-speed", f.windSpeed),
			WindDirection:        dir,
			Temperature:          set("temperature", f.temperature),
			Humidity:             set("humidity", f.humidity),
			BarometricPressure:   set("pressure", f.pressure),
		},
		Model:  f.model,
		Preset: f.preset,
		Step:   set("step", f.step),
	}
}

func (a *app) prepare(req server.CalculationRequest) (server.Prepared, error) {
	return server.Prepare(req, a.conf.Defaults, a.conf.Strategy(), a.conf.Trajectory.Step, a.catalog)
}

func (a *app) newCalcCmd() *cobra.Command {
	var flags shotFlags
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate the trajectory at a single distance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLocal(cmd, flags.request(cmd), false)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (a *app) newTrajectoryCmd() *cobra.Command {
	var flags shotFlags
	cmd := &cobra.Command{
		Use:   "trajectory",
		Short: "Calculate the trajectory and sample the curve up to the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLocal(cmd, flags.request(cmd), true)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func (a *app) runLocal(cmd *cobra.Command, req server.CalculationRequest, withPoints bool) error {
	const op = "main.runLocal"

	p, err := a.prepare(req)
	if err != nil {
		return err
	}

	result, err := ballistics.Compute(p.Strategy, p.Params)
	if err != nil {
		a.logger.Error("trajectory computation failed",
			zap.String("op", op),
			zap.Error(err),
		)
		return err
	}

	report := output.Report{Result: result, Source: "local"}
	if withPoints {
		report.Points = ballistics.Sample(p.Strategy, p.Params, p.Step)
	}
	a.logger.Debug("trajectory computed",
		zap.String("op", op),
		zap.String("model", result.Model),
		zap.Float64("distance", result.Distance),
		zap.Int("points", len(report.Points)),
	)
	return output.Write(cmd.OutOrStdout(), a.outputFormat, report)
}

func (a *app) newCompareCmd() *cobra.Command {
	var flags shotFlags
	var loads []string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare several ammunition presets under the same conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCompare(cmd, flags.request(cmd), loads)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringSliceVar(&loads, "presets", nil, "comma-separated preset ids to compare")
	// Hidden but parsed: the projectile comes from each preset, and
	// CheckCompare reports any of these that are set.
	for _, name := range []string{"preset", "bullet-weight", "muzzle-velocity", "bc"} {
		_ = cmd.Flags().MarkHidden(name)
	}
	return cmd
}

func (a *app) runCompare(cmd *cobra.Command, req server.CalculationRequest, names []string) error {
	loads, err := server.CheckCompare(server.CompareRequest{CalculationRequest: req, Presets: names}, a.catalog)
	if err != nil {
		return err
	}

	entries := make([]output.Entry, len(loads))
	jobs := make([]server.Prepared, len(loads))
	for i, preset := range loads {
		single := req
		single.Input = preset.Apply(single.Input)
		p, err := a.prepare(single)
		if err != nil {
			return fmt.Errorf("preset %q: %w", preset.ID, err)
		}
		entries[i].Label = preset.Name
		jobs[i] = p
	}

	var g errgroup.Group
	for i := range jobs {
		g.Go(func() error {
			result, err := ballistics.Compute(jobs[i].Strategy, jobs[i].Params)
			if err != nil {
				return err
			}
			entries[i].Result = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("comparison failed",
			zap.String("op", "main.runCompare"),
			zap.Error(err),
		)
		return err
	}

	return output.WriteComparison(cmd.OutOrStdout(), a.outputFormat, entries)
}

func (a *app) newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in ammunition presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return output.WritePresets(cmd.OutOrStdout(), a.outputFormat, a.catalog.All())
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	var serverConfig, address, maxBodySize string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			const op = "main.serve"

			srvCfg, err := server.LoadConfig(serverConfig)
			if err != nil {
				return err
			}
			if address != "" {
				srvCfg.Address = address
			}
			if maxBodySize != "" {
				size, err := server.ParseSize(maxBodySize)
				if err != nil {
					return fmt.Errorf("invalid --max-body-size: %w", err)
				}
				srvCfg.SetBodySizeBytes(size)
			}

			// Server logging settings refine the ones from the main config.
			logging := a.conf.Logging
			if srvCfg.Logging.Level != "" {
				logging.Level = srvCfg.Logging.Level
			}
			if srvCfg.Logging.Format != "" {
				logging.Format = srvCfg.Logging.Format
			}
			if srvCfg.Logging.OutputFile != "" {
				logging.OutputFile = srvCfg.Logging.OutputFile
			}
			if logging != a.conf.Logging {
				logger, err := initializeLogger(logging, a.logLevel)
				if err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
				_ = a.logger.Sync()
				a.logger = logger
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := a.setupTelemetry(ctx)
			if err != nil {
				return err
			}
			defer a.shutdownTelemetry(shutdown)

			handler := server.NewHandler(a.logger, server.Settings{
				MaxBodySize: srvCfg.BodySizeBytes(),
				Version:     version,
				Defaults:    a.conf.Defaults,
				Strategy:    a.conf.Strategy(),
				Step:        a.conf.Trajectory.Step,
				Presets:     a.catalog,
			})

			a.logger.Info("starting trajectory server",
				zap.String("op", op),
				zap.String("address", srvCfg.Address),
				zap.String("version", version),
				zap.String("model", a.conf.Strategy().Name()),
			)
			return server.Run(ctx, a.logger, srvCfg, handler)
		},
	}
	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	cmd.Flags().StringVar(&maxBodySize, "max-body-size", "", "request body limit override, e.g. 32K")
	return cmd
}

func (a *app) newRemoteCmd() *cobra.Command {
	var flags shotFlags
	var endpoint string
	var withPoints bool
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Calculate on a trajectory server, falling back to the local approximation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			shutdown, err := a.setupTelemetry(ctx)
			if err != nil {
				return err
			}
			defer a.shutdownTelemetry(shutdown)

			if endpoint == "" {
				endpoint = a.conf.Client.Endpoint
			}
			c := client.New(a.logger, client.Options{
				Endpoint: endpoint,
				Timeout:  a.conf.Client.Timeout,
				Defaults: a.conf.Defaults,
				Step:     a.conf.Trajectory.Step,
				Presets:  a.catalog,
			})
			defer c.Close()

			req := flags.request(cmd)
			var outcome client.Outcome
			if withPoints {
				outcome, err = c.Trajectory(ctx, req)
			} else {
				outcome, err = c.Calculate(ctx, req)
			}
			if err != nil {
				return err
			}

			return output.Write(cmd.OutOrStdout(), a.outputFormat, output.Report{
				Result: outcome.Result,
				Points: outcome.Points,
				Source: string(outcome.Source),
				Note:   outcome.Reason,
			})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "server base URL override")
	cmd.Flags().BoolVar(&withPoints, "trajectory", false, "also fetch the sampled curve")
	return cmd
}

func (a *app) setupTelemetry(ctx context.Context) (func(context.Context) error, error) {
	cfg, err := telemetry.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, cfg, constants.ServiceName, version)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	return shutdown, nil
}

func (a *app) shutdownTelemetry(shutdown func(context.Context) error) {
	if err := shutdown(context.Background()); err != nil {
		a.logger.Warn("failed to flush traces",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
