// Package config defines the data structures related to configuration and
// includes functions for loading and checking the config.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/trajectory-calc/internal/ballistics"
	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TRAJECTORY_MODEL.
const EnvPrefix = "TRAJECTORY"

// Configuration holds all configuration for trajectory-calc.
type Configuration struct {
	Logging    LoggingConfig       `yaml:"logging,omitempty"`
	Output     OutputConfig        `yaml:"output,omitempty"`
	Model      string              `yaml:"model,omitempty"`
	Defaults   ballistics.Defaults `yaml:"defaults,omitempty"`
	Trajectory TrajectoryConfig    `yaml:"trajectory,omitempty"`
	Client     ClientConfig        `yaml:"client,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" env:"TRAJECTORY_LOG_LEVEL"`             // debug, info, warn, error
	Format     string `yaml:"format,omitempty" env:"TRAJECTORY_LOG_FORMAT"`           // json, console
	OutputFile string `yaml:"outputFile,omitempty" env:"TRAJECTORY_LOG_OUTPUT_FILE"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// TrajectoryConfig controls how trajectory curves are sampled.
type TrajectoryConfig struct {
	Step float64 `yaml:"step,omitempty"` // yards between points
}

// ClientConfig points the remote client at a running server.
type ClientConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields the built-in defaults, still
// subject to TRAJECTORY_* environment overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	v.SetConfigType("yml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	defaults := ballistics.StandardDefaults()

	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("model", constants.ModelSiacci)
	v.SetDefault("defaults.bulletWeight", defaults.BulletWeight)
	v.SetDefault("defaults.muzzleVelocity", defaults.MuzzleVelocity)
	v.SetDefault("defaults.ballisticCoefficient", defaults.BallisticCoefficient)
	v.SetDefault("defaults.windSpeed", defaults.WindSpeed)
	v.SetDefault("defaults.temperature", defaults.Temperature)
	v.SetDefault("defaults.humidity", defaults.Humidity)
	v.SetDefault("defaults.barometricPressure", defaults.BarometricPressure)
	v.SetDefault("trajectory.step", constants.DefaultSampleStep)
	v.SetDefault("client.endpoint", constants.DefaultClientEndpoint)
	v.SetDefault("client.timeout", time.Duration(constants.DefaultClientTimeoutSeconds)*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate rejects configuration the application cannot run with.
func (c *Configuration) Validate() error {
	if _, err := ballistics.ModelByName(c.Model); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return err
		}
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("invalid defaults: %w", err)
	}
	if err := ballistics.ValidateStep(c.Trajectory.Step); err != nil {
		return fmt.Errorf("invalid trajectory step: %w", err)
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive, got %s", c.Client.Timeout)
	}
	return nil
}

// Strategy returns the configured calculation model.
func (c *Configuration) Strategy() ballistics.Strategy {
	s, err := ballistics.ModelByName(c.Model)
	if err != nil {
		return ballistics.Siacci{}
	}
	return s
}

// ValidateConfiguration returns warnings for settings that are legal but
// probably not what the user intended.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if strings.EqualFold(strings.TrimSpace(c.Model), constants.ModelApproximation) {
		warnings = append(warnings, "approximation model selected as primary; results are a coarse offline estimate")
	}
	if c.Defaults.WindSpeed > 0 {
		warnings = append(warnings, fmt.Sprintf("default wind speed %g mph is applied to every calculation without an explicit windSpeed", c.Defaults.WindSpeed))
	}
	if c.Trajectory.Step > constants.MaxDistance/4 {
		warnings = append(warnings, fmt.Sprintf("trajectory step %g yd yields very coarse curves", c.Trajectory.Step))
	}
	if c.Client.Endpoint == "" {
		warnings = append(warnings, "client endpoint is empty; remote calculations always use the local approximation")
	}

	return warnings
}
