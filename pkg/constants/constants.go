// Package constants provides shared constants for the trajectory-calc application.
package constants

// Standard atmosphere used as the reference for air density corrections.
const (
	// StandardTemperatureF is the reference temperature in degrees Fahrenheit
	StandardTemperatureF = 59.0

	// StandardPressureInHg is the reference barometric pressure in inches of mercury
	StandardPressureInHg = 29.92

	// FahrenheitToRankine converts a Fahrenheit reading into an absolute temperature
	FahrenheitToRankine = 459.67

	// HumidityDensityFactor is the density reduction per percent of relative humidity
	HumidityDensityFactor = 0.0002
)

// Physical and empirical constants.
const (
	// GravityInchesPerSecond2 is standard gravity in in/s²
	GravityInchesPerSecond2 = 386.09

	// FeetPerYard converts yards into feet
	FeetPerYard = 3.0

	// EnergyDivisor turns grains * fps² into foot-pounds
	EnergyDivisor = 450240.0

	// WindDriftInchesPerMPH is the empirical lateral drift rate in in/s per mph of crosswind
	WindDriftInchesPerMPH = 17.6

	// RetardationScale scales the adjusted ballistic coefficient into a retardation coefficient
	RetardationScale = 1000.0

	// ApproximationDecayScale scales the ballistic coefficient into the fallback decay rate
	ApproximationDecayScale = 0.001

	// CrosswindAngleDegrees is the fixed wind angle used by the Siacci drift estimate
	CrosswindAngleDegrees = 90.0

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Default shot parameters substituted for missing optional inputs.
const (
	DefaultBulletWeight         = 147.0
	DefaultMuzzleVelocity       = 900.0
	DefaultBallisticCoefficient = 0.168
	DefaultWindSpeed            = 0.0
	DefaultTemperature          = StandardTemperatureF
	DefaultHumidity             = 50.0
	DefaultBarometricPressure   = StandardPressureInHg
)

// Accepted input ranges (inclusive).
const (
	MinDistance = 0.0
	MaxDistance = 2000.0

	MinBulletWeight = 1.0
	MaxBulletWeight = 1000.0

	MinMuzzleVelocity = 300.0
	MaxMuzzleVelocity = 5000.0

	MinBallisticCoefficient = 0.01
	MaxBallisticCoefficient = 1.0

	MinWindSpeed = 0.0
	MaxWindSpeed = 100.0

	MinTemperature = -40.0
	MaxTemperature = 140.0

	MinHumidity = 0.0
	MaxHumidity = 100.0

	MinBarometricPressure = 20.0
	MaxBarometricPressure = 35.0
)

// Rounding precision, in decimal places, per result field.
const (
	InchesPrecision  = 2
	SecondsPrecision = 3
	IntegerPrecision = 0
)

// Trajectory sampling
const (
	// DefaultSampleStep is the default spacing in yards between charted points
	DefaultSampleStep = 50.0

	// MinSampleStep keeps sampled curves finite
	MinSampleStep = 1.0

	// MaxSamplePoints bounds the size of a sampled curve
	MaxSamplePoints = 2001
)

// Calculation model names
const (
	// ModelSiacci is the primary server-side model
	ModelSiacci = "siacci"

	// ModelApproximation is the offline-safe fallback model
	ModelApproximation = "approximation"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (64 KB)
	DefaultMaxBodySizeBytes int64 = 64 * 1024

	// DefaultClientEndpoint is the default server base URL used by the client
	DefaultClientEndpoint = "http://localhost:8080"

	// DefaultClientTimeoutSeconds is the default client request timeout
	DefaultClientTimeoutSeconds = 5

	// MaxComparePresets bounds the fan-out of a compare request
	MaxComparePresets = 16
)

// ServiceName identifies the service in logs and traces.
const ServiceName = "trajectory-calc"
