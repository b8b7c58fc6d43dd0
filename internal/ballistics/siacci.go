package ballistics

import (
	"math"

	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/mathutil"
)

// Siacci is the primary model: a reduced Siacci-style velocity decay with
// an air density correction. It is not a drag-table integration.
type Siacci struct{}

// Name implements Strategy.
func (Siacci) Name() string {
	return constants.ModelSiacci
}

// Calculate implements Strategy.
func (Siacci) Calculate(p ShotParameters) Result {
	density := AirDensityRatio(p.Temperature, p.BarometricPressure, p.Humidity)
	adjustedBC := p.BallisticCoefficient / density
	retardation := 1 / (adjustedBC * constants.RetardationScale)

	velocity := p.MuzzleVelocity / (1 + retardation*p.Distance)

	averageVelocity := (p.MuzzleVelocity + velocity) / 2
	distanceFeet := p.Distance * constants.FeetPerYard
	tof := distanceFeet / averageVelocity

	drop := 0.5 * constants.GravityInchesPerSecond2 * tof * tof

	// The crosswind angle is fixed at 90°; WindDirection does not enter the
	// drift estimate.
	crosswind := p.WindSpeed * math.Sin(mathutil.Radians(constants.CrosswindAngleDegrees))
	lag := tof - distanceFeet/p.MuzzleVelocity
	drift := crosswind * constants.WindDriftInchesPerMPH * lag

	return newResult(constants.ModelSiacci, p, velocity, tof, drop, drift)
}

// AirDensityRatio returns air density relative to the standard atmosphere
// (59°F, 29.92 inHg). Warmer, lower-pressure and more humid air is thinner.
func AirDensityRatio(temperature, pressure, humidity float64) float64 {
	tempFactor := (constants.StandardTemperatureF + constants.FahrenheitToRankine) /
		(temperature + constants.FahrenheitToRankine)
	pressureFactor := pressure / constants.StandardPressureInHg
	humidityFactor := 1 - humidity*constants.HumidityDensityFactor
	return pressureFactor * tempFactor * humidityFactor
}
