package ballistics

import (
	"math"

	"github.com/iwvelando/trajectory-calc/pkg/constants"
)

// Approximation is the offline fallback: exponential velocity decay, time of
// flight at muzzle velocity and no atmosphere correction. It is cruder than
// Siacci on purpose and must not be merged with it.
type Approximation struct{}

// Name implements Strategy.
func (Approximation) Name() string {
	return constants.ModelApproximation
}

// Calculate implements Strategy.
func (Approximation) Calculate(p ShotParameters) Result {
	decayRate := 1 - p.BallisticCoefficient*constants.ApproximationDecayScale
	velocity := p.MuzzleVelocity * math.Pow(decayRate, p.Distance)

	distanceFeet := p.Distance * constants.FeetPerYard
	tof := distanceFeet / p.MuzzleVelocity

	drop := 0.5 * constants.GravityInchesPerSecond2 * tof * tof
	drift := p.WindSpeed * constants.WindDriftInchesPerMPH * tof * (1 - velocity/p.MuzzleVelocity)

	return newResult(constants.ModelApproximation, p, velocity, tof, drop, drift)
}
