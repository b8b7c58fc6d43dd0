// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/trajectory-calc/internal/ballistics"
)

// FindPoint finds the sample taken at distance in a trajectory curve.
// Returns a pointer to the point if found, nil otherwise.
func FindPoint(points []ballistics.Point, distance float64) *ballistics.Point {
	for i := range points {
		if points[i].Distance == distance {
			return &points[i]
		}
	}
	return nil
}

// StandardInput returns the reference load used across tests: a 147 grain
// bullet at 900 fps, BC 0.168, standard atmosphere, no wind, at distance yards.
func StandardInput(distance float64) ballistics.Input {
	return ballistics.Input{
		Distance:             ballistics.Float(distance),
		BulletWeight:         ballistics.Float(147),
		MuzzleVelocity:       ballistics.Float(900),
		BallisticCoefficient: ballistics.Float(0.168),
		WindSpeed:            ballistics.Float(0),
		Temperature:          ballistics.Float(59),
		Humidity:             ballistics.Float(50),
		BarometricPressure:   ballistics.Float(29.92),
	}
}
