// Package ballistics implements the trajectory calculator: shot parameters and
// environmental conditions in, trajectory summary and sampled curve out.
//
// Two calculation strategies are provided. Siacci is the primary model used by
// the server; Approximation is a cruder offline-safe estimate used when the
// server cannot be reached. They intentionally disagree.
package ballistics

import (
	"fmt"
	"strings"
)

// ShotParameters is a fully resolved calculator input. Every field is set; the
// calculation never substitutes defaults.
type ShotParameters struct {
	Distance             float64       `json:"distance"`             // yards
	BulletWeight         float64       `json:"bulletWeight"`         // grains
	MuzzleVelocity       float64       `json:"muzzleVelocity"`       // fps
	BallisticCoefficient float64       `json:"ballisticCoefficient"` // G1-style drag proxy
	WindSpeed            float64       `json:"windSpeed"`            // mph
	WindDirection        WindDirection `json:"windDirection,omitempty"`
	Temperature          float64       `json:"temperature"`        // °F
	Humidity             float64       `json:"humidity"`           // percent
	BarometricPressure   float64       `json:"barometricPressure"` // inHg
}

// Input carries shot parameters as supplied by a caller. Nil fields are
// resolved from Defaults.
type Input struct {
	Distance             *float64      `json:"distance,omitempty" yaml:"distance,omitempty"`
	BulletWeight         *float64      `json:"bulletWeight,omitempty" yaml:"bulletWeight,omitempty"`
	MuzzleVelocity       *float64      `json:"muzzleVelocity,omitempty" yaml:"muzzleVelocity,omitempty"`
	BallisticCoefficient *float64      `json:"ballisticCoefficient,omitempty" yaml:"ballisticCoefficient,omitempty"`
	WindSpeed            *float64      `json:"windSpeed,omitempty" yaml:"windSpeed,omitempty"`
	WindDirection        WindDirection `json:"windDirection,omitempty" yaml:"windDirection,omitempty"`
	Temperature          *float64      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Humidity             *float64      `json:"humidity,omitempty" yaml:"humidity,omitempty"`
	BarometricPressure   *float64      `json:"barometricPressure,omitempty" yaml:"barometricPressure,omitempty"`
}

// Float returns a pointer to v, for building an Input literal.
func Float(v float64) *float64 {
	return &v
}

// WindDirection is the compass direction the wind blows from.
type WindDirection string

// Compass points accepted for WindDirection.
const (
	WindNorth     WindDirection = "N"
	WindNorthEast WindDirection = "NE"
	WindEast      WindDirection = "E"
	WindSouthEast WindDirection = "SE"
	WindSouth     WindDirection = "S"
	WindSouthWest WindDirection = "SW"
	WindWest      WindDirection = "W"
	WindNorthWest WindDirection = "NW"
)

var compassPoints = map[WindDirection]bool{
	WindNorth:     true,
	WindNorthEast: true,
	WindEast:      true,
	WindSouthEast: true,
	WindSouth:     true,
	WindSouthWest: true,
	WindWest:      true,
	WindNorthWest: true,
}

// ParseWindDirection accepts a compass point in any letter case. The empty
// string is a valid, unset direction.
func ParseWindDirection(value string) (WindDirection, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	dir := WindDirection(trimmed)
	if !compassPoints[dir] {
		return "", fmt.Errorf("unknown wind direction %q", value)
	}
	return dir, nil
}

// UnmarshalText normalises case and whitespace. Unknown points are kept so
// that validation can report them alongside every other violation.
func (d *WindDirection) UnmarshalText(text []byte) error {
	*d = WindDirection(strings.ToUpper(strings.TrimSpace(string(text))))
	return nil
}

// Valid reports whether d is unset or a known compass point.
func (d WindDirection) Valid() bool {
	if d == "" {
		return true
	}
	return compassPoints[d]
}
