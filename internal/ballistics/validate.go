package ballistics

import (
	"fmt"

	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/validation"
)

// ValidateInput checks a caller-supplied input: distance is mandatory, and any
// supplied field must lie inside its accepted range. The returned error is a
// *validation.Error listing every violation.
func ValidateInput(in Input) error {
	var c validation.Collector
	c.Required("distance", in.Distance != nil)
	checkOptional(&c, "distance", in.Distance, constants.MinDistance, constants.MaxDistance)
	checkOptional(&c, "bulletWeight", in.BulletWeight, constants.MinBulletWeight, constants.MaxBulletWeight)
	checkOptional(&c, "muzzleVelocity", in.MuzzleVelocity, constants.MinMuzzleVelocity, constants.MaxMuzzleVelocity)
	checkOptional(&c, "ballisticCoefficient", in.BallisticCoefficient, constants.MinBallisticCoefficient, constants.MaxBallisticCoefficient)
	checkOptional(&c, "windSpeed", in.WindSpeed, constants.MinWindSpeed, constants.MaxWindSpeed)
	checkOptional(&c, "temperature", in.Temperature, constants.MinTemperature, constants.MaxTemperature)
	checkOptional(&c, "humidity", in.Humidity, constants.MinHumidity, constants.MaxHumidity)
	checkOptional(&c, "barometricPressure", in.BarometricPressure, constants.MinBarometricPressure, constants.MaxBarometricPressure)
	checkWindDirection(&c, in.WindDirection)
	return c.Err()
}

// Validate checks a resolved parameter set against the accepted ranges.
func Validate(p ShotParameters) error {
	var c validation.Collector
	c.Range("distance", p.Distance, constants.MinDistance, constants.MaxDistance)
	c.Range("bulletWeight", p.BulletWeight, constants.MinBulletWeight, constants.MaxBulletWeight)
	c.Range("muzzleVelocity", p.MuzzleVelocity, constants.MinMuzzleVelocity, constants.MaxMuzzleVelocity)
	c.Range("ballisticCoefficient", p.BallisticCoefficient, constants.MinBallisticCoefficient, constants.MaxBallisticCoefficient)
	c.Range("windSpeed", p.WindSpeed, constants.MinWindSpeed, constants.MaxWindSpeed)
	c.Range("temperature", p.Temperature, constants.MinTemperature, constants.MaxTemperature)
	c.Range("humidity", p.Humidity, constants.MinHumidity, constants.MaxHumidity)
	c.Range("barometricPressure", p.BarometricPressure, constants.MinBarometricPressure, constants.MaxBarometricPressure)
	checkWindDirection(&c, p.WindDirection)
	return c.Err()
}

// ValidateStep checks a trajectory sampling step in yards.
func ValidateStep(step float64) error {
	var c validation.Collector
	c.Range("step", step, constants.MinSampleStep, constants.MaxDistance)
	return c.Err()
}

func checkOptional(c *validation.Collector, field string, v *float64, min, max float64) {
	if v == nil {
		return
	}
	c.Range(field, *v, min, max)
}

func checkWindDirection(c *validation.Collector, d WindDirection) {
	if !d.Valid() {
		c.Invalid("windDirection", fmt.Sprintf("unknown compass point %q", string(d)))
	}
}
