package ballistics

import (
	"github.com/iwvelando/trajectory-calc/pkg/constants"
)

// Defaults holds the standard values substituted for optional inputs.
type Defaults struct {
	BulletWeight         float64 `yaml:"bulletWeight" mapstructure:"bulletWeight"`
	MuzzleVelocity       float64 `yaml:"muzzleVelocity" mapstructure:"muzzleVelocity"`
	BallisticCoefficient float64 `yaml:"ballisticCoefficient" mapstructure:"ballisticCoefficient"`
	WindSpeed            float64 `yaml:"windSpeed" mapstructure:"windSpeed"`
	Temperature          float64 `yaml:"temperature" mapstructure:"temperature"`
	Humidity             float64 `yaml:"humidity" mapstructure:"humidity"`
	BarometricPressure   float64 `yaml:"barometricPressure" mapstructure:"barometricPressure"`
}

// StandardDefaults returns a 147gr 9mm load at standard conditions with no wind.
func StandardDefaults() Defaults {
	return Defaults{
		BulletWeight:         constants.DefaultBulletWeight,
		MuzzleVelocity:       constants.DefaultMuzzleVelocity,
		BallisticCoefficient: constants.DefaultBallisticCoefficient,
		WindSpeed:            constants.DefaultWindSpeed,
		Temperature:          constants.DefaultTemperature,
		Humidity:             constants.DefaultHumidity,
		BarometricPressure:   constants.DefaultBarometricPressure,
	}
}

// Resolve fills every missing optional field of in. A missing distance
// resolves to zero; ValidateInput rejects that case before Resolve is reached.
func (d Defaults) Resolve(in Input) ShotParameters {
	return ShotParameters{
		Distance:             valueOr(in.Distance, 0),
		BulletWeight:         valueOr(in.BulletWeight, d.BulletWeight),
		MuzzleVelocity:       valueOr(in.MuzzleVelocity, d.MuzzleVelocity),
		BallisticCoefficient: valueOr(in.BallisticCoefficient, d.BallisticCoefficient),
		WindSpeed:            valueOr(in.WindSpeed, d.WindSpeed),
		WindDirection:        in.WindDirection,
		Temperature:          valueOr(in.Temperature, d.Temperature),
		Humidity:             valueOr(in.Humidity, d.Humidity),
		BarometricPressure:   valueOr(in.BarometricPressure, d.BarometricPressure),
	}
}

// Prepare validates in, resolves it against d and validates the result.
func (d Defaults) Prepare(in Input) (ShotParameters, error) {
	if err := ValidateInput(in); err != nil {
		return ShotParameters{}, err
	}
	params := d.Resolve(in)
	if err := Validate(params); err != nil {
		return ShotParameters{}, err
	}
	return params, nil
}

// Validate checks that every default lies inside the accepted input ranges.
func (d Defaults) Validate() error {
	resolved := d.Resolve(Input{})
	return Validate(resolved)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
