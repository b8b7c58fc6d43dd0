package ballistics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/trajectory-calc/pkg/constants"
	"github.com/iwvelando/trajectory-calc/pkg/mathutil"
)

// ErrComputation marks an unexpected failure inside a calculation.
var ErrComputation = errors.New("trajectory computation failed")

// Strategy is a trajectory model. Implementations are pure: identical
// parameters always produce identical results.
type Strategy interface {
	Name() string
	Calculate(p ShotParameters) Result
}

// Result summarises a trajectory at the target distance.
type Result struct {
	Distance             float64 `json:"distance"`
	DropInches           float64 `json:"dropInches"`
	WindDriftInches      float64 `json:"windDriftInches"`
	TimeOfFlight         float64 `json:"timeOfFlight"`
	VelocityAtDistance   float64 `json:"velocityAtDistance"`
	EnergyAtMuzzle       float64 `json:"energyAtMuzzle"`
	EnergyAtDistance     float64 `json:"energyAtDistance"`
	VelocityRetention    float64 `json:"velocityRetention"`
	BulletWeight         float64 `json:"bulletWeight"`
	MuzzleVelocity       float64 `json:"muzzleVelocity"`
	BallisticCoefficient float64 `json:"ballisticCoefficient"`
	Model                string  `json:"model"`
}

// Finite reports whether every numeric field is a real number.
func (r Result) Finite() bool {
	for _, v := range []float64{
		r.Distance, r.DropInches, r.WindDriftInches, r.TimeOfFlight,
		r.VelocityAtDistance, r.EnergyAtMuzzle, r.EnergyAtDistance,
		r.VelocityRetention, r.BulletWeight, r.MuzzleVelocity, r.BallisticCoefficient,
	} {
		if !mathutil.IsFinite(v) {
			return false
		}
	}
	return true
}

// Models lists the available strategy names.
func Models() []string {
	return []string{constants.ModelSiacci, constants.ModelApproximation}
}

// ModelByName returns the strategy registered under name. The empty name
// selects Siacci.
func ModelByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", constants.ModelSiacci:
		return Siacci{}, nil
	case constants.ModelApproximation:
		return Approximation{}, nil
	}
	return nil, fmt.Errorf("unknown model %q, expected one of %s", name, strings.Join(Models(), ", "))
}

// Compute runs s on p and converts a panic or a non-finite result into an
// error wrapping ErrComputation.
func Compute(s Strategy, p ShotParameters) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			err = fmt.Errorf("%w: %s model: %v", ErrComputation, s.Name(), rec)
		}
	}()

	result = s.Calculate(p)
	if !result.Finite() {
		return Result{}, fmt.Errorf("%w: %s model produced a non-finite value at %g yards",
			ErrComputation, s.Name(), p.Distance)
	}
	return result, nil
}

// Energy returns kinetic energy in foot-pounds for a bullet of weight grains
// travelling at velocity fps.
func Energy(weight, velocity float64) float64 {
	return weight * velocity * velocity / constants.EnergyDivisor
}

// newResult applies the reporting precision: 2 decimals for inches, 3 for
// seconds, integers for velocity, energy and retention.
func newResult(model string, p ShotParameters, velocity, tof, drop, drift float64) Result {
	return Result{
		Distance:             p.Distance,
		DropInches:           positiveZero(mathutil.RoundInches(drop)),
		WindDriftInches:      positiveZero(mathutil.RoundInches(drift)),
		TimeOfFlight:         positiveZero(mathutil.RoundSeconds(tof)),
		VelocityAtDistance:   mathutil.RoundTo(velocity, constants.IntegerPrecision),
		EnergyAtMuzzle:       mathutil.RoundTo(Energy(p.BulletWeight, p.MuzzleVelocity), constants.IntegerPrecision),
		EnergyAtDistance:     mathutil.RoundTo(Energy(p.BulletWeight, velocity), constants.IntegerPrecision),
		VelocityRetention:    mathutil.RoundTo(mathutil.CalculatePercentage(velocity, p.MuzzleVelocity), constants.IntegerPrecision),
		BulletWeight:         p.BulletWeight,
		MuzzleVelocity:       p.MuzzleVelocity,
		BallisticCoefficient: p.BallisticCoefficient,
		Model:                model,
	}
}

// Rounding a tiny negative leaves -0, which encodes as "-0".
func positiveZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
