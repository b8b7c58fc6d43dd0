package ballistics

import (
	"math"

	"github.com/iwvelando/trajectory-calc/pkg/constants"
)

// Point is one sample of a trajectory curve.
type Point struct {
	Distance  float64  `json:"distance"`
	Drop      float64  `json:"drop"`
	Velocity  float64  `json:"velocity"`
	Energy    float64  `json:"energy"`
	WindDrift *float64 `json:"windDrift,omitempty"`
}

// Sample evaluates s at 0, step, 2*step, ... and always at p.Distance itself.
// A step below MinSampleStep falls back to DefaultSampleStep, and the step is
// widened if the curve would exceed MaxSamplePoints.
func Sample(s Strategy, p ShotParameters, step float64) []Point {
	if !(step >= constants.MinSampleStep) {
		step = constants.DefaultSampleStep
	}
	if n := p.Distance / step; n > constants.MaxSamplePoints-1 {
		step = p.Distance / (constants.MaxSamplePoints - 1)
	}

	count := int(math.Ceil(p.Distance / step))
	points := make([]Point, 0, count+1)
	for i := 0; i < count; i++ {
		d := float64(i) * step
		if d >= p.Distance {
			break
		}
		points = append(points, samplePoint(s, p, d))
	}
	return append(points, samplePoint(s, p, p.Distance))
}

func samplePoint(s Strategy, p ShotParameters, distance float64) Point {
	at := p
	at.Distance = distance
	r := s.Calculate(at)

	point := Point{
		Distance: distance,
		Drop:     r.DropInches,
		Velocity: r.VelocityAtDistance,
		Energy:   r.EnergyAtDistance,
	}
	if p.WindSpeed > 0 {
		drift := r.WindDriftInches
		point.WindDrift = &drift
	}
	return point
}
