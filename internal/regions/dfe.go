package regions

import (
	"errors"
	"math"

	"popgensim/internal/rng"
)

// DFE draws the selection coefficient of a new selected mutation.
type DFE interface {
	Draw(r *rng.Stream) float64
}

type ConstantS struct{ S float64 }

func (c ConstantS) Draw(*rng.Stream) float64 { return c.S }

// ExponentialS draws |s| from an exponential with mean |Mean| and keeps
// the sign of Mean.
type ExponentialS struct{ Mean float64 }

func (e ExponentialS) Draw(r *rng.Stream) float64 {
	return math.Copysign(r.Exponential(math.Abs(e.Mean)), e.Mean)
}

type GaussianS struct{ SD float64 }

func (g GaussianS) Draw(r *rng.Stream) float64 { return r.Normal(0, g.SD) }

type UniformS struct{ Lo, Hi float64 }

func (u UniformS) Draw(r *rng.Stream) float64 { return r.UniformRange(u.Lo, u.Hi) }

// GammaS draws |s| from a gamma with the given mean and shape, keeping the
// sign of Mean.
type GammaS struct{ Mean, Shape float64 }

func (g GammaS) Draw(r *rng.Stream) float64 {
	scale := math.Abs(g.Mean) / g.Shape
	return math.Copysign(r.Gamma(g.Shape, scale), g.Mean)
}

// DFESpec is the serializable form of a DFE.
type DFESpec struct {
	Type  string  `yaml:"type" json:"type"`
	Value float64 `yaml:"value" json:"value"`
	Mean  float64 `yaml:"mean" json:"mean"`
	SD    float64 `yaml:"sd" json:"sd"`
	Lo    float64 `yaml:"lo" json:"lo"`
	Hi    float64 `yaml:"hi" json:"hi"`
	Shape float64 `yaml:"shape" json:"shape"`
}

func (s DFESpec) Build() (DFE, error) {
	switch s.Type {
	case "", "constant":
		return ConstantS{S: s.Value}, nil
	case "exponential":
		if s.Mean == 0 {
			return nil, errors.New("exponential DFE requires a non-zero mean")
		}
		return ExponentialS{Mean: s.Mean}, nil
	case "gaussian":
		if !(s.SD > 0) {
			return nil, errors.New("gaussian DFE requires sd > 0")
		}
		return GaussianS{SD: s.SD}, nil
	case "uniform":
		if !(s.Hi > s.Lo) {
			return nil, errors.New("uniform DFE requires hi > lo")
		}
		return UniformS{Lo: s.Lo, Hi: s.Hi}, nil
	case "gamma":
		if s.Mean == 0 || !(s.Shape > 0) {
			return nil, errors.New("gamma DFE requires a non-zero mean and shape > 0")
		}
		return GammaS{Mean: s.Mean, Shape: s.Shape}, nil
	default:
		return nil, errors.New("unsupported DFE type: " + s.Type)
	}
}
