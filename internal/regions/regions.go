package regions

import (
	"errors"
	"fmt"

	"popgensim/internal/rng"
)

var ErrInvalidRegion = errors.New("invalid region")

// Region is a half-open genomic interval [Begin, End) with a relative
// weight.
type Region struct {
	Begin  float64 `yaml:"begin" json:"begin"`
	End    float64 `yaml:"end" json:"end"`
	Weight float64 `yaml:"weight" json:"weight"`
}

func (r Region) Validate() error {
	if !(r.End > r.Begin) {
		return fmt.Errorf("%w: end %v must exceed begin %v", ErrInvalidRegion, r.End, r.Begin)
	}
	if !(r.Weight > 0) {
		return fmt.Errorf("%w: weight %v must be > 0", ErrInvalidRegion, r.Weight)
	}
	return nil
}

// Shift returns the region moved by offset, used to lay loci end to end.
func (r Region) Shift(offset float64) Region {
	return Region{Begin: r.Begin + offset, End: r.End + offset, Weight: r.Weight}
}

// pickRegion chooses an index proportional to weights. A single region is
// chosen without consuming the stream.
func pickRegion(r *rng.Stream, weights []float64) int {
	if len(weights) == 1 {
		return 0
	}
	return int(r.Categorical(weights).Rand())
}

func weightsOf(rs []Region) []float64 {
	w := make([]float64, len(rs))
	for i, reg := range rs {
		w[i] = reg.Weight
	}
	return w
}
