package regions

import (
	"errors"
	"fmt"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

const maxPositionAttempts = 10000

var ErrPositionsExhausted = errors.New("no free mutation position found")

// Sregion is a region where selected mutations arise with effects drawn
// from DFE and dominance H.
type Sregion struct {
	Region
	DFE DFE
	H   float64
}

// MutationRegions places new mutations under an infinite-sites model.
// Neutral and selected mutations arise at rates NeutralRate and
// SelectedRate per gamete per generation; the type of each new mutation is
// chosen in proportion to the two rates.
type MutationRegions struct {
	NeutralRate  float64
	SelectedRate float64
	Neutral      []Region
	Selected     []Sregion

	neutralWeights  []float64
	selectedWeights []float64
}

func NewMutationRegions(neutralRate, selectedRate float64, neutral []Region, selected []Sregion) (*MutationRegions, error) {
	if neutralRate < 0 || selectedRate < 0 {
		return nil, fmt.Errorf("negative mutation rate: neutral=%v selected=%v", neutralRate, selectedRate)
	}
	if neutralRate > 0 && len(neutral) == 0 {
		return nil, errors.New("neutral mutation rate > 0 requires at least one neutral region")
	}
	if selectedRate > 0 && len(selected) == 0 {
		return nil, errors.New("selected mutation rate > 0 requires at least one selected region")
	}
	for i, reg := range neutral {
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("neutral region %d: %w", i, err)
		}
	}
	selectedWeights := make([]float64, len(selected))
	for i, reg := range selected {
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("selected region %d: %w", i, err)
		}
		if reg.DFE == nil {
			return nil, fmt.Errorf("selected region %d: DFE is required", i)
		}
		selectedWeights[i] = reg.Weight
	}
	return &MutationRegions{
		NeutralRate:     neutralRate,
		SelectedRate:    selectedRate,
		Neutral:         neutral,
		Selected:        selected,
		neutralWeights:  weightsOf(neutral),
		selectedWeights: selectedWeights,
	}, nil
}

// Rate is the total per-gamete mutation rate.
func (m *MutationRegions) Rate() float64 {
	return m.NeutralRate + m.SelectedRate
}

// NewMutation draws, in order: the neutral/selected coin (only when both
// rates are positive), the region, the position (redrawn while occupied),
// then the effect size of a selected mutation.
func (m *MutationRegions) NewMutation(r *rng.Stream, generation uint32, occupied func(pos float64) bool) (population.Mutation, error) {
	total := m.Rate()
	if total <= 0 {
		return population.Mutation{}, errors.New("mutation requested with zero total rate")
	}
	neutral := m.SelectedRate == 0
	if m.NeutralRate > 0 && m.SelectedRate > 0 {
		neutral = r.Uniform() < m.NeutralRate/total
	}

	if neutral {
		reg := m.Neutral[pickRegion(r, m.neutralWeights)]
		pos, err := drawPosition(r, reg, occupied)
		if err != nil {
			return population.Mutation{}, err
		}
		return population.Mutation{Pos: pos, Origin: generation, Neutral: true}, nil
	}

	reg := m.Selected[pickRegion(r, m.selectedWeights)]
	pos, err := drawPosition(r, reg.Region, occupied)
	if err != nil {
		return population.Mutation{}, err
	}
	return population.Mutation{
		Pos:    pos,
		S:      reg.DFE.Draw(r),
		H:      reg.H,
		Origin: generation,
	}, nil
}

func drawPosition(r *rng.Stream, reg Region, occupied func(float64) bool) (float64, error) {
	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		pos := r.UniformRange(reg.Begin, reg.End)
		if occupied == nil || !occupied(pos) {
			return pos, nil
		}
	}
	return 0, fmt.Errorf("%w in [%v, %v)", ErrPositionsExhausted, reg.Begin, reg.End)
}
