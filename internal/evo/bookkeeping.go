package evo

import (
	"fmt"

	"popgensim/internal/population"
)

// UpdateMutations runs once per generation after Advance. Fixations the
// policy removes are recorded, pruned from the gametes and their slots
// become recyclable; fixations the policy keeps are recorded exactly once.
// Lost mutations release their positions. It returns the number of
// fixations recorded.
func UpdateMutations(pop *population.Population, generation uint32, policy RemovalPolicy) (int, error) {
	twoN := uint32(pop.TwoN())
	for h, c := range pop.MutationCounts {
		if c > twoN {
			return 0, fmt.Errorf("%w: mutation %d has count %d with 2N=%d", ErrInvariantViolation, h, c, twoN)
		}
	}

	pruneFixations(pop, twoN, policy)

	fixed := 0
	for h, c := range pop.MutationCounts {
		switch c {
		case 0:
			pop.ReleasePosition(h)
		case twoN:
			m := pop.Mutations[h]
			if policy.Remove(m) {
				pop.MutationCounts[h] = 0
				pop.ReleasePosition(h)
			} else if !pop.MarkFixationRecorded(h) {
				continue
			}
			pop.Fixations = append(pop.Fixations, m)
			pop.FixationTimes = append(pop.FixationTimes, generation)
			fixed++
		}
	}
	fixationsTotal.Add(float64(fixed))
	return fixed, nil
}
