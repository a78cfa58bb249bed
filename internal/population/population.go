package population

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSize        = errors.New("population size must be > 0")
	ErrInvalidLoci        = errors.New("locus count must be > 0")
	ErrInvariantViolation = errors.New("population invariant violated")
)

// Population is the state advanced by the generation engine. Genotypes are
// stored individual-major with stride Loci, so individual i at locus l is
// Genotypes[i*Loci+l]. Metadata has one entry per individual.
type Population struct {
	Loci       int
	N          int
	Generation uint32

	Genotypes []DiploidGenotype
	Metadata  []DiploidMetadata

	Gametes        []Gamete
	Mutations      []Mutation
	MutationCounts []uint32

	Fixations     []Mutation
	FixationTimes []uint32

	// Fit is true when Metadata already carries g, e and w for the current
	// individuals (set by the engine once offspring metadata is finalized).
	Fit bool

	lookup            map[float64]int
	retainedFixations map[int]struct{}
}

// New builds a single-locus population of n founders sharing one empty
// gamete.
func New(n int) (*Population, error) {
	return NewMultiLocus(n, 1)
}

// NewMultiLocus builds n founders over loci loci. Each locus starts with one
// empty gamete carried by all 2n copies.
func NewMultiLocus(n, loci int) (*Population, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	if loci <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLoci, loci)
	}

	p := &Population{
		Loci:              loci,
		N:                 n,
		Genotypes:         make([]DiploidGenotype, n*loci),
		Metadata:          make([]DiploidMetadata, n),
		Gametes:           make([]Gamete, loci),
		lookup:            make(map[float64]int),
		retainedFixations: make(map[int]struct{}),
	}
	for l := 0; l < loci; l++ {
		p.Gametes[l] = Gamete{N: uint32(2 * n)}
	}
	for i := 0; i < n; i++ {
		for l := 0; l < loci; l++ {
			p.Genotypes[i*loci+l] = DiploidGenotype{First: l, Second: l}
		}
		p.Metadata[i] = founderMetadata(i)
	}
	return p, nil
}

// Genotype returns the per-locus gamete pairs of individual i. The slice
// aliases population storage.
func (p *Population) Genotype(i int) []DiploidGenotype {
	return p.Genotypes[i*p.Loci : (i+1)*p.Loci]
}

func (p *Population) TwoN() int {
	return 2 * p.N
}

// Occupied reports whether a segregating or retained mutation already sits
// at pos.
func (p *Population) Occupied(pos float64) bool {
	_, ok := p.lookup[pos]
	return ok
}

func (p *Population) claimPosition(pos float64, handle int) {
	p.lookup[pos] = handle
}

// ReleasePosition drops handle's position from the lookup if the lookup
// still points at handle.
func (p *Population) ReleasePosition(handle int) {
	pos := p.Mutations[handle].Pos
	if owner, ok := p.lookup[pos]; ok && owner == handle {
		delete(p.lookup, pos)
	}
}

// MarkFixationRecorded returns false if handle was already recorded as a
// fixation that stays in the gametes.
func (p *Population) MarkFixationRecorded(handle int) bool {
	if _, ok := p.retainedFixations[handle]; ok {
		return false
	}
	p.retainedFixations[handle] = struct{}{}
	return true
}

func (p *Population) clearFixationRecord(handle int) {
	delete(p.retainedFixations, handle)
}

// InsertMutation places m in a recycled slot when the bin has one, else
// appends. The new mutation starts with count zero and claims its position.
func (p *Population) InsertMutation(bins *RecyclingBins, m Mutation) (int, bool) {
	if h, ok := bins.NextMutationSlot(); ok {
		p.Mutations[h] = m
		p.MutationCounts[h] = 0
		p.clearFixationRecord(h)
		p.claimPosition(m.Pos, h)
		return h, true
	}
	p.Mutations = append(p.Mutations, m)
	p.MutationCounts = append(p.MutationCounts, 0)
	h := len(p.Mutations) - 1
	p.claimPosition(m.Pos, h)
	return h, false
}

// InsertGamete copies the handle lists into a recycled gamete slot (reusing
// its backing arrays) or a new one. The gamete starts with N == 0; counts
// are assigned by RecountGametes.
func (p *Population) InsertGamete(bins *RecyclingBins, neutral, selected []int) (int, bool) {
	if h, ok := bins.NextGameteSlot(); ok {
		g := &p.Gametes[h]
		g.N = 0
		g.Neutral = append(g.Neutral[:0], neutral...)
		g.Selected = append(g.Selected[:0], selected...)
		return h, true
	}
	p.Gametes = append(p.Gametes, Gamete{
		Neutral:  append([]int(nil), neutral...),
		Selected: append([]int(nil), selected...),
	})
	return len(p.Gametes) - 1, false
}

// RecountGametes assigns every gamete's N from Genotypes and recomputes
// mutation counts from the live gametes.
func (p *Population) RecountGametes() {
	p.CountGametes(p.Genotypes)
}

// ResetGameteCounts zeroes every gamete's N.
func (p *Population) ResetGameteCounts() {
	for i := range p.Gametes {
		p.Gametes[i].N = 0
	}
}

// CountGametes is RecountGametes over an offspring genotype buffer that has
// not been installed yet.
func (p *Population) CountGametes(genotypes []DiploidGenotype) {
	p.ResetGameteCounts()
	for _, dip := range genotypes {
		p.Gametes[dip.First].N++
		p.Gametes[dip.Second].N++
	}
	for i := range p.MutationCounts {
		p.MutationCounts[i] = 0
	}
	for i := range p.Gametes {
		g := &p.Gametes[i]
		if g.N == 0 {
			continue
		}
		for _, m := range g.Neutral {
			p.MutationCounts[m] += g.N
		}
		for _, m := range g.Selected {
			p.MutationCounts[m] += g.N
		}
	}
}

// SwapOffspring installs the offspring generation and hands back the
// parental slices for reuse as the next offspring buffers.
func (p *Population) SwapOffspring(genotypes []DiploidGenotype, metadata []DiploidMetadata) ([]DiploidGenotype, []DiploidMetadata) {
	oldGenotypes, oldMetadata := p.Genotypes, p.Metadata
	p.Genotypes, p.Metadata = genotypes, metadata
	p.N = len(metadata)
	return oldGenotypes, oldMetadata
}

func (p *Population) LiveGametes() int {
	live := 0
	for i := range p.Gametes {
		if p.Gametes[i].N > 0 {
			live++
		}
	}
	return live
}

// Segregating counts mutations with 0 < count < 2N.
func (p *Population) Segregating() int {
	twoN := uint32(p.TwoN())
	n := 0
	for _, c := range p.MutationCounts {
		if c > 0 && c < twoN {
			n++
		}
	}
	return n
}

// MeanFitness averages Metadata.W.
func (p *Population) MeanFitness() float64 {
	if len(p.Metadata) == 0 {
		return 0
	}
	total := 0.0
	for i := range p.Metadata {
		total += p.Metadata[i].W
	}
	return total / float64(len(p.Metadata))
}
