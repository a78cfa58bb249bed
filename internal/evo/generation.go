package evo

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

// Params are the per-run collaborators of the engine. Slices indexed by
// locus must have one entry per locus; Interlocus has one entry per pair of
// adjacent loci.
type Params struct {
	MutationRates  []float64
	Mutations      []MutationModel
	Recombinations []RecombinationModel
	Interlocus     []InterlocusRecombination
	Rules          Rules
	SelfingRate    float64
	Removal        RemovalPolicy
	Sampler        TemporalSampler
}

func (p *Params) Validate(loci int) error {
	if loci <= 0 {
		return fmt.Errorf("%w: locus count %d", ErrInvalidInput, loci)
	}
	if p.Rules == nil {
		return fmt.Errorf("%w: rules are required", ErrInvalidInput)
	}
	if p.SelfingRate < 0 || p.SelfingRate > 1 {
		return fmt.Errorf("%w: selfing rate %v outside [0, 1]", ErrInvalidInput, p.SelfingRate)
	}
	if len(p.MutationRates) != loci {
		return fmt.Errorf("%w: %d mutation rates for %d loci", ErrInvalidInput, len(p.MutationRates), loci)
	}
	if len(p.Mutations) != loci {
		return fmt.Errorf("%w: %d mutation models for %d loci", ErrInvalidInput, len(p.Mutations), loci)
	}
	for l, mu := range p.MutationRates {
		if mu < 0 {
			return fmt.Errorf("%w: negative mutation rate %v at locus %d", ErrInvalidInput, mu, l)
		}
		if mu > 0 && p.Mutations[l] == nil {
			return fmt.Errorf("%w: locus %d has a mutation rate but no mutation model", ErrInvalidInput, l)
		}
	}
	if p.Recombinations != nil && len(p.Recombinations) != loci {
		return fmt.Errorf("%w: %d recombination models for %d loci", ErrInvalidInput, len(p.Recombinations), loci)
	}
	if len(p.Interlocus) != loci-1 {
		return fmt.Errorf("%w: %d inter-locus policies for %d loci", ErrInvalidInput, len(p.Interlocus), loci)
	}
	for l, il := range p.Interlocus {
		if il == nil {
			return fmt.Errorf("%w: inter-locus policy %d is nil", ErrInvalidInput, l)
		}
	}
	return nil
}

// Engine advances a population by one Wright-Fisher generation. It keeps
// the recycling bins and the spare offspring buffers between calls.
type Engine struct {
	params Params
	loci   int
	bins   *population.RecyclingBins

	spareGenotypes []population.DiploidGenotype
	spareMetadata  []population.DiploidMetadata
	neutral        []int
	selected       []int
	newMutations   []int
}

func NewEngine(params Params, loci int) (*Engine, error) {
	if err := params.Validate(loci); err != nil {
		return nil, err
	}
	if params.Recombinations == nil {
		params.Recombinations = make([]RecombinationModel, loci)
	}
	for l, rec := range params.Recombinations {
		if rec == nil {
			params.Recombinations[l] = NoRecombination{}
		}
	}
	if params.Removal == nil {
		params.Removal = RemoveAll{}
	}
	if params.Sampler == nil {
		params.Sampler = RecordNothing{}
	}
	return &Engine{
		params: params,
		loci:   loci,
		bins:   population.NewRecyclingBins(),
	}, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// Advance produces targetSize offspring from pop and installs them. The
// caller has already set pop.Generation to the generation being produced.
// It returns the mean fitness of the parental generation.
//
// On error the parental genotypes stay installed, gamete and mutation
// counts are recomputed from them, and positions claimed by new mutations
// are released.
func (e *Engine) Advance(ctx context.Context, r *rng.Stream, pop *population.Population, targetSize int) (float64, error) {
	if targetSize <= 0 {
		return 0, fmt.Errorf("%w: target size %d", ErrInvalidInput, targetSize)
	}
	if pop.Loci != e.loci {
		return 0, fmt.Errorf("%w: population has %d loci, engine expects %d", ErrInvalidInput, pop.Loci, e.loci)
	}

	ctx, span := otel.Tracer("popgensim/evo").Start(ctx, "evo.Engine.Advance",
		trace.WithAttributes(
			attribute.Int64("generation", int64(pop.Generation)),
			attribute.Int("parents", pop.N),
			attribute.Int("offspring", targetSize),
		),
	)
	defer span.End()

	e.bins.Rebuild(pop)

	wbar, err := e.params.Rules.Recompute(ctx, pop)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
		return 0, fmt.Errorf("recompute fitness: %w", err)
	}
	parents, err := NewFitnessSampler(r, pop)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parent sampler")
		return 0, err
	}
	if err := e.params.Sampler.Sample(pop); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "temporal sampler failed")
		return 0, fmt.Errorf("temporal sampler: %w", err)
	}

	pop.ResetGameteCounts()
	e.newMutations = e.newMutations[:0]
	genotypes := resize(e.spareGenotypes, targetSize*e.loci)
	metadata := resize(e.spareMetadata, targetSize)
	if err := e.produce(r, pop, parents, genotypes, metadata); err != nil {
		e.rollback(pop)
		span.RecordError(err)
		span.SetStatus(codes.Error, "offspring production failed")
		return 0, err
	}

	pop.CountGametes(genotypes)
	pruneFixations(pop, uint32(2*targetSize), e.params.Removal)
	e.spareGenotypes, e.spareMetadata = pop.SwapOffspring(genotypes, metadata)
	_, deferred := e.params.Rules.(deferredFitness)
	pop.Fit = !deferred

	span.SetAttributes(attribute.Float64("wbar", wbar), attribute.Int("new_mutations", len(e.newMutations)))
	span.SetStatus(codes.Ok, "")
	return wbar, nil
}

func (e *Engine) produce(r *rng.Stream, pop *population.Population, parents *FitnessSampler, genotypes []population.DiploidGenotype, metadata []population.DiploidMetadata) error {
	for i := range metadata {
		p1 := parents.Pick1()
		p2 := parents.Pick2(p1, e.params.SelfingRate)
		swap1 := r.Uniform() < 0.5
		swap2 := r.Uniform() < 0.5

		parent1, parent2 := pop.Genotype(p1), pop.Genotype(p2)
		child := genotypes[i*e.loci : (i+1)*e.loci]
		for l := 0; l < e.loci; l++ {
			first, flip, err := e.transmit(r, pop, l, parent1[l], swap1)
			if err != nil {
				return err
			}
			swap1 = swap1 != flip
			second, flip, err := e.transmit(r, pop, l, parent2[l], swap2)
			if err != nil {
				return err
			}
			swap2 = swap2 != flip
			child[l] = population.DiploidGenotype{First: first, Second: second}
		}
		if err := e.params.Rules.Update(r, pop, &metadata[i], child, i, p1, p2); err != nil {
			return fmt.Errorf("offspring %d: %w", i, err)
		}
	}
	return nil
}

// transmit builds the gamete one parent passes on at locus l. swap selects
// the parental gamete the transmission starts from. The returned flip
// reports whether the strand carried into the next locus changes.
func (e *Engine) transmit(r *rng.Stream, pop *population.Population, l int, dip population.DiploidGenotype, swap bool) (int, bool, error) {
	flip := false
	if l > 0 && e.params.Interlocus[l-1].Crossovers(r)%2 == 1 {
		swap = !swap
		flip = true
	}
	g1, g2 := dip.First, dip.Second
	if swap {
		g1, g2 = g2, g1
	}

	breaks, err := e.params.Recombinations[l].Breakpoints(r, pop, g1, g2)
	if err != nil {
		return 0, false, fmt.Errorf("recombination at locus %d: %w", l, err)
	}
	if len(breaks)%2 == 1 {
		flip = !flip
	}
	nmut := r.Poisson(e.params.MutationRates[l])

	recombinant := len(breaks) > 0 && g1 != g2
	if !recombinant && nmut == 0 {
		return g1, flip, nil
	}
	if recombinant {
		e.neutral = mergeAt(pop, e.neutral[:0], pop.Gametes[g1].Neutral, pop.Gametes[g2].Neutral, breaks)
		e.selected = mergeAt(pop, e.selected[:0], pop.Gametes[g1].Selected, pop.Gametes[g2].Selected, breaks)
	} else {
		e.neutral = append(e.neutral[:0], pop.Gametes[g1].Neutral...)
		e.selected = append(e.selected[:0], pop.Gametes[g1].Selected...)
	}

	for k := 0; k < nmut; k++ {
		m, err := e.params.Mutations[l].NewMutation(r, pop.Generation, pop.Occupied)
		if err != nil {
			return 0, false, fmt.Errorf("mutation at locus %d: %w", l, err)
		}
		if pop.Occupied(m.Pos) {
			return 0, false, fmt.Errorf("%w: mutation model reused occupied position %v", ErrInvariantViolation, m.Pos)
		}
		h, recycled := pop.InsertMutation(e.bins, m)
		recordSlot("mutation", recycled)
		e.newMutations = append(e.newMutations, h)
		if m.Neutral {
			e.neutral = insertByPosition(pop, e.neutral, h)
		} else {
			e.selected = insertByPosition(pop, e.selected, h)
		}
	}

	h, recycled := pop.InsertGamete(e.bins, e.neutral, e.selected)
	recordSlot("gamete", recycled)
	return h, flip, nil
}

func (e *Engine) rollback(pop *population.Population) {
	pop.RecountGametes()
	for _, h := range e.newMutations {
		pop.ReleasePosition(h)
	}
	e.newMutations = e.newMutations[:0]
}

// mergeAt interleaves two position-ordered handle lists, switching source
// at every breakpoint.
func mergeAt(pop *population.Population, out, a, b []int, breaks []float64) []int {
	cur, other := a, b
	i, j := 0, 0
	for _, bp := range breaks {
		for i < len(cur) && pop.Mutations[cur[i]].Pos < bp {
			out = append(out, cur[i])
			i++
		}
		for j < len(other) && pop.Mutations[other[j]].Pos < bp {
			j++
		}
		cur, other = other, cur
		i, j = j, i
	}
	return append(out, cur[i:]...)
}

func insertByPosition(pop *population.Population, handles []int, h int) []int {
	pos := pop.Mutations[h].Pos
	at := sort.Search(len(handles), func(k int) bool { return pop.Mutations[handles[k]].Pos > pos })
	return slices.Insert(handles, at, h)
}

// pruneFixations drops fixed mutations the policy removes from every live
// gamete. Their counts stay at 2N until UpdateMutations records them.
func pruneFixations(pop *population.Population, twoN uint32, policy RemovalPolicy) {
	removable := func(h int) bool {
		return pop.MutationCounts[h] == twoN && policy.Remove(pop.Mutations[h])
	}
	found := false
	for h := range pop.MutationCounts {
		if removable(h) {
			found = true
			break
		}
	}
	if !found {
		return
	}
	for i := range pop.Gametes {
		g := &pop.Gametes[i]
		if g.N == 0 {
			continue
		}
		g.Neutral = slices.DeleteFunc(g.Neutral, removable)
		g.Selected = slices.DeleteFunc(g.Selected, removable)
	}
}

func resize[T any](buf []T, n int) []T {
	if cap(buf) < n {
		return make([]T, n)
	}
	return buf[:n]
}
