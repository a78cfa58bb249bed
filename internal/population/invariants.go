package population

import "fmt"

// CheckInvariants recounts every reference from scratch and compares it to
// the stored counts. It is O(N + total gamete content) and meant for tests
// and debug runs.
func (p *Population) CheckInvariants() error {
	if len(p.Genotypes) != p.N*p.Loci {
		return fmt.Errorf("%w: %d genotype entries for N=%d loci=%d", ErrInvariantViolation, len(p.Genotypes), p.N, p.Loci)
	}
	if len(p.Metadata) != p.N {
		return fmt.Errorf("%w: %d metadata entries for N=%d", ErrInvariantViolation, len(p.Metadata), p.N)
	}
	if len(p.MutationCounts) != len(p.Mutations) {
		return fmt.Errorf("%w: %d counts for %d mutations", ErrInvariantViolation, len(p.MutationCounts), len(p.Mutations))
	}

	refs := make([]uint32, len(p.Gametes))
	for _, dip := range p.Genotypes {
		if dip.First < 0 || dip.First >= len(p.Gametes) || dip.Second < 0 || dip.Second >= len(p.Gametes) {
			return fmt.Errorf("%w: genotype references missing gamete %+v", ErrInvariantViolation, dip)
		}
		refs[dip.First]++
		refs[dip.Second]++
	}

	total := uint64(0)
	counts := make([]uint32, len(p.Mutations))
	for i := range p.Gametes {
		g := &p.Gametes[i]
		if g.N != refs[i] {
			return fmt.Errorf("%w: gamete %d has n=%d but %d references", ErrInvariantViolation, i, g.N, refs[i])
		}
		total += uint64(g.N)
		if g.N == 0 {
			continue
		}
		if err := p.checkHandles(i, g.Neutral, true, counts); err != nil {
			return err
		}
		if err := p.checkHandles(i, g.Selected, false, counts); err != nil {
			return err
		}
	}
	if want := uint64(2 * p.N * p.Loci); total != want {
		return fmt.Errorf("%w: gamete copies sum to %d, want %d", ErrInvariantViolation, total, want)
	}

	for i, c := range counts {
		if p.MutationCounts[i] != c {
			return fmt.Errorf("%w: mutation %d count=%d but %d gamete copies", ErrInvariantViolation, i, p.MutationCounts[i], c)
		}
		if c > 0 {
			if owner, ok := p.lookup[p.Mutations[i].Pos]; !ok || owner != i {
				return fmt.Errorf("%w: live mutation %d at %v missing from position lookup", ErrInvariantViolation, i, p.Mutations[i].Pos)
			}
		}
	}
	return nil
}

func (p *Population) checkHandles(gamete int, handles []int, neutral bool, counts []uint32) error {
	g := &p.Gametes[gamete]
	prev := -1.0
	for k, m := range handles {
		if m < 0 || m >= len(p.Mutations) {
			return fmt.Errorf("%w: gamete %d references missing mutation %d", ErrInvariantViolation, gamete, m)
		}
		mut := p.Mutations[m]
		if mut.Neutral != neutral {
			return fmt.Errorf("%w: gamete %d stores mutation %d in the wrong list", ErrInvariantViolation, gamete, m)
		}
		if k > 0 && mut.Pos <= prev {
			return fmt.Errorf("%w: gamete %d mutations out of position order", ErrInvariantViolation, gamete)
		}
		prev = mut.Pos
		counts[m] += g.N
	}
	return nil
}
