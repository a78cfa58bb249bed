package stats

import (
	"sort"

	"popgensim/internal/model"
	"popgensim/internal/population"
)

// Snapshot lists every mutation still carried by the population, including
// fixations kept in the gametes, ordered by position.
func Snapshot(runID string, pop *population.Population, version model.VersionedRecord) model.PopulationSnapshot {
	twoN := float64(pop.TwoN())
	sites := make([]model.SiteRecord, 0, pop.Segregating())
	for h, c := range pop.MutationCounts {
		if c == 0 {
			continue
		}
		m := pop.Mutations[h]
		sites = append(sites, model.SiteRecord{
			Pos:       m.Pos,
			S:         m.S,
			H:         m.H,
			Origin:    m.Origin,
			Neutral:   m.Neutral,
			Count:     c,
			Frequency: float64(c) / twoN,
		})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].Pos < sites[j].Pos })
	return model.PopulationSnapshot{
		VersionedRecord: version,
		RunID:           runID,
		Generation:      pop.Generation,
		N:               pop.N,
		Loci:            pop.Loci,
		Sites:           sites,
	}
}

func Fixations(pop *population.Population) []model.FixationRecord {
	out := make([]model.FixationRecord, len(pop.Fixations))
	for i, m := range pop.Fixations {
		out[i] = model.FixationRecord{
			Generation: pop.FixationTimes[i],
			Pos:        m.Pos,
			S:          m.S,
			H:          m.H,
			Origin:     m.Origin,
			Neutral:    m.Neutral,
		}
	}
	return out
}
