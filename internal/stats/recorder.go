package stats

import (
	"gonum.org/v1/gonum/stat"

	"popgensim/internal/model"
	"popgensim/internal/population"
)

// Recorder collects per-generation diagnostics of the parental population.
// It satisfies the engine's temporal sampler contract and never modifies
// the population.
type Recorder struct {
	every       int
	diagnostics []model.GenerationDiagnostics

	w []float64
	g []float64
	p []float64
}

// NewRecorder records every generation whose index is a multiple of every.
// every <= 1 records all generations.
func NewRecorder(every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{every: every}
}

func (r *Recorder) Sample(pop *population.Population) error {
	if int(pop.Generation)%r.every != 0 && pop.Generation != 1 {
		return nil
	}
	r.diagnostics = append(r.diagnostics, Summarize(pop, r.scratch(pop.N)))
	return nil
}

func (r *Recorder) Diagnostics() []model.GenerationDiagnostics {
	return append([]model.GenerationDiagnostics(nil), r.diagnostics...)
}

func (r *Recorder) scratch(n int) [3][]float64 {
	if cap(r.w) < n {
		r.w, r.g, r.p = make([]float64, n), make([]float64, n), make([]float64, n)
	}
	return [3][]float64{r.w[:n], r.g[:n], r.p[:n]}
}

// Summarize computes the diagnostics of pop's current metadata.
func Summarize(pop *population.Population, scratch [3][]float64) model.GenerationDiagnostics {
	w, g, p := scratch[0], scratch[1], scratch[2]
	for i := 0; i < pop.N; i++ {
		md := pop.Metadata[i]
		w[i], g[i], p[i] = md.W, md.G, md.G+md.E
	}
	meanW, varW := stat.PopMeanVariance(w, nil)
	meanG, varG := stat.PopMeanVariance(g, nil)
	return model.GenerationDiagnostics{
		Generation:   pop.Generation,
		N:            pop.N,
		MeanFitness:  meanW,
		FitnessVar:   varW,
		MeanGenetic:  meanG,
		GeneticVar:   varG,
		MeanTrait:    stat.Mean(p, nil),
		Segregating:  pop.Segregating(),
		LiveGametes:  pop.LiveGametes(),
		MutationPool: len(pop.Mutations),
		Fixations:    len(pop.Fixations),
	}
}
