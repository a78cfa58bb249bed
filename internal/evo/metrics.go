package evo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popgensim_generations_total",
		Help: "Generations advanced by result",
	}, []string{"result"})

	// slotsTotal counts mutation and gamete slots by origin (new or recycled).
	slotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popgensim_slots_total",
		Help: "Mutation and gamete slots handed out by kind and origin",
	}, []string{"kind", "origin"})

	fixationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "popgensim_fixations_total",
		Help: "Mutations moved to the fixation record",
	})

	meanFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "popgensim_mean_fitness",
		Help: "Parental mean fitness of the last advanced generation",
	})

	segregatingMutations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "popgensim_segregating_mutations",
		Help: "Segregating mutations after the last generation",
	})
)

func recordSlot(kind string, recycled bool) {
	origin := "new"
	if recycled {
		origin = "recycled"
	}
	slotsTotal.WithLabelValues(kind, origin).Inc()
}
