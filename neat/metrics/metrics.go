// Package metrics exports evolution progress as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baldhumanity/hyperneat-go/neat"
)

// Reporter is a neat.Reporter updating one set of collectors per run. The
// run label distinguishes populations sharing a registry.
type Reporter struct {
	run string

	generation  *prometheus.GaugeVec
	bestFitness *prometheus.GaugeVec
	meanFitness *prometheus.GaugeVec
	stdev       *prometheus.GaugeVec
	species     *prometheus.GaugeVec
	population  *prometheus.GaugeVec
	bestSize    *prometheus.GaugeVec
	replaced    *prometheus.CounterVec
	culled      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewReporter creates the collectors under namespace and registers them
// with reg. Registering two reporters with the same namespace on one
// registry fails.
func NewReporter(reg prometheus.Registerer, namespace, run string) (*Reporter, error) {
	labels := []string{"run"}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	r := &Reporter{
		run:         run,
		generation:  gauge("generation", "Last finished generation."),
		bestFitness: gauge("best_fitness", "Fitness of the best genome seen so far."),
		meanFitness: gauge("mean_fitness", "Mean fitness of the last generation."),
		stdev:       gauge("fitness_stdev", "Standard deviation of fitness in the last generation."),
		species:     gauge("species", "Number of species after speciation."),
		population:  gauge("population", "Number of live members."),
		bestSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_genes",
			Help:      "Gene counts of the best genome seen so far.",
		}, []string{"run", "kind"}),
		replaced: counter("replaced_total", "Members overwritten by children."),
		culled:   counter("culled_total", "Members removed with their species."),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one generation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels),
	}

	for _, c := range []prometheus.Collector{
		r.generation, r.bestFitness, r.meanFitness, r.stdev, r.species,
		r.population, r.bestSize, r.replaced, r.culled, r.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reporter) EndGeneration(stats neat.GenerationStats, best *neat.Genome) {
	r.generation.WithLabelValues(r.run).Set(float64(stats.Generation))
	r.meanFitness.WithLabelValues(r.run).Set(stats.MeanFitness)
	r.stdev.WithLabelValues(r.run).Set(stats.StdevFitness)
	r.species.WithLabelValues(r.run).Set(float64(stats.SpeciesCount))
	r.population.WithLabelValues(r.run).Set(float64(stats.PopulationSize))
	r.replaced.WithLabelValues(r.run).Add(float64(stats.Replaced))
	r.culled.WithLabelValues(r.run).Add(float64(stats.Culled))
	r.duration.WithLabelValues(r.run).Observe(stats.Duration.Seconds())

	if best != nil {
		r.bestFitness.WithLabelValues(r.run).Set(best.Fitness)
		r.bestSize.WithLabelValues(r.run, "nodes").Set(float64(len(best.Nodes)))
		r.bestSize.WithLabelValues(r.run, "connections").Set(float64(len(best.Connections)))
	}
}

// Handler serves the metrics gathered from g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
