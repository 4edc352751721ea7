// Package metrics exports tuning progress as Prometheus metrics.
package metrics

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/plucktune/internal/de"
)

const namespace = "plucktune"

// Recorder holds the collectors of one tuning process. All collectors are
// registered on the registry passed to NewRecorder.
type Recorder struct {
	generation  prometheus.Gauge
	bestFitness prometheus.Gauge
	meanFitness prometheus.Gauge
	spread      prometheus.Gauge
	evaluations prometheus.Counter
	rejected    prometheus.Counter
	checkpoints *prometheus.CounterVec

	lastEvaluations int64
	lastRejected    int64
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Number of completed generations",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Fitness of the best candidate, lower is better",
		}),
		meanFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness over finite population members",
		}),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fitness_spread",
			Help:      "Standard deviation of finite population fitness",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of objective evaluations",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_evaluations_total",
			Help:      "Evaluations that returned NaN or an infinity",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint saves by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		r.generation, r.bestFitness, r.meanFitness, r.spread,
		r.evaluations, r.rejected, r.checkpoints,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe updates all gauges from an optimizer snapshot. The counters
// advance by the difference to the previous snapshot. Not safe for
// concurrent use.
func (r *Recorder) Observe(s de.Stats) {
	r.generation.Set(float64(s.Generation))
	r.bestFitness.Set(s.BestFitness)
	if !math.IsNaN(s.MeanFitness) {
		r.meanFitness.Set(s.MeanFitness)
		r.spread.Set(s.Spread)
	}

	if d := s.Evaluations - r.lastEvaluations; d > 0 {
		r.evaluations.Add(float64(d))
	}
	if d := s.Rejected - r.lastRejected; d > 0 {
		r.rejected.Add(float64(d))
	}
	r.lastEvaluations = s.Evaluations
	r.lastRejected = s.Rejected
}

// CheckpointSaved counts a checkpoint save attempt.
func (r *Recorder) CheckpointSaved(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.checkpoints.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics gathered by g. Scrapes are logged at debug
// level.
func Handler(g prometheus.Gatherer) http.Handler {
	return logRequests(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
