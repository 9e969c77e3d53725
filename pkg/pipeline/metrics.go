package pipeline

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
)

const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeGeneration  = "generation_error"
	OutcomeError       = "error"
)

type metrics struct {
	retrievalDuration  prometheus.Histogram
	generationDuration prometheus.Histogram
	requests           *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		retrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "griot_retrieval_duration_seconds",
			Help:    "Time spent retrieving personas for a generation query.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		generationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "griot_generation_duration_seconds",
			Help:    "Time spent in the generation backend for a query.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "griot_requests_total",
			Help: "Generation queries by outcome.",
		}, []string{"outcome"}),
	}
}

// outcome buckets err into a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, errdefs.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, errdefs.ErrProviderUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, errdefs.ErrBackendGeneration):
		return OutcomeGeneration
	default:
		return OutcomeError
	}
}
