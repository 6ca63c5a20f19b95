package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/qcast/qcast/pkg/errcodes"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	ChapterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qcast_chapter_mutations_total",
			Help: "Total number of chapter mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ChapterRecomputedNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qcast_chapter_recomputed_nodes",
			Help:    "Number of chapters whose level and path were rewritten by one mutation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. 2048
		},
	)

	ChapterCycleRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qcast_chapter_cycle_rejections_total",
			Help: "Total number of moves rejected because they would create a cycle",
		},
	)
)

// RecordChapterMutation counts a finished mutation. Typed errors are labelled
// by their code so rejected requests can be told apart from storage failures.
func RecordChapterMutation(operation string, err error) {
	ChapterMutations.WithLabelValues(operation, Outcome(err)).Inc()
	if errors.Is(err, errcodes.CycleDetected()) {
		ChapterCycleRejections.Inc()
	}
}

// RecordRecomputed observes how many nodes a recomputation touched.
func RecordRecomputed(nodes int) {
	ChapterRecomputedNodes.Observe(float64(nodes))
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var e *errcodes.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return OutcomeError
}
