package experiment

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// FoldReport describes one finished fold.
type FoldReport struct {
	RunID     string
	Fold      int // zero-based
	TrainSize int
	ValidSize int
	Duration  time.Duration
	Score     float64
	Scored    bool
}

// Observer receives progress callbacks from Run. Calls happen on the
// goroutine running Run, one fold at a time.
type Observer interface {
	FoldCompleted(report FoldReport)
	RunCompleted(result *Result)
}

// MetricsObserver exports fold progress as Prometheus metrics.
type MetricsObserver struct {
	foldDuration   prometheus.Histogram
	foldScore      *prometheus.GaugeVec
	foldsCompleted prometheus.Counter
	runScore       prometheus.Gauge
}

// NewMetricsObserver registers the cross-validation metrics on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetricsObserver(reg prometheus.Registerer, namespace string) (*MetricsObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "cvfold"
	}

	m := &MetricsObserver{
		foldDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cv",
			Name:      "fold_duration_seconds",
			Help:      "Wall time spent training and predicting one fold.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		foldScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cv",
			Name:      "fold_score",
			Help:      "Validation score of the most recent run per fold.",
		}, []string{"fold"}),
		foldsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cv",
			Name:      "folds_completed_total",
			Help:      "Number of folds trained to completion.",
		}),
		runScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cv",
			Name:      "oof_score",
			Help:      "Out-of-fold score of the most recent run.",
		}),
	}

	for _, c := range []prometheus.Collector{m.foldDuration, m.foldScore, m.foldsCompleted, m.runScore} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register cross-validation metrics")
		}
	}
	return m, nil
}

// FoldCompleted implements Observer.
func (m *MetricsObserver) FoldCompleted(r FoldReport) {
	m.foldDuration.Observe(r.Duration.Seconds())
	m.foldsCompleted.Inc()
	if r.Scored {
		m.foldScore.WithLabelValues(strconv.Itoa(r.Fold)).Set(r.Score)
	}
}

// RunCompleted implements Observer.
func (m *MetricsObserver) RunCompleted(result *Result) {
	if result != nil && result.Scored {
		m.runScore.Set(result.Score)
	}
}
