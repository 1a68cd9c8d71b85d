// Package experiment drives cross-validation: it asks a splitter for folds,
// trains a fresh model per fold through a Trainer, and collects out-of-fold
// predictions, averaged test predictions, fold scores and feature
// importances.
//
// Example:
//
//	sgkf, _ := model_selection.NewStratifiedGroupKFold(5)
//	trainer := experiment.NewEstimatorTrainer("linear", func() model.Estimator {
//	    return linear.NewLinearRegression()
//	})
//	res, err := experiment.Run(ctx, trainer, sgkf, X, y,
//	    experiment.WithGroups(groups),
//	    experiment.WithScoring(metrics.RMSE),
//	)
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/cvfold/metrics"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
	"github.com/YuminosukeSato/cvfold/pkg/log"
	"github.com/YuminosukeSato/cvfold/sklearn/model_selection"
)

// Result holds everything a cross-validation run produces.
type Result struct {
	RunID   string
	NSplits int

	// OOF holds, for every training sample, the prediction of the model
	// that did not see it.
	OOF *mat.VecDense

	// Predictions is the mean of the per-fold test predictions, or nil
	// when no test matrix was given.
	Predictions *mat.VecDense

	// FeatureImportances holds one entry per fold; nil where the trainer
	// does not expose importances.
	FeatureImportances [][]FeatureWeight

	// FoldScores has one entry per scored fold. A fold without validation
	// rows is not scored, so FoldScores[j] belongs to fold ScoredFolds[j],
	// not necessarily to fold j.
	FoldScores  []float64
	ScoredFolds []int

	// Score is computed on the full OOF vector. Valid only when Scored.
	Score  float64
	Scored bool

	Durations []time.Duration
}

// MeanScore returns the mean of the fold scores.
func (r *Result) MeanScore() float64 {
	if len(r.FoldScores) == 0 {
		return 0
	}
	return stat.Mean(r.FoldScores, nil)
}

// StdScore returns the population standard deviation of the fold scores.
func (r *Result) StdScore() float64 {
	if len(r.FoldScores) < 2 {
		return 0
	}
	return stat.PopStdDev(r.FoldScores, nil)
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	test           mat.Matrix
	groups         []string
	scoring        metrics.ScoreFunc
	logger         log.Logger
	probaColumn    int
	observer       Observer
	tracerProvider trace.TracerProvider
}

// WithTest adds a test matrix whose predictions are averaged over folds.
func WithTest(X mat.Matrix) RunOption {
	return func(c *runConfig) {
		c.test = X
	}
}

// WithGroups passes group identifiers to the splitter.
func WithGroups(groups []string) RunOption {
	return func(c *runConfig) {
		c.groups = groups
	}
}

// WithScoring scores every fold and the full OOF vector.
func WithScoring(fn metrics.ScoreFunc) RunOption {
	return func(c *runConfig) {
		c.scoring = fn
	}
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithProbabilityColumn predicts with PredictProba and keeps column col.
func WithProbabilityColumn(col int) RunOption {
	return func(c *runConfig) {
		c.probaColumn = col
	}
}

// WithObserver receives per-fold progress.
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) {
		c.observer = o
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) RunOption {
	return func(c *runConfig) {
		c.tracerProvider = tp
	}
}

// Run performs cross-validation of trainer over the folds produced by
// splitter. Folds run sequentially; ctx is checked before each fold.
func Run(ctx context.Context, trainer Trainer, splitter model_selection.Splitter, X, y mat.Matrix, opts ...RunOption) (*Result, error) {
	cfg := runConfig{probaColumn: -1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("experiment")
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}

	nSamples, err := validateInputs(trainer, splitter, X, y, cfg.test)
	if err != nil {
		return nil, err
	}

	nSplits := splitter.GetNSplits()
	runID := uuid.NewString()
	tracer := cfg.tracerProvider.Tracer(TracerName)
	ctx, span := startRunSpan(ctx, tracer, runID, nSamples, nSplits)

	res, err := run(ctx, tracer, trainer, splitter, X, y, &cfg, runID, nSplits, nSamples)
	if res != nil && res.Scored {
		span.SetAttributes(attribute.Float64("cv.score", res.Score))
	}
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if cfg.observer != nil {
		cfg.observer.RunCompleted(res)
	}
	return res, nil
}

func run(ctx context.Context, tracer trace.Tracer, trainer Trainer, splitter model_selection.Splitter,
	X, y mat.Matrix, cfg *runConfig, runID string, nSplits, nSamples int) (*Result, error) {
	logger := cfg.logger.With(
		log.ComponentKey, "experiment",
		log.RunIDKey, runID,
	)

	// Folds are computed before any training starts.
	folds, err := splitter.Split(X, y, cfg.groups)
	if err != nil {
		return nil, errors.Wrap(err, "compute folds")
	}

	_, nFeatures := X.Dims()
	logger.Info("Starting cross-validation",
		log.NSplitsKey, nSplits,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)

	res := &Result{
		RunID:              runID,
		NSplits:            nSplits,
		OOF:                mat.NewVecDense(nSamples, nil),
		FeatureImportances: make([][]FeatureWeight, 0, len(folds)),
		Durations:          make([]time.Duration, 0, len(folds)),
	}
	var testSum *mat.VecDense
	if cfg.test != nil {
		nTest, _ := cfg.test.Dims()
		testSum = mat.NewVecDense(nTest, nil)
		res.Predictions = testSum
	}

	for i, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "cross-validation stopped before fold %d/%d", i+1, len(folds))
		}

		logger.Info(fmt.Sprintf("Fold %d/%d", i+1, len(folds)),
			log.FoldKey, i+1,
			log.TrainSizeKey, len(fold.TrainIndices),
			log.ValidSizeKey, len(fold.TestIndices),
		)
		if len(fold.TestIndices) == 0 {
			logger.Warn("Fold has no validation samples", log.FoldKey, i+1)
		}

		_, foldSpan := startFoldSpan(ctx, tracer, i, len(fold.TrainIndices), len(fold.TestIndices))
		start := time.Now()
		report, err := runFold(trainer, X, y, fold, i, cfg, res, testSum)
		endSpan(foldSpan, err)
		if err != nil {
			logger.Error("Fold failed", err, log.FoldKey, i+1)
			return nil, errors.Wrapf(err, "fold %d/%d", i+1, len(folds))
		}
		report.RunID = runID
		report.Duration = time.Since(start)
		res.Durations = append(res.Durations, report.Duration)

		if report.Scored {
			logger.Info("Fold scored",
				log.FoldKey, i+1,
				log.ScoreKey, report.Score,
				log.DurationMsKey, report.Duration.Milliseconds(),
			)
		}
		if cfg.observer != nil {
			cfg.observer.FoldCompleted(report)
		}
	}

	if testSum != nil {
		testSum.ScaleVec(1/float64(nSplits), testSum)
	}

	if cfg.scoring != nil {
		score, err := scoreSafely(cfg.scoring, columnVec(y, 0), res.OOF)
		if err != nil {
			return nil, errors.Wrap(err, "score out-of-fold predictions")
		}
		res.Score, res.Scored = score, true
		logger.Info("Cross-validation finished",
			log.ScoreKey, score,
			log.ScoreStdKey, res.StdScore(),
		)
	} else {
		logger.Info("Cross-validation finished")
	}
	return res, nil
}

// runFold trains on one fold. Panics from the trainer or scorer become errors.
func runFold(trainer Trainer, X, y mat.Matrix, fold model_selection.CVFold, i int,
	cfg *runConfig, res *Result, testSum *mat.VecDense) (report FoldReport, err error) {
	defer errors.Recover(&err, fmt.Sprintf("fold %d", i+1))

	report = FoldReport{Fold: i, TrainSize: len(fold.TrainIndices), ValidSize: len(fold.TestIndices)}
	if len(fold.TrainIndices) == 0 {
		return report, errors.NewValidationError("folds", "fold has an empty training set", i)
	}

	if err := trainer.Train(takeRows(X, fold.TrainIndices), takeRows(y, fold.TrainIndices)); err != nil {
		return report, err
	}

	// A fold can end up without validation rows when labels never spread
	// over every fold; it still contributes test predictions.
	if len(fold.TestIndices) > 0 {
		yValid := takeRows(y, fold.TestIndices)
		pred, err := predictColumn(trainer, takeRows(X, fold.TestIndices), cfg.probaColumn)
		if err != nil {
			return report, errors.Wrap(err, "predict validation rows")
		}
		for j, idx := range fold.TestIndices {
			res.OOF.SetVec(idx, pred.AtVec(j))
		}

		if cfg.scoring != nil {
			score, err := cfg.scoring(columnVec(yValid, 0), pred)
			if err != nil {
				return report, errors.Wrap(err, "score validation rows")
			}
			res.FoldScores = append(res.FoldScores, score)
			res.ScoredFolds = append(res.ScoredFolds, i)
			report.Score, report.Scored = score, true
		}
	}

	if testSum != nil {
		testPred, err := predictColumn(trainer, cfg.test, cfg.probaColumn)
		if err != nil {
			return report, errors.Wrap(err, "predict test rows")
		}
		testSum.AddVec(testSum, testPred)
	}

	importance, err := trainer.FeatureImportance()
	var nsErr *errors.NotSupportedError
	switch {
	case err == nil:
	case errors.As(err, &nsErr):
		importance = nil
	default:
		return report, errors.Wrap(err, "feature importance")
	}
	res.FeatureImportances = append(res.FeatureImportances, importance)

	return report, nil
}

func scoreSafely(fn metrics.ScoreFunc, yTrue, yPred *mat.VecDense) (score float64, err error) {
	defer errors.Recover(&err, "scoring")
	return fn(yTrue, yPred)
}

// predictColumn returns the prediction vector, or one probability column
// when col >= 0.
func predictColumn(trainer Trainer, X mat.Matrix, col int) (*mat.VecDense, error) {
	var (
		out mat.Matrix
		err error
	)
	if col >= 0 {
		out, err = trainer.PredictProba(X)
	} else {
		out, err = trainer.Predict(X)
		col = 0
	}
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	r, c := out.Dims()
	if r != n {
		return nil, errors.NewDimensionError("predict", n, r, 0)
	}
	if col >= c {
		return nil, errors.NewValidationError("probability_column", "column out of range", col)
	}
	return columnVec(out, col), nil
}

func validateInputs(trainer Trainer, splitter model_selection.Splitter, X, y, test mat.Matrix) (int, error) {
	if trainer == nil {
		return 0, errors.NewConfigurationError("trainer", "trainer must not be nil")
	}
	if splitter == nil {
		return 0, errors.NewConfigurationError("splitter", "splitter must not be nil")
	}
	if X == nil || y == nil {
		return 0, errors.NewValidationError("X", "features and target are required", nil)
	}
	n, nFeatures := X.Dims()
	ny, cy := y.Dims()
	if n != ny {
		return 0, errors.NewValidationError("y",
			"found input variables with inconsistent numbers of samples", []int{n, ny})
	}
	if cy != 1 {
		return 0, errors.NewValidationError("y", "target must be a single column", cy)
	}
	if test != nil {
		if _, c := test.Dims(); c != nFeatures {
			return 0, errors.NewValidationError("test",
				"test features must have the same number of columns as X", []int{nFeatures, c})
		}
	}
	return n, nil
}

// takeRows copies the rows idx of m into a new dense matrix.
func takeRows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	row := make([]float64, c)
	for i, r := range idx {
		mat.Row(row, r, m)
		out.SetRow(i, row)
	}
	return out
}

func columnVec(m mat.Matrix, col int) *mat.VecDense {
	return mat.NewVecDense(rowsOf(m), mat.Col(nil, col, m))
}

func rowsOf(m mat.Matrix) int {
	r, _ := m.Dims()
	return r
}
