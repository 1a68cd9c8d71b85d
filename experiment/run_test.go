package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/core/model"
	"github.com/YuminosukeSato/cvfold/linear"
	"github.com/YuminosukeSato/cvfold/metrics"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
	"github.com/YuminosukeSato/cvfold/pkg/log"
	"github.com/YuminosukeSato/cvfold/sklearn/model_selection"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// meanRegressor predicts the mean of its training target.
type meanRegressor struct {
	model.BaseEstimator
	mean     float64
	fitCalls int
}

func (m *meanRegressor) Fit(X, y mat.Matrix) error {
	m.fitCalls++
	r, _ := y.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	m.mean = sum / float64(r)
	_, c := X.Dims()
	m.SetFitted(r, c)
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.mean)
	}
	return out, nil
}

func (m *meanRegressor) FeatureImportances() []float64 {
	return []float64{1, 3, 2}
}

// sequentialData returns 12 samples with y[i] = i.
func sequentialData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 3, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		X.Set(i, 2, 1)
		y.Set(i, 0, float64(i))
	}
	return X, y
}

func newKFold(t *testing.T, k int) *model_selection.KFold {
	t.Helper()
	kf, err := model_selection.NewKFold(k, false, 0)
	require.NoError(t, err)
	return kf
}

func TestRunOutOfFoldPredictions(t *testing.T) {
	X, y := sequentialData()
	var built []*meanRegressor
	trainer := NewEstimatorTrainer("mean", func() model.Estimator {
		m := &meanRegressor{}
		built = append(built, m)
		return m
	}, WithFeatureNames([]string{"a", "b", "c"}))

	logger, _ := log.NewTestLogger(log.LevelDebug)
	res, err := Run(context.Background(), trainer, newKFold(t, 3), X, y,
		WithTest(mat.NewDense(2, 3, nil)),
		WithScoring(metrics.MSE),
		WithLogger(logger),
	)
	require.NoError(t, err)

	// fresh estimator per fold, each fitted once
	require.Len(t, built, 3)
	for i, m := range built {
		assert.Equal(t, 1, m.fitCalls, "estimator %d", i)
	}

	want := []float64{7.5, 7.5, 7.5, 7.5, 5.5, 5.5, 5.5, 5.5, 3.5, 3.5, 3.5, 3.5}
	assert.Equal(t, want, res.OOF.RawVector().Data)

	require.NotNil(t, res.Predictions)
	assert.InDelta(t, 5.5, res.Predictions.AtVec(0), 1e-12)
	assert.InDelta(t, 5.5, res.Predictions.AtVec(1), 1e-12)

	assert.InDeltaSlice(t, []float64{37.25, 1.25, 37.25}, res.FoldScores, 1e-12)
	assert.Equal(t, []int{0, 1, 2}, res.ScoredFolds)
	assert.True(t, res.Scored)
	assert.InDelta(t, 25.25, res.Score, 1e-12)
	assert.InDelta(t, 25.25, res.MeanScore(), 1e-12)
	assert.InDelta(t, math.Sqrt(288), res.StdScore(), 1e-9)

	require.Len(t, res.FeatureImportances, 3)
	assert.Equal(t, []FeatureWeight{{"b", 3}, {"c", 2}, {"a", 1}}, res.FeatureImportances[0])
	assert.Len(t, res.Durations, 3)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.NSplits)

	assert.True(t, logger.ContainsMessage("Fold 1/3"))
	assert.True(t, logger.ContainsMessage("Fold 3/3"))
	assert.True(t, logger.ContainsField(log.TrainSizeKey, float64(8)))
}

// fixedSplits reports a split count that differs from the folds it returns.
type fixedSplits struct {
	model_selection.Splitter
	n int
}

func (f fixedSplits) GetNSplits() int { return f.n }

func TestRunAveragesTestPredictionsBySplitCount(t *testing.T) {
	X, y := sequentialData()
	trainer := NewEstimatorTrainer("mean", func() model.Estimator { return &meanRegressor{} })

	res, err := Run(context.Background(), trainer, fixedSplits{newKFold(t, 3), 4}, X, y,
		WithTest(mat.NewDense(1, 3, nil)),
		WithLogger(log.NewNopLogger()),
	)
	require.NoError(t, err)
	assert.InDelta(t, 16.5/4, res.Predictions.AtVec(0), 1e-12)
	assert.False(t, res.Scored)
	assert.Nil(t, res.FoldScores)
}

func TestRunEmptyValidationFold(t *testing.T) {
	// ラベルごとに重みがリセットされるため fold 2 にはテストサンプルが入らない
	groups := []string{"0", "0", "1", "1", "2", "2"}
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 1, 2, 2})
	X := mat.NewDense(6, 3, nil)

	sgkf, err := model_selection.NewStratifiedGroupKFold(3)
	require.NoError(t, err)
	folds, err := sgkf.Split(X, y, groups)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	require.Empty(t, folds[2].TestIndices)

	var built []*meanRegressor
	trainer := NewEstimatorTrainer("mean", func() model.Estimator {
		m := &meanRegressor{}
		built = append(built, m)
		return m
	})
	logger, _ := log.NewTestLogger(log.LevelDebug)
	reg := prometheus.NewRegistry()
	observer, err := NewMetricsObserver(reg, "")
	require.NoError(t, err)

	res, err := Run(context.Background(), trainer, sgkf, X, y,
		WithGroups(groups),
		WithTest(mat.NewDense(1, 3, nil)),
		WithScoring(metrics.MSE),
		WithLogger(logger),
		WithObserver(observer),
	)
	require.NoError(t, err)

	// the empty fold still trains and contributes to the test average
	assert.Len(t, built, 3)
	assert.Len(t, res.Durations, 3)
	assert.Len(t, res.FeatureImportances, 3)
	assert.InDelta(t, (1+1.5+8.0/6)/3, res.Predictions.AtVec(0), 1e-12)

	// every OOF row comes from exactly one scored fold
	assert.Equal(t, []float64{1.5, 1.5, 1, 1, 1, 1}, res.OOF.RawVector().Data)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, res.FoldScores, 1e-12)
	assert.Equal(t, []int{0, 1}, res.ScoredFolds)
	assert.True(t, res.Scored)

	assert.True(t, logger.ContainsMessage("Fold has no validation samples"))
	assert.Equal(t, 3.0, testutil.ToFloat64(observer.foldsCompleted))
	assert.Equal(t, 2, testutil.CollectAndCount(observer.foldScore))
}

// staticSplits returns precomputed folds.
type staticSplits []model_selection.CVFold

func (s staticSplits) Split(X, y mat.Matrix, groups []string) ([]model_selection.CVFold, error) {
	return s, nil
}

func (s staticSplits) GetNSplits() int { return len(s) }

func TestRunEmptyTrainingFold(t *testing.T) {
	X, y := sequentialData()
	all := make([]int, 12)
	for i := range all {
		all[i] = i
	}
	splits := staticSplits{
		{TrainIndices: all[6:], TestIndices: all[:6]},
		{TrainIndices: nil, TestIndices: all},
	}
	calls := 0
	trainer := NewEstimatorTrainer("mean", func() model.Estimator {
		calls++
		return &meanRegressor{}
	})

	res, err := Run(context.Background(), trainer, splits, X, y, WithLogger(log.NewNopLogger()))
	assert.Nil(t, res)
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr), "%v", err)
	assert.Equal(t, "folds", valErr.ParamName)
	assert.Contains(t, err.Error(), "fold 2/2")
	assert.Equal(t, 1, calls)
}

func TestRunWithStratifiedGroupKFold(t *testing.T) {
	groups := []string{"3", "0", "3", "0", "3", "3", "2", "0", "1"}
	y := mat.NewDense(9, 1, []float64{1, 1, 1, 1, 1, 2, 2, 2, 2})
	X := mat.NewDense(9, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})

	sgkf, err := model_selection.NewStratifiedGroupKFold(2)
	require.NoError(t, err)

	trainer := NewEstimatorTrainer("linear", func() model.Estimator {
		return linear.NewLinearRegression()
	})
	res, err := Run(context.Background(), trainer, sgkf, X, y,
		WithGroups(groups),
		WithScoring(metrics.RMSE),
		WithLogger(log.NewNopLogger()),
	)
	require.NoError(t, err)
	assert.Equal(t, 9, res.OOF.Len())
	assert.Len(t, res.FoldScores, 2)
	require.Len(t, res.FeatureImportances, 2)
	assert.Equal(t, "feature_0", res.FeatureImportances[0][0].Feature)

	_, err = Run(context.Background(), trainer, sgkf, X, y, WithLogger(log.NewNopLogger()))
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "groups are required")
}

func TestRunProbabilityOnRegressor(t *testing.T) {
	X, y := sequentialData()
	trainer := NewEstimatorTrainer("mean", func() model.Estimator { return &meanRegressor{} })

	_, err := Run(context.Background(), trainer, newKFold(t, 3), X, y,
		WithProbabilityColumn(1),
		WithLogger(log.NewNopLogger()),
	)
	var nsErr *errors.NotSupportedError
	require.True(t, errors.As(err, &nsErr))
	assert.Equal(t, "PredictProba", nsErr.Method)
}

type panicking struct{ meanRegressor }

func (p *panicking) Fit(X, y mat.Matrix) error {
	panic("boom")
}

func TestRunConvertsPanics(t *testing.T) {
	X, y := sequentialData()
	trainer := NewEstimatorTrainer("panicky", func() model.Estimator { return &panicking{} })

	_, err := Run(context.Background(), trainer, newKFold(t, 3), X, y, WithLogger(log.NewNopLogger()))
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "boom", panicErr.PanicValue)
	assert.Contains(t, err.Error(), "fold 1/3")
}

func TestRunContextCancelled(t *testing.T) {
	X, y := sequentialData()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	trainer := NewEstimatorTrainer("mean", func() model.Estimator {
		calls++
		if calls == 2 {
			cancel()
		}
		return &meanRegressor{}
	})

	_, err := Run(ctx, trainer, newKFold(t, 3), X, y, WithLogger(log.NewNopLogger()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, calls)
}

func TestRunValidation(t *testing.T) {
	X, y := sequentialData()
	trainer := NewEstimatorTrainer("mean", func() model.Estimator { return &meanRegressor{} })
	kf := newKFold(t, 3)
	var valErr *errors.ValidationError
	var cfgErr *errors.ConfigurationError

	_, err := Run(context.Background(), trainer, kf, X, mat.NewDense(11, 1, nil))
	assert.True(t, errors.As(err, &valErr), "row mismatch")

	_, err = Run(context.Background(), trainer, kf, X, mat.NewDense(12, 2, nil))
	assert.True(t, errors.As(err, &valErr), "multi column target")

	_, err = Run(context.Background(), trainer, kf, X, y, WithTest(mat.NewDense(2, 2, nil)))
	assert.True(t, errors.As(err, &valErr), "test column mismatch")

	_, err = Run(context.Background(), nil, kf, X, y)
	assert.True(t, errors.As(err, &cfgErr), "nil trainer")

	_, err = Run(context.Background(), trainer, nil, X, y)
	assert.True(t, errors.As(err, &cfgErr), "nil splitter")
}

func TestRunTelemetry(t *testing.T) {
	X, y := sequentialData()
	trainer := NewEstimatorTrainer("mean", func() model.Estimator { return &meanRegressor{} })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	observer, err := NewMetricsObserver(reg, "")
	require.NoError(t, err)

	res, err := Run(context.Background(), trainer, newKFold(t, 3), X, y,
		WithScoring(metrics.MAE),
		WithObserver(observer),
		WithTracerProvider(tp),
		WithLogger(log.NewNopLogger()),
	)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	names := map[string]int{}
	for _, s := range spans {
		names[s.Name()]++
		assert.Equal(t, codes.Ok, s.Status().Code)
	}
	assert.Equal(t, 3, names["experiment.Fold"])
	assert.Equal(t, 1, names["experiment.Run"])

	assert.Equal(t, 3.0, testutil.ToFloat64(observer.foldsCompleted))
	assert.Equal(t, res.Score, testutil.ToFloat64(observer.runScore))
	assert.Equal(t, res.FoldScores[1], testutil.ToFloat64(observer.foldScore.WithLabelValues("1")))

	_, err = NewMetricsObserver(reg, "")
	assert.Error(t, err, "duplicate registration")
}
