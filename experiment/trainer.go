package experiment

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/core/model"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// DefaultImportanceType is the importance kind requested from boosters.
const DefaultImportanceType = "split"

// FeatureWeight is one feature importance entry.
type FeatureWeight struct {
	Feature string
	Weight  float64
}

// Trainer is the model surface the driver needs for one fold.
// Train must start from fresh model state on every call.
type Trainer interface {
	Train(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	FeatureImportance() ([]FeatureWeight, error)
}

// EstimatorFactory builds an untrained estimator.
type EstimatorFactory func() model.Estimator

// TrainerOption configures BoosterTrainer and EstimatorTrainer.
type TrainerOption func(*trainerConfig)

type trainerConfig struct {
	featureNames   []string
	importanceType string
	catFeatures    []int
}

// WithFeatureNames names the feature columns used in importance output.
func WithFeatureNames(names []string) TrainerOption {
	return func(c *trainerConfig) {
		c.featureNames = append([]string(nil), names...)
	}
}

// WithImportanceType selects the booster importance kind ("split", "gain").
func WithImportanceType(kind string) TrainerOption {
	return func(c *trainerConfig) {
		c.importanceType = kind
	}
}

// WithCatFeatures marks categorical feature columns. The estimator must
// then implement model.PoolFitter.
func WithCatFeatures(indices []int) TrainerOption {
	return func(c *trainerConfig) {
		c.catFeatures = append([]int(nil), indices...)
	}
}

// baseTrainer holds the per-fold estimator shared by both adapters.
type baseTrainer struct {
	name      string
	factory   EstimatorFactory
	cfg       trainerConfig
	est       model.Estimator
	nFeatures int
}

func newBaseTrainer(name string, factory EstimatorFactory, opts []TrainerOption) baseTrainer {
	cfg := trainerConfig{importanceType: DefaultImportanceType}
	for _, opt := range opts {
		opt(&cfg)
	}
	return baseTrainer{name: name, factory: factory, cfg: cfg}
}

// fresh discards the previous fold's estimator and builds a new one.
func (b *baseTrainer) fresh(X mat.Matrix) (model.Estimator, error) {
	b.est = nil
	if b.factory == nil {
		return nil, errors.NewConfigurationError("factory", "estimator factory must not be nil")
	}
	est := b.factory()
	if est == nil {
		return nil, errors.NewModelError(b.name+".Train", "factory returned nil estimator", nil)
	}
	if r, ok := est.(model.Resetter); ok {
		r.Reset()
	}
	_, b.nFeatures = X.Dims()
	return est, nil
}

func (b *baseTrainer) fitted(method string) (model.Estimator, error) {
	if b.est == nil {
		return nil, errors.NewNotFittedError(b.name, method)
	}
	return b.est, nil
}

// PredictProba returns class probabilities when the estimator is a classifier.
func (b *baseTrainer) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	est, err := b.fitted("PredictProba")
	if err != nil {
		return nil, err
	}
	pp, ok := est.(model.ProbabilityPredictor)
	if !ok {
		return nil, errors.NewNotSupportedError(b.name, "PredictProba")
	}
	return pp.PredictProba(X)
}

func (b *baseTrainer) weights(values []float64) ([]FeatureWeight, error) {
	if len(b.cfg.featureNames) > 0 && len(b.cfg.featureNames) != len(values) {
		return nil, errors.NewDimensionError(b.name+".FeatureImportance", len(b.cfg.featureNames), len(values), 1)
	}
	return toFeatureWeights(values, b.cfg.featureNames), nil
}

// BoosterTrainer adapts LightGBM-style gradient boosters. Predictions use
// the best iteration found by early stopping when the estimator reports one.
type BoosterTrainer struct {
	baseTrainer
}

// NewBoosterTrainer creates a trainer that builds a new booster per fold.
func NewBoosterTrainer(name string, factory EstimatorFactory, opts ...TrainerOption) *BoosterTrainer {
	return &BoosterTrainer{baseTrainer: newBaseTrainer(name, factory, opts)}
}

// Train fits a new booster on X, y.
func (t *BoosterTrainer) Train(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, t.name+".Train")

	est, err := t.fresh(X)
	if err != nil {
		return err
	}
	if err := est.Fit(X, y); err != nil {
		return errors.Wrapf(err, "%s: fit failed", t.name)
	}
	t.est = est
	return nil
}

// Predict predicts with the best iteration when available.
func (t *BoosterTrainer) Predict(X mat.Matrix) (mat.Matrix, error) {
	est, err := t.fitted("Predict")
	if err != nil {
		return nil, err
	}
	if ip, ok := est.(model.IterationPredictor); ok {
		if best := ip.BestIteration(); best > 0 {
			return ip.PredictIteration(X, best)
		}
	}
	return est.Predict(X)
}

// FeatureImportance returns importances of the configured kind, highest first.
func (t *BoosterTrainer) FeatureImportance() ([]FeatureWeight, error) {
	est, err := t.fitted("FeatureImportance")
	if err != nil {
		return nil, err
	}
	ig, ok := est.(model.ImportanceGetter)
	if !ok {
		return nil, errors.NewNotSupportedError(t.name, "FeatureImportance")
	}
	return t.weights(ig.GetFeatureImportance(t.cfg.importanceType))
}

// EstimatorTrainer adapts CatBoost or scikit-learn style estimators.
// Categorical columns are passed through model.Pool.
type EstimatorTrainer struct {
	baseTrainer
}

// NewEstimatorTrainer creates a trainer that builds a new estimator per fold.
func NewEstimatorTrainer(name string, factory EstimatorFactory, opts ...TrainerOption) *EstimatorTrainer {
	return &EstimatorTrainer{baseTrainer: newBaseTrainer(name, factory, opts)}
}

// Train fits a new estimator on X, y.
func (t *EstimatorTrainer) Train(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, t.name+".Train")

	est, err := t.fresh(X)
	if err != nil {
		return err
	}
	if len(t.cfg.catFeatures) > 0 {
		pf, ok := est.(model.PoolFitter)
		if !ok {
			return errors.NewNotSupportedError(t.name, "categorical features")
		}
		for _, c := range t.cfg.catFeatures {
			if c < 0 || c >= t.nFeatures {
				return errors.NewValidationError("cat_features", "column index out of range", c)
			}
		}
		err = pf.FitPool(&model.Pool{X: X, Y: y, CatFeatures: t.cfg.catFeatures})
	} else {
		err = est.Fit(X, y)
	}
	if err != nil {
		return errors.Wrapf(err, "%s: fit failed", t.name)
	}
	t.est = est
	return nil
}

// Predict delegates to the fitted estimator.
func (t *EstimatorTrainer) Predict(X mat.Matrix) (mat.Matrix, error) {
	est, err := t.fitted("Predict")
	if err != nil {
		return nil, err
	}
	return est.Predict(X)
}

// FeatureImportance returns the estimator's importances, highest first.
func (t *EstimatorTrainer) FeatureImportance() ([]FeatureWeight, error) {
	est, err := t.fitted("FeatureImportance")
	if err != nil {
		return nil, err
	}
	fi, ok := est.(model.FeatureImportancer)
	if !ok {
		return nil, errors.NewNotSupportedError(t.name, "FeatureImportance")
	}
	return t.weights(fi.FeatureImportances())
}

// toFeatureWeights pairs values with names and sorts by descending weight.
// Equal weights keep column order.
func toFeatureWeights(values []float64, names []string) []FeatureWeight {
	out := make([]FeatureWeight, len(values))
	for i, v := range values {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(names) {
			name = names[i]
		}
		out[i] = FeatureWeight{Feature: name, Weight: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}
