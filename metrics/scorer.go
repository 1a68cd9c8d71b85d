package metrics

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// ScoreFunc scores predictions against ground truth.
type ScoreFunc func(yTrue, yPred *mat.VecDense) (float64, error)

type scorer struct {
	fn               ScoreFunc
	greaterIsBetter  bool
	needsProbability bool
}

var registry = map[string]scorer{
	"mse":      {fn: MSE},
	"rmse":     {fn: RMSE},
	"mae":      {fn: MAE},
	"r2":       {fn: R2Score, greaterIsBetter: true},
	"accuracy": {fn: Accuracy, greaterIsBetter: true},
	"logloss":  {fn: BinaryLogLoss, needsProbability: true},
	"auc":      {fn: AUC, greaterIsBetter: true, needsProbability: true},
}

// Lookup returns the score function registered under name (case-insensitive).
func Lookup(name string) (ScoreFunc, error) {
	s, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewConfigurationErrorf("scoring",
			"unknown scoring %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s.fn, nil
}

// GreaterIsBetter reports whether a higher value of the named score is better.
func GreaterIsBetter(name string) bool {
	return registry[strings.ToLower(name)].greaterIsBetter
}

// NeedsProbability reports whether the named score expects positive-class
// probabilities rather than hard predictions.
func NeedsProbability(name string) bool {
	return registry[strings.ToLower(name)].needsProbability
}

// Names lists the registered score names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
