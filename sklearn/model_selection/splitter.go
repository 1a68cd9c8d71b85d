// Package model_selection provides cross-validation splitters.
//
// All splitters are deterministic functions of their configuration and
// inputs (KFold and StratifiedKFold take an explicit seed when shuffling)
// and return every fold at once, so a failure is reported before the
// caller trains anything.
package model_selection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// Splitter defines interface for cross-validation splitters.
//
// X and y may be nil when the strategy does not need them, but at least one
// of X, y or groups must carry the sample count. groups is only consulted
// by group-aware splitters.
type Splitter interface {
	Split(X, y mat.Matrix, groups []string) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation.
// Both index slices are ascending.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// complement returns the ascending indices of 0..n-1 not present in test.
func complement(n int, test []int) []int {
	inTest := make([]bool, n)
	for _, idx := range test {
		inTest[idx] = true
	}
	train := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return train
}

// foldsFromTests pairs each test set with its complement.
func foldsFromTests(n int, tests [][]int) []CVFold {
	folds := make([]CVFold, len(tests))
	for i, test := range tests {
		folds[i] = CVFold{
			TrainIndices: complement(n, test),
			TestIndices:  test,
		}
	}
	return folds
}

// numSamples checks that every non-nil input agrees on the number of rows
// and returns that number.
func numSamples(op string, X, y mat.Matrix, groups []string) (int, error) {
	n := -1
	check := func(name string, rows int) error {
		if n < 0 {
			n = rows
			return nil
		}
		if rows != n {
			return errors.NewValidationError(name,
				"found input variables with inconsistent numbers of samples", []int{n, rows})
		}
		return nil
	}

	if X != nil {
		n, _ = X.Dims()
	}
	if y != nil {
		r, _ := y.Dims()
		if err := check("y", r); err != nil {
			return 0, err
		}
	}
	if groups != nil {
		if err := check("groups", len(groups)); err != nil {
			return 0, err
		}
	}
	if n < 0 {
		return 0, errors.NewValidationError("X", op+": no input to infer the number of samples from", nil)
	}
	return n, nil
}

// labelColumn converts a single column target into a slice.
func labelColumn(y mat.Matrix) ([]float64, error) {
	if y == nil {
		return nil, errors.NewValidationError("y", "labels are required for stratified splitting", nil)
	}
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewValidationError("y", "must be a column vector (n×1 matrix)", []int{r, c})
	}
	labels := make([]float64, r)
	for i := range labels {
		v := y.At(i, 0)
		if math.IsNaN(v) {
			return nil, errors.NewValidationError("y", "labels must not contain NaN", i)
		}
		labels[i] = v
	}
	return labels, nil
}

func checkNSplits(nSplits int) error {
	if nSplits < 2 {
		return errors.NewConfigurationErrorf("n_splits",
			"k-fold cross-validation requires at least one train/test split by setting n_splits=2 or more, got n_splits=%d", nSplits)
	}
	return nil
}
