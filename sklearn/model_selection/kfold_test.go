package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// assertPartition checks that every index 0..n-1 is a test index exactly
// once and that train/test of each fold are disjoint and complete.
func assertPartition(t *testing.T, n int, folds []CVFold) {
	t.Helper()
	coverage := make([]int, n)
	for i, fold := range folds {
		testSet := make(map[int]bool, len(fold.TestIndices))
		for _, idx := range fold.TestIndices {
			testSet[idx] = true
			coverage[idx]++
		}
		for _, idx := range fold.TrainIndices {
			assert.False(t, testSet[idx], "fold %d: train index %d in test set", i, idx)
		}
		assert.Equal(t, n, len(fold.TrainIndices)+len(fold.TestIndices), "fold %d size", i)
	}
	for i, c := range coverage {
		assert.Equal(t, 1, c, "index %d coverage", i)
	}
}

func TestKFold(t *testing.T) {
	t.Run("Basic KFold split", func(t *testing.T) {
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			X.Set(i, 1, float64(i)*2)
			y.Set(i, 0, float64(i%2))
		}

		kf, err := NewKFold(5, false, 42)
		require.NoError(t, err)
		assert.Equal(t, 5, kf.GetNSplits())

		folds, err := kf.Split(X, y, nil)
		require.NoError(t, err)
		require.Len(t, folds, 5)
		for i, fold := range folds {
			assert.Len(t, fold.TrainIndices, 80, "Fold %d train size", i)
			assert.Len(t, fold.TestIndices, 20, "Fold %d test size", i)
		}
		assert.Equal(t, 0, folds[0].TestIndices[0])
		assertPartition(t, n, folds)
	})

	t.Run("KFold with shuffle", func(t *testing.T) {
		n := 50
		X := mat.NewDense(n, 1, nil)

		plain, err := NewKFold(5, false, 42)
		require.NoError(t, err)
		shuffled, err := NewKFold(5, true, 42)
		require.NoError(t, err)

		foldsPlain, err := plain.Split(X, nil, nil)
		require.NoError(t, err)
		foldsShuffled, err := shuffled.Split(X, nil, nil)
		require.NoError(t, err)

		assert.NotEqual(t, foldsPlain, foldsShuffled, "Shuffled folds should differ")
		assertPartition(t, n, foldsShuffled)

		// same seed, same folds
		again, err := shuffled.Split(X, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, foldsShuffled, again)
	})

	t.Run("Uneven split", func(t *testing.T) {
		// 23 samples with 5 folds: 3 folds with 5 samples, 2 folds with 4 samples
		kf, err := NewKFold(5, false, 42)
		require.NoError(t, err)

		folds, err := kf.Split(mat.NewDense(23, 1, nil), nil, nil)
		require.NoError(t, err)

		sizes := make([]int, len(folds))
		for i, fold := range folds {
			sizes[i] = len(fold.TestIndices)
		}
		assert.Equal(t, []int{5, 5, 5, 4, 4}, sizes)
	})

	t.Run("Sample count from groups only", func(t *testing.T) {
		kf, err := NewKFold(2, false, 0)
		require.NoError(t, err)

		folds, err := kf.Split(nil, nil, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, folds[0].TestIndices)
		assert.Equal(t, []int{2}, folds[1].TestIndices)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := NewKFold(1, false, 0)
		var cfgErr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))

		kf, err := NewKFold(5, false, 0)
		require.NoError(t, err)
		_, err = kf.Split(mat.NewDense(3, 1, nil), nil, nil)
		assert.True(t, errors.As(err, &cfgErr))

		_, err = kf.Split(nil, nil, nil)
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})
}

func TestStratifiedKFold(t *testing.T) {
	t.Run("Binary classification stratification", func(t *testing.T) {
		// 70% class 0, 30% class 1
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			if i >= 70 {
				y.Set(i, 0, 1.0)
			}
		}

		skf, err := NewStratifiedKFold(5, false, 42)
		require.NoError(t, err)

		folds, err := skf.Split(X, y, nil)
		require.NoError(t, err)
		require.Len(t, folds, 5)
		assertPartition(t, n, folds)

		for i, fold := range folds {
			positives := 0
			for _, idx := range fold.TestIndices {
				if y.At(idx, 0) == 1 {
					positives++
				}
			}
			assert.Equal(t, 6, positives, "fold %d positives", i)
			assert.Len(t, fold.TestIndices, 20, "fold %d size", i)
		}
	})

	t.Run("Shuffle is seeded", func(t *testing.T) {
		n := 40
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			y.Set(i, 0, float64(i%3))
		}
		skf, err := NewStratifiedKFold(4, true, 3)
		require.NoError(t, err)

		a, err := skf.Split(nil, y, nil)
		require.NoError(t, err)
		b, err := skf.Split(nil, y, nil)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assertPartition(t, n, a)
	})

	t.Run("Requires labels", func(t *testing.T) {
		skf, err := NewStratifiedKFold(2, false, 0)
		require.NoError(t, err)

		_, err = skf.Split(mat.NewDense(4, 1, nil), nil, nil)
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})
}

func TestGroupKFold(t *testing.T) {
	groups := []string{"a", "a", "a", "b", "b", "c"}

	gkf, err := NewGroupKFold(2)
	require.NoError(t, err)
	assert.Equal(t, 2, gkf.GetNSplits())

	folds, err := gkf.Split(nil, nil, groups)
	require.NoError(t, err)
	require.Len(t, folds, 2)
	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4, 5}, folds[1].TestIndices)
	assertPartition(t, len(groups), folds)

	_, err = gkf.Split(nil, nil, nil)
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	tooMany, err := NewGroupKFold(4)
	require.NoError(t, err)
	_, err = tooMany.Split(nil, nil, groups)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSplittersRejectLiteralNSplits(t *testing.T) {
	X := mat.NewDense(6, 1, nil)
	y := mat.NewDense(6, 1, []float64{0, 1, 0, 1, 0, 1})
	groups := []string{"a", "b", "c", "d", "e", "f"}

	splitters := map[string]Splitter{
		"KFold":                &KFold{},
		"StratifiedKFold":      &StratifiedKFold{NSplits: 1},
		"GroupKFold":           &GroupKFold{NSplits: 0},
		"StratifiedGroupKFold": &StratifiedGroupKFold{NSplits: 1},
	}
	for name, s := range splitters {
		t.Run(name, func(t *testing.T) {
			folds, err := s.Split(X, y, groups)
			var cfgErr *errors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "%v", err)
			assert.Equal(t, "n_splits", cfgErr.Param)
			assert.Nil(t, folds)
		})
	}
}
