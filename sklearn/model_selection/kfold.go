package model_selection

import (
	"math/rand/v2"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) (*KFold, error) {
	if err := checkNSplits(nSplits); err != nil {
		return nil, err
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}, nil
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. Labels and groups are ignored.
func (kf *KFold) Split(X, y mat.Matrix, groups []string) ([]CVFold, error) {
	if err := checkNSplits(kf.NSplits); err != nil {
		return nil, err
	}
	nSamples, err := numSamples("KFold.Split", X, y, groups)
	if err != nil {
		return nil, err
	}
	if kf.NSplits > nSamples {
		return nil, errors.NewConfigurationErrorf("n_splits",
			"cannot have number of splits n_splits=%d greater than the number of samples: %d", kf.NSplits, nSamples)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	// The first nSamples % NSplits folds get one extra sample.
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	tests := make([][]int, kf.NSplits)
	current := 0
	for i := range tests {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := slices.Clone(indices[current : current+testSize])
		slices.Sort(test)
		tests[i] = test
		current += testSize
	}

	return foldsFromTests(nSamples, tests), nil
}

// StratifiedKFold implements stratified k-fold cross-validation.
// Each class is cut into NSplits contiguous chunks (after an optional
// seeded shuffle) so every fold receives roughly the same class ratio.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) (*StratifiedKFold, error) {
	if err := checkNSplits(nSplits); err != nil {
		return nil, err
	}
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}, nil
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(X, y mat.Matrix, groups []string) ([]CVFold, error) {
	if err := checkNSplits(skf.NSplits); err != nil {
		return nil, err
	}
	nSamples, err := numSamples("StratifiedKFold.Split", X, y, groups)
	if err != nil {
		return nil, err
	}
	labels, err := labelColumn(y)
	if err != nil {
		return nil, err
	}
	if skf.NSplits > nSamples {
		return nil, errors.NewConfigurationErrorf("n_splits",
			"cannot have number of splits n_splits=%d greater than the number of samples: %d", skf.NSplits, nSamples)
	}

	classes, codes := encode(labels)
	classIndices := make([][]int, len(classes))
	for i, c := range codes {
		classIndices[c] = append(classIndices[c], i)
	}

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(skf.RandomSeed), uint64(skf.RandomSeed)))
		for _, indices := range classIndices {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	tests := make([][]int, skf.NSplits)
	for c, indices := range classIndices {
		nClass := len(indices)
		if nClass < skf.NSplits {
			errors.Warn(errors.NewLabelImbalanceWarning(
				strconv.FormatFloat(classes[c], 'g', -1, 64), nClass, skf.NSplits))
		}
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		current := 0
		for i := range tests {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			tests[i] = append(tests[i], indices[current:current+testSize]...)
			current += testSize
		}
	}
	for _, test := range tests {
		slices.Sort(test)
	}

	return foldsFromTests(nSamples, tests), nil
}
