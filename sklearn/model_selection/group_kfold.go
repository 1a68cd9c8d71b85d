package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// GroupKFold is a k-fold iterator variant with non-overlapping groups.
// Groups are placed largest first into the fold holding the fewest
// samples, so test folds are balanced by size but ignore labels.
type GroupKFold struct {
	NSplits int
}

// NewGroupKFold creates a new group k-fold splitter
func NewGroupKFold(nSplits int) (*GroupKFold, error) {
	if err := checkNSplits(nSplits); err != nil {
		return nil, err
	}
	return &GroupKFold{NSplits: nSplits}, nil
}

// GetNSplits returns the number of splits
func (gkf *GroupKFold) GetNSplits() int {
	return gkf.NSplits
}

// Split generates group-exclusive train/test indices. y is ignored.
func (gkf *GroupKFold) Split(X, y mat.Matrix, groups []string) ([]CVFold, error) {
	if err := checkNSplits(gkf.NSplits); err != nil {
		return nil, err
	}
	if groups == nil {
		return nil, errGroupsNil()
	}
	nSamples, err := numSamples("GroupKFold.Split", X, y, groups)
	if err != nil {
		return nil, err
	}

	uniqueGroups, groupCodes := encode(groups)
	if gkf.NSplits > len(uniqueGroups) {
		return nil, errors.NewConfigurationErrorf("n_splits",
			"cannot have number of splits n_splits=%d greater than the number of groups: %d",
			gkf.NSplits, len(uniqueGroups))
	}

	// A single pseudo label turns the stratified placement into plain
	// size-balanced group placement.
	labelCodes := make([]int, nSamples)
	placement := placeGroups(labelCodes, groupCodes, 1, len(uniqueGroups), gkf.NSplits, true, true)

	tests := make([][]int, gkf.NSplits)
	for i, g := range groupCodes {
		f := placement[0][g]
		tests[f] = append(tests[f], i)
	}
	return foldsFromTests(nSamples, tests), nil
}
