package model_selection

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
	"github.com/YuminosukeSato/cvfold/pkg/log"
)

// StratifiedGroupKFold is a k-fold iterator variant with non-overlapping
// groups which also attempts to evenly distribute the number of samples of
// each label across folds.
//
// Labels are processed one at a time in ascending order. Within a label the
// groups holding samples of that label are placed largest first into the
// fold with the smallest accumulated weight for that label. Groups with equal
// counts are taken in descending group order, i.e. the reverse of a stable
// ascending sort by count, so with four equal groups and k=4 fold 0 gets the
// highest group and fold 3 the lowest. The documented example below depends
// on this order. With ConstrainGroups, a group that was already placed by an
// earlier label is forced into the same fold, so a group never spans folds.
// Without it only a (group, label) combination is kept together.
//
// Example:
//
//	groups := []int{3, 0, 3, 0, 3, 3, 2, 0, 1}
//	labels := []int{1, 1, 1, 1, 1, 2, 2, 2, 2}
//	sgkf, _ := NewStratifiedGroupKFold(2)
//	tests, _ := TestIndices(sgkf, labels, groups)
//	// tests[0] == [0 2 4 5 8], tests[1] == [1 3 6 7]
type StratifiedGroupKFold struct {
	NSplits         int
	ConstrainGroups bool
	Weighted        bool
}

// Option configures a StratifiedGroupKFold.
type Option func(*StratifiedGroupKFold)

// WithConstrainGroups sets whether every group must land in a single fold.
func WithConstrainGroups(constrain bool) Option {
	return func(s *StratifiedGroupKFold) {
		s.ConstrainGroups = constrain
	}
}

// WithWeighted sets whether fold balance counts samples (true) or
// (group, label) combinations (false).
func WithWeighted(weighted bool) Option {
	return func(s *StratifiedGroupKFold) {
		s.Weighted = weighted
	}
}

// NewStratifiedGroupKFold creates a splitter with group exclusivity and
// sample weighting enabled unless overridden.
func NewStratifiedGroupKFold(nSplits int, opts ...Option) (*StratifiedGroupKFold, error) {
	if err := checkNSplits(nSplits); err != nil {
		return nil, err
	}
	s := &StratifiedGroupKFold{
		NSplits:         nSplits,
		ConstrainGroups: true,
		Weighted:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetNSplits returns the number of splits
func (s *StratifiedGroupKFold) GetNSplits() int {
	return s.NSplits
}

// Split implements Splitter for float labels held in a column matrix and
// string group identifiers. X is only used to validate the sample count.
func (s *StratifiedGroupKFold) Split(X, y mat.Matrix, groups []string) ([]CVFold, error) {
	if err := checkNSplits(s.NSplits); err != nil {
		return nil, err
	}
	if groups == nil {
		return nil, errGroupsNil()
	}
	if _, err := numSamples("StratifiedGroupKFold.Split", X, y, groups); err != nil {
		return nil, err
	}
	labels, err := labelColumn(y)
	if err != nil {
		return nil, err
	}
	return SplitLabels(s, labels, groups)
}

// FoldAssignment is the outcome of one StratifiedGroupKFold split.
type FoldAssignment[L, G cmp.Ordered] struct {
	// Labels and Groups are the sorted distinct values seen in the input.
	Labels []L
	Groups []G

	// FoldGroups lists, per fold, the groups with at least one test sample
	// in that fold.
	FoldGroups [][]G

	// TestIndices lists, per fold, the ascending test sample indices.
	TestIndices [][]int

	// LabelCounts[f][l] is the number of test samples of Labels[l] in fold f.
	LabelCounts [][]int

	nSamples int
}

// NSamples returns the number of samples the assignment covers.
func (a *FoldAssignment[L, G]) NSamples() int {
	return a.nSamples
}

// Folds pairs each test set with its training complement.
func (a *FoldAssignment[L, G]) Folds() []CVFold {
	return foldsFromTests(a.nSamples, a.TestIndices)
}

// Assign computes the fold assignment for labels and groups.
func Assign[L, G cmp.Ordered](s *StratifiedGroupKFold, labels []L, groups []G) (*FoldAssignment[L, G], error) {
	// NSplits is exported, so a struct literal bypasses the constructor.
	if err := checkNSplits(s.NSplits); err != nil {
		return nil, err
	}
	if groups == nil {
		return nil, errGroupsNil()
	}
	if len(labels) != len(groups) {
		return nil, errors.NewValidationError("groups",
			"found input variables with inconsistent numbers of samples", []int{len(labels), len(groups)})
	}
	for i, v := range labels {
		// Only NaN compares unequal to itself.
		if v != v {
			return nil, errors.NewValidationError("labels", "labels must not contain NaN", i)
		}
	}
	for i, v := range groups {
		if v != v {
			return nil, errors.NewValidationError("groups", "groups must not contain NaN", i)
		}
	}

	uniqueGroups, groupCodes := encode(groups)
	if s.NSplits > len(uniqueGroups) {
		return nil, errors.NewConfigurationErrorf("n_splits",
			"cannot have number of splits n_splits=%d greater than the number of groups: %d",
			s.NSplits, len(uniqueGroups))
	}
	uniqueLabels, labelCodes := encode(labels)

	placement := placeGroups(labelCodes, groupCodes, len(uniqueLabels), len(uniqueGroups),
		s.NSplits, s.ConstrainGroups, s.Weighted)

	a := &FoldAssignment[L, G]{
		Labels:      uniqueLabels,
		Groups:      uniqueGroups,
		FoldGroups:  make([][]G, s.NSplits),
		TestIndices: make([][]int, s.NSplits),
		LabelCounts: make([][]int, s.NSplits),
		nSamples:    len(labels),
	}
	inFold := make([][]bool, s.NSplits)
	for f := range a.LabelCounts {
		a.LabelCounts[f] = make([]int, len(uniqueLabels))
		inFold[f] = make([]bool, len(uniqueGroups))
	}
	for i := range labels {
		l, g := labelCodes[i], groupCodes[i]
		f := placement[l][g]
		a.TestIndices[f] = append(a.TestIndices[f], i)
		a.LabelCounts[f][l]++
		inFold[f][g] = true
	}
	for f := range inFold {
		for g, ok := range inFold[f] {
			if ok {
				a.FoldGroups[f] = append(a.FoldGroups[f], uniqueGroups[g])
			}
		}
	}

	warnSparseLabels(uniqueLabels, labelCodes, s.NSplits)

	logger := log.GetLoggerWithName("model_selection")
	logger.Debug("Computed stratified group folds",
		log.OperationKey, log.OperationSplit,
		log.SplitterKey, "StratifiedGroupKFold",
		log.NSplitsKey, s.NSplits,
		log.SamplesKey, len(labels),
		log.GroupsKey, len(uniqueGroups),
		log.LabelsKey, len(uniqueLabels),
		log.ConstrainGroupsKey, s.ConstrainGroups,
		log.WeightedKey, s.Weighted,
	)

	return a, nil
}

// TestIndices returns the k test index sets in fold order.
func TestIndices[L, G cmp.Ordered](s *StratifiedGroupKFold, labels []L, groups []G) ([][]int, error) {
	a, err := Assign(s, labels, groups)
	if err != nil {
		return nil, err
	}
	return a.TestIndices, nil
}

// SplitLabels returns train/test folds for arbitrary ordered labels and groups.
func SplitLabels[L, G cmp.Ordered](s *StratifiedGroupKFold, labels []L, groups []G) ([]CVFold, error) {
	a, err := Assign(s, labels, groups)
	if err != nil {
		return nil, err
	}
	return a.Folds(), nil
}

// placeGroups decides the fold of every (label, group) combination.
// The result is indexed [label][group]; -1 marks combinations without samples.
func placeGroups(labelCodes, groupCodes []int, nLabels, nGroups, nSplits int, constrain, weighted bool) [][]int {
	counts := make([][]int, nLabels)
	for l := range counts {
		counts[l] = make([]int, nGroups)
	}
	for i, l := range labelCodes {
		counts[l][groupCodes[i]]++
	}

	groupFold := make([]int, nGroups)
	for g := range groupFold {
		groupFold[g] = -1
	}

	placement := make([][]int, nLabels)
	order := make([]int, nGroups)
	for l, perGroup := range counts {
		placement[l] = make([]int, nGroups)
		for g := range order {
			order[g] = g
			placement[l][g] = -1
		}
		slices.SortFunc(order, func(a, b int) int {
			if c := cmp.Compare(perGroup[b], perGroup[a]); c != 0 {
				return c
			}
			return cmp.Compare(b, a)
		})

		// Fold weights start from zero for every label.
		weights := make([]int, nSplits)
		for _, g := range order {
			w := perGroup[g]
			if w == 0 {
				break
			}
			fold := argmin(weights)
			if constrain && groupFold[g] >= 0 {
				fold = groupFold[g]
			}
			if weighted {
				weights[fold] += w
			} else {
				weights[fold]++
			}
			placement[l][g] = fold
			if groupFold[g] < 0 {
				groupFold[g] = fold
			}
		}
	}
	return placement
}

// argmin returns the index of the first minimum.
func argmin(values []int) int {
	best := 0
	for i, v := range values {
		if v < values[best] {
			best = i
		}
	}
	return best
}

// encode maps values to dense codes following their sorted distinct order.
func encode[T cmp.Ordered](values []T) ([]T, []int) {
	unique := slices.Clone(values)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	codes := make([]int, len(values))
	for i, v := range values {
		codes[i], _ = slices.BinarySearch(unique, v)
	}
	return unique, codes
}

func warnSparseLabels[L cmp.Ordered](labels []L, codes []int, nSplits int) {
	members := make([]int, len(labels))
	for _, c := range codes {
		members[c]++
	}
	least := slices.Index(members, slices.Min(members))
	if least >= 0 && members[least] < nSplits {
		errors.Warn(errors.NewLabelImbalanceWarning(fmt.Sprint(labels[least]), members[least], nSplits))
	}
}

func errGroupsNil() error {
	return errors.NewConfigurationError("groups", "the groups parameter should not be nil")
}
