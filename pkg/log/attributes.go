// Package log defines standard attribute keys for cross-validation runs.
//
// Keys follow a dotted hierarchy ("fold.index", "data.samples") so that
// log records from splitters, trainers and the driver can be filtered the
// same way regardless of backend.

package log

// Run and component context.
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "model_selection", "experiment", "cli"
	ComponentKey = "ml.component"

	// OperationKey names the operation in progress.
	// Standard values are the Operation* constants below.
	OperationKey = "ml.operation"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"

	// ModelNameKey identifies the estimator type behind a trainer.
	ModelNameKey = "model.name"

	// RunIDKey carries the unique identifier of a cross-validation run.
	RunIDKey = "cv.run_id"

	// SplitterKey names the splitter strategy.
	// Examples: "StratifiedGroupKFold", "KFold"
	SplitterKey = "cv.splitter"
)

// Fold context.
const (
	// FoldKey is the one-based fold number.
	FoldKey = "fold.index"

	// NSplitsKey is the configured number of folds.
	NSplitsKey = "fold.count"

	// TrainSizeKey is the number of training rows in a fold.
	TrainSizeKey = "fold.train_size"

	// ValidSizeKey is the number of validation rows in a fold.
	ValidSizeKey = "fold.valid_size"

	// ConstrainGroupsKey records whether group exclusivity is enforced.
	ConstrainGroupsKey = "fold.constrain_groups"

	// WeightedKey records whether fold balance is weighted by sample count.
	WeightedKey = "fold.weighted"
)

// Data shape.
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// GroupsKey indicates the number of distinct groups.
	GroupsKey = "data.groups"

	// LabelsKey indicates the number of distinct labels.
	LabelsKey = "data.labels"

	// TestSamplesKey indicates the number of rows in the held-out test set.
	TestSamplesKey = "data.test_samples"
)

// Scores and timing.
const (
	// ScoreKey records a fold or overall score.
	ScoreKey = "metrics.score"

	// ScoreStdKey records the standard deviation of fold scores.
	ScoreStdKey = "metrics.score_std"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorTypeKey categorizes the error.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationSplit   = "split"
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
)
