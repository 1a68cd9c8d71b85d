// Package cvfold provides cross-validation for Go machine learning code,
// built around a splitter that keeps groups intact while balancing the
// label distribution of every fold.
//
// # Features
//
//   - StratifiedGroupKFold: deterministic group-exclusive folds with per-label balance
//   - KFold, StratifiedKFold and GroupKFold behind one Splitter interface
//   - A fold driver that trains a fresh model per fold and collects
//     out-of-fold predictions, averaged test predictions, scores and
//     feature importances
//   - Structured errors (cockroachdb/errors) and logging (zerolog)
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/cvfold/core/model"
//	    "github.com/YuminosukeSato/cvfold/experiment"
//	    "github.com/YuminosukeSato/cvfold/linear"
//	    "github.com/YuminosukeSato/cvfold/metrics"
//	    "github.com/YuminosukeSato/cvfold/sklearn/model_selection"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(9, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
//	    y := mat.NewDense(9, 1, []float64{1, 1, 1, 1, 1, 2, 2, 2, 2})
//	    groups := []string{"3", "0", "3", "0", "3", "3", "2", "0", "1"}
//
//	    sgkf, err := model_selection.NewStratifiedGroupKFold(2)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    trainer := experiment.NewEstimatorTrainer("linear", func() model.Estimator {
//	        return linear.NewLinearRegression()
//	    })
//	    res, err := experiment.Run(context.Background(), trainer, sgkf, X, y,
//	        experiment.WithGroups(groups),
//	        experiment.WithScoring(metrics.RMSE),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("OOF RMSE %.4f (folds %.4f ± %.4f)\n", res.Score, res.MeanScore(), res.StdScore())
//	}
//
// # Packages
//
//   - sklearn/model_selection: splitters and fold assignments
//   - experiment: the fold driver, trainer adapters, telemetry
//   - metrics: regression and classification scores
//   - linear: least-squares baseline
//   - core/model: estimator capability interfaces
//   - pkg/errors, pkg/log: error types and structured logging
//
// The cvfold command (cmd/cvfold) exposes the splitter and the baseline
// driver for CSV files.
package cvfold
