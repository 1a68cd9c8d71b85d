package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cvfold/core/model"
	"github.com/YuminosukeSato/cvfold/experiment"
	"github.com/YuminosukeSato/cvfold/internal/dataset"
	"github.com/YuminosukeSato/cvfold/internal/report"
	"github.com/YuminosukeSato/cvfold/linear"
	"github.com/YuminosukeSato/cvfold/metrics"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
	"github.com/YuminosukeSato/cvfold/pkg/log"
	"github.com/YuminosukeSato/cvfold/sklearn/model_selection"
)

type runFlags struct {
	scoring     string
	test        string
	out         string
	predOut     string
	metricsFile string
}

func newRunCmd(opts *options) *cobra.Command {
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cross-validate the least-squares baseline over stratified group folds",
		Example: `  cvfold run -i train.csv --label y --group patient --scoring rmse --out oof.csv
  cvfold run -c cv.yaml -i train.csv --test test.csv --predictions pred.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("scoring") {
				cfg.Scoring = rf.scoring
			}
			if cfg.Scoring == "" {
				cfg.Scoring = "rmse"
			}
			scoring, err := metrics.Lookup(cfg.Scoring)
			if err != nil {
				return err
			}
			logger := log.GetLoggerWithName("cli")
			if metrics.NeedsProbability(cfg.Scoring) {
				logger.Warn("Scoring expects probabilities; baseline regression outputs are scored as-is",
					"scoring", cfg.Scoring)
			}

			if rf.predOut != "" && rf.test == "" {
				return errors.NewConfigurationError("predictions", "--predictions requires --test")
			}

			train, err := opts.loadTraining(cfg)
			if err != nil {
				return err
			}

			runOpts := []experiment.RunOption{
				experiment.WithGroups(train.Groups),
				experiment.WithScoring(scoring),
			}
			var test *dataset.Dataset
			if rf.test != "" {
				test, err = dataset.Load(rf.test, dataset.Options{FeatureColumns: train.FeatureNames})
				if err != nil {
					return err
				}
				runOpts = append(runOpts, experiment.WithTest(test.Features))
			}

			reg := prometheus.NewRegistry()
			observer, err := experiment.NewMetricsObserver(reg, "cvfold")
			if err != nil {
				return err
			}
			runOpts = append(runOpts, experiment.WithObserver(observer))

			sgkf, err := model_selection.NewStratifiedGroupKFold(cfg.NSplits,
				model_selection.WithConstrainGroups(cfg.ConstrainGroups),
				model_selection.WithWeighted(cfg.Weighted),
			)
			if err != nil {
				return err
			}
			trainer := experiment.NewEstimatorTrainer("LinearRegression", func() model.Estimator {
				return linear.NewLinearRegression(linear.WithAlpha(cfg.Alpha))
			}, experiment.WithFeatureNames(train.FeatureNames))

			res, err := experiment.Run(cmd.Context(), trainer, sgkf, train.Features, train.Labels, runOpts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.ResultTable(res, cfg.Scoring))

			if rf.out != "" {
				if err := writeFile(rf.out, func(f *os.File) error { return dataset.WriteOOF(f, train, res.OOF) }); err != nil {
					return err
				}
			}
			if rf.predOut != "" {
				if err := writeFile(rf.predOut, func(f *os.File) error { return dataset.WritePredictions(f, res.Predictions) }); err != nil {
					return err
				}
			}
			if rf.metricsFile != "" {
				if err := prometheus.WriteToTextfile(rf.metricsFile, reg); err != nil {
					return errors.Wrapf(err, "write metrics to %s", rf.metricsFile)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&rf.scoring, "scoring", "", "score name: "+fmt.Sprint(metrics.Names()))
	flags.StringVar(&rf.test, "test", "", "test CSV; predictions are averaged over folds")
	flags.StringVarP(&rf.out, "out", "o", "", "write out-of-fold predictions CSV")
	flags.StringVar(&rf.predOut, "predictions", "", "write averaged test predictions CSV")
	flags.StringVar(&rf.metricsFile, "metrics-file", "", "write Prometheus metrics in text format (node_exporter textfile collector)")
	return cmd
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(f)
}
