package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cvfold/internal/report"
	"github.com/YuminosukeSato/cvfold/pkg/log"
	"github.com/YuminosukeSato/cvfold/sklearn/model_selection"
)

func newSplitCmd(opts *options) *cobra.Command {
	var chart string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Compute stratified group folds and print their label balance",
		Example: `  cvfold split --input data.csv --label y --group patient -k 5
  cvfold split -c cv.yaml -i data.csv --chart folds.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			ds, err := opts.loadTraining(cfg)
			if err != nil {
				return err
			}

			sgkf, err := model_selection.NewStratifiedGroupKFold(cfg.NSplits,
				model_selection.WithConstrainGroups(cfg.ConstrainGroups),
				model_selection.WithWeighted(cfg.Weighted),
			)
			if err != nil {
				return err
			}
			labels := ds.Labels.RawMatrix().Data
			assignment, err := model_selection.Assign(sgkf, labels, ds.Groups)
			if err != nil {
				return err
			}

			summary := report.Summarize(assignment)
			fmt.Fprintln(cmd.OutOrStdout(), summary.Table())

			if chart != "" {
				if err := summary.SaveChart(chart); err != nil {
					return err
				}
				log.GetLogger().Info("Wrote fold chart", "path", chart)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chart, "chart", "", "write a per-fold label distribution chart (.png, .svg or .pdf)")
	return cmd
}
