package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cvfold/internal/config"
	"github.com/YuminosukeSato/cvfold/internal/dataset"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
	"github.com/YuminosukeSato/cvfold/pkg/log"
)

// options holds the flags shared by split and run.
type options struct {
	configPath        string
	input             string
	label             string
	group             string
	nSplits           int
	noConstrainGroups bool
	unweighted        bool
	logLevel          string
	logFormat         string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "cvfold",
		Short:         "Group and label balanced cross-validation",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.input, "input", "i", "", "training data CSV with a header row")
	flags.StringVar(&opts.label, "label", "", "label column (overrides label_column)")
	flags.StringVar(&opts.group, "group", "", "group column (overrides group_column)")
	flags.IntVarP(&opts.nSplits, "n-splits", "k", 0, "number of folds (overrides n_splits)")
	flags.BoolVar(&opts.noConstrainGroups, "no-constrain-groups", false, "allow a group to span folds when it holds several labels")
	flags.BoolVar(&opts.unweighted, "unweighted", false, "balance (group, label) combinations instead of samples")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
	flags.StringVar(&opts.logFormat, "log-format", "auto", "auto, console, json or cloud (slog JSON in Cloud Logging layout)")

	root.AddCommand(
		newSplitCmd(opts),
		newRunCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cvfold version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cvfold", version)
		},
	}
}

// resolve loads the config file, applies explicitly set flags and validates.
func (o *options) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("label") {
		cfg.LabelColumn = o.label
	}
	if flags.Changed("group") {
		cfg.GroupColumn = o.group
	}
	if flags.Changed("n-splits") {
		cfg.NSplits = o.nSplits
	}
	if o.noConstrainGroups {
		cfg.ConstrainGroups = false
	}
	if o.unweighted {
		cfg.Weighted = false
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := o.setupLogging(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger. "auto" picks the console
// format on terminals and JSON otherwise.
func (o *options) setupLogging(w io.Writer, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	format := o.logFormat
	if format == "auto" || format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "console"
		}
	}
	switch format {
	case "console":
		log.SetLogger(log.NewConsoleLogger(w, lvl))
	case "json":
		log.SetLogger(log.NewZerologLogger(w, lvl))
	case "cloud":
		return log.SetupLogger(w, level)
	default:
		return errors.NewConfigurationErrorf("log-format", "unknown log format %q", o.logFormat)
	}
	return nil
}

func (o *options) loadTraining(cfg *config.Config) (*dataset.Dataset, error) {
	if o.input == "" {
		return nil, errors.NewConfigurationError("input", "--input is required")
	}
	return dataset.Load(o.input, dataset.Options{
		LabelColumn:    cfg.LabelColumn,
		GroupColumn:    cfg.GroupColumn,
		FeatureColumns: cfg.FeatureColumns,
		RequireLabel:   true,
		RequireGroup:   true,
	})
}
