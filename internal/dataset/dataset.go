// Package dataset reads tabular CSV input into feature matrices, a label
// column and group identifiers, and writes prediction files.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// Options selects the columns to read.
type Options struct {
	LabelColumn string
	GroupColumn string
	// FeatureColumns defaults to every column except label and group.
	FeatureColumns []string
	RequireLabel   bool
	RequireGroup   bool
}

// Dataset is one loaded CSV file.
type Dataset struct {
	FeatureNames []string
	Features     *mat.Dense
	// Labels is an n×1 matrix, nil when the label column is absent.
	Labels *mat.Dense
	// Groups is nil when the group column is absent.
	Groups []string
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int {
	r, _ := d.Features.Dims()
	return r
}

// Load reads the CSV file at path.
func Load(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	ds, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return ds, nil
}

// Read parses CSV with a header row.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	labelIdx := slices.Index(header, opts.LabelColumn)
	groupIdx := slices.Index(header, opts.GroupColumn)
	if opts.LabelColumn == "" {
		labelIdx = -1
	}
	if opts.GroupColumn == "" {
		groupIdx = -1
	}
	if opts.RequireLabel && labelIdx < 0 {
		return nil, errors.NewValidationError("label_column", "column not found in header", opts.LabelColumn)
	}
	if opts.RequireGroup && groupIdx < 0 {
		return nil, errors.NewValidationError("group_column", "column not found in header", opts.GroupColumn)
	}

	featureNames := opts.FeatureColumns
	if len(featureNames) == 0 {
		for i, name := range header {
			if i != labelIdx && i != groupIdx {
				featureNames = append(featureNames, name)
			}
		}
	}
	if len(featureNames) == 0 {
		return nil, errors.NewValidationError("feature_columns", "no feature columns", header)
	}
	featureIdx := make([]int, len(featureNames))
	for j, name := range featureNames {
		featureIdx[j] = slices.Index(header, name)
		if featureIdx[j] < 0 {
			return nil, errors.NewValidationError("feature_columns", "column not found in header", name)
		}
	}

	var (
		features []float64
		labels   []float64
		groups   []string
	)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		for j, idx := range featureIdx {
			v, err := parseFloat(record[idx])
			if err != nil {
				return nil, errors.NewValidationError(featureNames[j],
					"non-numeric value on line "+strconv.Itoa(line), record[idx])
			}
			features = append(features, v)
		}
		if labelIdx >= 0 {
			v, err := parseFloat(record[labelIdx])
			if err != nil {
				return nil, errors.NewValidationError(opts.LabelColumn,
					"non-numeric label on line "+strconv.Itoa(line), record[labelIdx])
			}
			labels = append(labels, v)
		}
		if groupIdx >= 0 {
			groups = append(groups, strings.TrimSpace(record[groupIdx]))
		}
	}

	n := len(features) / len(featureNames)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no data rows")
	}
	ds := &Dataset{
		FeatureNames: featureNames,
		Features:     mat.NewDense(n, len(featureNames), features),
		Groups:       groups,
	}
	if labelIdx >= 0 {
		ds.Labels = mat.NewDense(n, 1, labels)
	}
	return ds, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// WriteOOF writes one row per sample: index, group, label and the
// out-of-fold prediction.
func WriteOOF(w io.Writer, ds *Dataset, oof *mat.VecDense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "group", "label", "oof"}); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i := 0; i < oof.Len(); i++ {
		var group, label string
		if i < len(ds.Groups) {
			group = ds.Groups[i]
		}
		if ds.Labels != nil {
			label = formatFloat(ds.Labels.At(i, 0))
		}
		if err := cw.Write([]string{strconv.Itoa(i), group, label, formatFloat(oof.AtVec(i))}); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}

// WritePredictions writes index and prediction columns.
func WritePredictions(w io.Writer, pred *mat.VecDense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "prediction"}); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i := 0; i < pred.Len(); i++ {
		if err := cw.Write([]string{strconv.Itoa(i), formatFloat(pred.AtVec(i))}); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
