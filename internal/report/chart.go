package report

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// Chart builds a grouped bar chart with the test sample count of every
// label in every fold.
func (s *Summary) Chart() (*plot.Plot, error) {
	if len(s.Folds) == 0 {
		return nil, errors.NewValueError("Summary.Chart", "no folds to plot")
	}

	p := plot.New()
	p.Title.Text = "Test samples per label and fold"
	p.Y.Label.Text = "samples"
	p.Legend.Top = true

	barWidth := vg.Points(40 / float64(max(len(s.Labels), 1)))
	names := make([]string, len(s.Folds))
	for f := range s.Folds {
		names[f] = "fold " + strconv.Itoa(s.Folds[f].Fold)
	}

	for l, label := range s.Labels {
		values := make(plotter.Values, len(s.Folds))
		for f, fold := range s.Folds {
			values[f] = float64(fold.LabelCounts[l])
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, errors.Wrapf(err, "bar chart for label %s", label)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(l)
		bars.Offset = barWidth * vg.Length(float64(l)-float64(len(s.Labels)-1)/2)
		p.Add(bars)
		p.Legend.Add("label "+label, bars)
	}
	p.NominalX(names...)
	return p, nil
}

// WriteChart encodes the chart in format ("png", "svg", "pdf").
func (s *Summary) WriteChart(w io.Writer, format string) error {
	p, err := s.Chart()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(chartWidth, chartHeight, format)
	if err != nil {
		return errors.Wrapf(err, "encode chart as %s", format)
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "write chart")
}

// SaveChart writes the chart to path; the extension selects the format.
func (s *Summary) SaveChart(path string) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return errors.NewConfigurationError("chart", "chart path needs a file extension")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return s.WriteChart(f, format)
}
