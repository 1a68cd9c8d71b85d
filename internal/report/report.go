// Package report renders fold assignments and cross-validation results for
// the terminal and as charts.
package report

import (
	"cmp"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/YuminosukeSato/cvfold/experiment"
	"github.com/YuminosukeSato/cvfold/sklearn/model_selection"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16858E"))
)

// FoldSummary is one row of the fold table.
type FoldSummary struct {
	Fold        int
	TrainSize   int
	TestSize    int
	Groups      int
	LabelCounts []int
}

// Summary describes a fold assignment independent of label and group types.
type Summary struct {
	Labels []string
	Folds  []FoldSummary
}

// Summarize converts a FoldAssignment for display.
func Summarize[L, G cmp.Ordered](a *model_selection.FoldAssignment[L, G]) *Summary {
	s := &Summary{Labels: make([]string, len(a.Labels))}
	for i, l := range a.Labels {
		s.Labels[i] = fmt.Sprint(l)
	}
	for f, test := range a.TestIndices {
		s.Folds = append(s.Folds, FoldSummary{
			Fold:        f,
			TrainSize:   a.NSamples() - len(test),
			TestSize:    len(test),
			Groups:      len(a.FoldGroups[f]),
			LabelCounts: a.LabelCounts[f],
		})
	}
	return s
}

// Table renders the summary with one column per label.
func (s *Summary) Table() string {
	headers := []string{"fold", "train", "test", "groups"}
	for _, l := range s.Labels {
		headers = append(headers, "label "+l)
	}

	rows := make([][]string, 0, len(s.Folds))
	for _, f := range s.Folds {
		row := []string{
			strconv.Itoa(f.Fold),
			strconv.Itoa(f.TrainSize),
			strconv.Itoa(f.TestSize),
			strconv.Itoa(f.Groups),
		}
		for _, c := range f.LabelCounts {
			row = append(row, strconv.Itoa(c))
		}
		rows = append(rows, row)
	}
	return render(headers, rows)
}

// ResultTable renders per-fold scores and durations of a run followed by
// the mean, standard deviation and the out-of-fold score.
func ResultTable(res *experiment.Result, scoring string) string {
	headers := []string{"fold", scoring, "duration", "top feature"}
	rows := make([][]string, 0, len(res.Durations)+2)
	scores := make(map[int]float64, len(res.FoldScores))
	for j, fold := range res.ScoredFolds {
		scores[fold] = res.FoldScores[j]
	}
	for i, d := range res.Durations {
		score := "-"
		if v, ok := scores[i]; ok {
			score = formatScore(v)
		}
		top := "-"
		if i < len(res.FeatureImportances) && len(res.FeatureImportances[i]) > 0 {
			top = res.FeatureImportances[i][0].Feature
		}
		rows = append(rows, []string{strconv.Itoa(i), score, d.Round(time.Microsecond).String(), top})
	}
	if res.Scored {
		rows = append(rows,
			[]string{"mean ± std", fmt.Sprintf("%s ± %s", formatScore(res.MeanScore()), formatScore(res.StdScore())), "", ""},
			[]string{"oof", formatScore(res.Score), "", ""},
		)
	}
	return render(headers, rows)
}

func render(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
