// Package overview summarizes a scored dataset for the Data Overview view:
// churn split, customer group counts and customer segment counts.
package overview

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/churn-cli/internal/model"
)

// Count is one bar of a distribution.
type Count struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Overview holds the three Data Overview distributions.
type Overview struct {
	Total    int     `json:"total"`
	Churn    []Count `json:"churn_distribution"`
	Groups   []Count `json:"group_distribution"`
	Segments []Count `json:"segment_distribution"`
}

// Labels used by the churn distribution.
const (
	LabelNonChurn = "Non-Churn"
	LabelChurn    = "Churn"
)

// Build computes the distributions for ds.
func Build(ds *model.ScoredDataset) *Overview {
	churned := 0
	groups := make(map[string]int)
	segments := make(map[string]int)
	for _, r := range ds.Records {
		if r.Churned() {
			churned++
		}
		groups[string(r.Tier)]++
		segments[r.Segment.String()]++
	}

	total := ds.Len()
	return &Overview{
		Total: total,
		Churn: []Count{
			newCount(LabelNonChurn, total-churned, total),
			newCount(LabelChurn, churned, total),
		},
		Groups:   valueCounts(groups, total),
		Segments: valueCounts(segments, total),
	}
}

// valueCounts orders counts descending, ties broken by label.
func valueCounts(m map[string]int, total int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, newCount(label, n, total))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func newCount(label string, n, total int) Count {
	c := Count{Label: label, Count: n}
	if total > 0 {
		c.Percent = float64(n) * 100 / float64(total)
	}
	return c
}

// Render writes the overview as aligned text tables.
func Render(w io.Writer, o *Overview) error {
	sections := []struct {
		title  string
		header string
		counts []Count
	}{
		{"Churn Distribution", "PREDICTION", o.Churn},
		{"Customer Group Distribution", "CUSTOMER GROUP", o.Groups},
		{"Customer Segmentation", "CUSTOMER SEGMENT", o.Segments},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s (%d customers)\n", s.title, o.Total)
		fmt.Fprintf(tw, "%s\tCOUNT\tPERCENT\n", s.header)
		for _, c := range s.counts {
			fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", c.Label, c.Count, c.Percent)
		}
	}
	return tw.Flush()
}
