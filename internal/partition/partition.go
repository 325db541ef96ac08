// Package partition filters a scored dataset into the churned and per-tier views
// and exports them as CSV files.
package partition

import (
	"github.com/sells-group/churn-cli/internal/model"
)

// Name identifies one exportable view of a scored dataset.
type Name string

const (
	NameResults Name = "results"
	NameChurned Name = "churned"
	NameGold    Name = "gold"
	NameSilver  Name = "silver"
	NameBronze  Name = "bronze"
)

// Names lists every view in display order.
var Names = []Name{NameResults, NameChurned, NameGold, NameSilver, NameBronze}

// FileName returns the download file name for a view.
func (n Name) FileName() string {
	switch n {
	case NameResults:
		return "prediction_results.csv"
	case NameChurned:
		return "churn_customers.csv"
	default:
		return string(n) + "_churn_customers.csv"
	}
}

// Title returns the human-readable view title.
func (n Name) Title() string {
	switch n {
	case NameResults:
		return "Prediction Results"
	case NameChurned:
		return "Churn Customers"
	case NameGold:
		return "Gold Churn Customers"
	case NameSilver:
		return "Silver Churn Customers"
	case NameBronze:
		return "Bronze Churn Customers"
	default:
		return string(n)
	}
}

// ParseName validates a view name.
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Partitions holds the full scored dataset and its derived views. Tier views
// are disjoint subsets of Churned.
type Partitions struct {
	Results *model.ScoredDataset `json:"results"`
	Churned *model.ScoredDataset `json:"churned"`
	Gold    *model.ScoredDataset `json:"gold"`
	Silver  *model.ScoredDataset `json:"silver"`
	Bronze  *model.ScoredDataset `json:"bronze"`
}

// Split derives the churned and per-tier views without modifying ds.
func Split(ds *model.ScoredDataset) *Partitions {
	churned := ds.Filter(model.ScoredRecord.Churned)
	return &Partitions{
		Results: ds,
		Churned: churned,
		Gold:    churned.Filter(inTier(model.TierGold)),
		Silver:  churned.Filter(inTier(model.TierSilver)),
		Bronze:  churned.Filter(inTier(model.TierBronze)),
	}
}

func inTier(tier model.Tier) func(model.ScoredRecord) bool {
	return func(r model.ScoredRecord) bool { return r.Tier == tier }
}

// Get returns the named view.
func (p *Partitions) Get(n Name) (*model.ScoredDataset, bool) {
	switch n {
	case NameResults:
		return p.Results, true
	case NameChurned:
		return p.Churned, true
	case NameGold:
		return p.Gold, true
	case NameSilver:
		return p.Silver, true
	case NameBronze:
		return p.Bronze, true
	default:
		return nil, false
	}
}

// Counts returns the row count of every view.
func (p *Partitions) Counts() map[Name]int {
	out := make(map[Name]int, len(Names))
	for _, n := range Names {
		ds, _ := p.Get(n)
		out[n] = ds.Len()
	}
	return out
}
