package model

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
)

// ScoredRecord is one uploaded row with its prediction, segment and tier attached.
type ScoredRecord struct {
	Row     int             `json:"row"`
	Values  []string        `json:"values"`
	Label   ChurnLabel      `json:"churn_prediction"`
	Segment CustomerSegment `json:"customer_segment"`
	Tier    Tier            `json:"customer_group"`
}

// Churned reports whether the predictor labelled the record as churned.
func (r ScoredRecord) Churned() bool {
	return r.Label == LabelChurned
}

// ScoredDataset is the uploaded table augmented with churn label, segment and tier.
// It is never mutated after the pipeline builds it; filters return new datasets
// sharing the same records.
type ScoredDataset struct {
	Columns []string       `json:"columns"`
	Records []ScoredRecord `json:"records"`
}

// Len returns the number of records.
func (d *ScoredDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Filter returns the records for which keep is true, in their original order.
func (d *ScoredDataset) Filter(keep func(ScoredRecord) bool) *ScoredDataset {
	out := &ScoredDataset{Columns: d.Columns, Records: make([]ScoredRecord, 0)}
	for _, r := range d.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

var derivedColumns = []string{ColumnChurnPrediction, ColumnCustomerSegment, ColumnCustomerGroup}

// Header returns the output header: the uploaded columns followed by the derived
// columns. A derived column already present in the upload keeps its position.
func (d *ScoredDataset) Header() []string {
	header := append([]string(nil), d.Columns...)
	for _, col := range derivedColumns {
		if indexOf(header, col) < 0 {
			header = append(header, col)
		}
	}
	return header
}

// Table renders the dataset as a flat table using Header.
func (d *ScoredDataset) Table() *Table {
	header := d.Header()
	idx := make([]int, len(derivedColumns))
	for i, col := range derivedColumns {
		idx[i] = indexOf(header, col)
	}

	rows := make([][]string, 0, len(d.Records))
	for _, r := range d.Records {
		row := make([]string, len(header))
		copy(row, r.Values)
		row[idx[0]] = strconv.Itoa(int(r.Label))
		row[idx[1]] = r.Segment.String()
		row[idx[2]] = string(r.Tier)
		rows = append(rows, row)
	}
	return &Table{Columns: header, Rows: rows}
}

func indexOf(cols []string, col string) int {
	for i, c := range cols {
		if c == col {
			return i
		}
	}
	return -1
}

// ScoredFromTable rebuilds a scored dataset from an exported results table.
// The derived columns are required; every other column is carried as-is.
func ScoredFromTable(t *Table) (*ScoredDataset, error) {
	idx := make([]int, len(derivedColumns))
	for i, col := range derivedColumns {
		idx[i] = t.Index(col)
		if idx[i] < 0 {
			return nil, eris.Errorf("model: results table has no %s column", col)
		}
	}

	ds := &ScoredDataset{Records: make([]ScoredRecord, 0, len(t.Rows))}
	for i, col := range t.Columns {
		if !slices.Contains(idx, i) {
			ds.Columns = append(ds.Columns, col)
		}
	}

	for row := range t.Rows {
		rec := ScoredRecord{Row: row}
		for i, col := range t.Columns {
			v, _ := t.Value(row, col)
			if !slices.Contains(idx, i) {
				rec.Values = append(rec.Values, v)
			}
		}

		labelCell, _ := t.Value(row, ColumnChurnPrediction)
		label, err := strconv.Atoi(labelCell)
		if err != nil || (ChurnLabel(label) != LabelRetained && ChurnLabel(label) != LabelChurned) {
			return nil, eris.Errorf("model: row %d: invalid %s %q", row, ColumnChurnPrediction, labelCell)
		}
		rec.Label = ChurnLabel(label)

		segCell, _ := t.Value(row, ColumnCustomerSegment)
		if rec.Segment, err = ParseCustomerSegment(segCell); err != nil {
			return nil, eris.Wrapf(err, "model: row %d", row)
		}
		tierCell, _ := t.Value(row, ColumnCustomerGroup)
		rec.Tier = Tier(tierCell)

		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}
