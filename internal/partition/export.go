package partition

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/model"
)

// WriteCSV exports a scored dataset with its derived columns.
func WriteCSV(w io.Writer, ds *model.ScoredDataset) error {
	return dataset.WriteCSV(w, ds.Table())
}

// WriteView exports the named view.
func (p *Partitions) WriteView(w io.Writer, n Name) error {
	ds, ok := p.Get(n)
	if !ok {
		return eris.Errorf("partition: unknown view %q", n)
	}
	return WriteCSV(w, ds)
}

// WriteViewXLSX exports the named view as a single-sheet workbook.
func (p *Partitions) WriteViewXLSX(w io.Writer, n Name) error {
	ds, ok := p.Get(n)
	if !ok {
		return eris.Errorf("partition: unknown view %q", n)
	}
	return dataset.WriteXLSX(w, string(n), ds.Table())
}

// XLSXFileName returns the workbook download name for a view.
func (n Name) XLSXFileName() string {
	return strings.TrimSuffix(n.FileName(), ".csv") + ".xlsx"
}

// ExportDir writes every view to dir under its download file name and returns
// the written paths in Names order.
func (p *Partitions) ExportDir(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "partition: create export dir %s", dir)
	}

	paths := make([]string, 0, len(Names))
	for _, n := range Names {
		path := filepath.Join(dir, n.FileName())
		if err := p.exportFile(path, n); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		zap.L().Debug("partition: exported view",
			zap.String("view", string(n)),
			zap.String("path", path),
		)
	}
	return paths, nil
}

func (p *Partitions) exportFile(path string, n Name) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "partition: create %s", path)
	}
	if err := p.WriteView(f, n); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "partition: close %s", path)
}
