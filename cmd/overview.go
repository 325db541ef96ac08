package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/overview"
	"github.com/sells-group/churn-cli/internal/partition"
)

// errNoResults mirrors the dashboard warning shown before any prediction ran.
var errNoResults = eris.New("no prediction results found: upload data and run the prediction first (churn-cli score)")

var overviewCmd = &cobra.Command{
	Use:   "overview [prediction_results.csv]",
	Short: "Show churn, customer group and segment distributions",
	Long: `Summarize an exported prediction_results.csv.

Without an argument the file is read from the configured export directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(cfg.Export.OutputDir, partition.NameResults.FileName())
		if len(args) == 1 {
			path = args[0]
		}

		ov, err := loadOverview(path)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ov)
		}
		return overview.Render(os.Stdout, ov)
	},
}

func init() {
	overviewCmd.Flags().Bool("json", false, "print the distributions as JSON")
	rootCmd.AddCommand(overviewCmd)
}

// loadOverview reads an exported results file and summarizes it.
func loadOverview(path string) (*overview.Overview, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(errNoResults, path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "overview: open %s", path)
	}
	defer f.Close()

	table, err := dataset.LoadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "overview: read %s", path)
	}
	ds, err := model.ScoredFromTable(table)
	if err != nil {
		return nil, eris.Wrapf(err, "overview: %s", path)
	}
	return overview.Build(ds), nil
}
