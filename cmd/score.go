package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/overview"
	"github.com/sells-group/churn-cli/internal/partition"
	"github.com/sells-group/churn-cli/internal/pipeline"
)

var scoreCmd = &cobra.Command{
	Use:   "score <file>...",
	Short: "Score customer files and export churn lists",
	Long: `Run one or more CSV/XLSX customer files through the churn model.

Each file must contain tenure, TotalCharges and every feature the model
declares. For every file the following CSVs are written:

  prediction_results.csv       all rows with Churn_Prediction, Customer_Segment, Customer_Group
  churn_customers.csv          rows predicted to churn
  gold_churn_customers.csv     churned Gold customers
  silver_churn_customers.csv   churned Silver customers
  bronze_churn_customers.csv   churned Bronze customers

With several input files, each file's exports go to a subdirectory of
--out named after the file.

Examples:
  # Score one file into ./output
  score customers.csv

  # Score a month of extracts and print the overview for each
  score --overview --out exports extracts/*.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("out", "", "output directory (default from config export.output_dir)")
	f.Bool("overview", false, "print churn, group and segment distributions")
	f.Bool("no-progress", false, "disable the progress bar for multi-file runs")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(ctx, "score")
	if err != nil {
		return err
	}
	defer env.Close()

	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.Export.OutputDir
	}
	showOverview, _ := cmd.Flags().GetBool("overview")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	var bar *progressbar.ProgressBar
	if len(args) > 1 && !noProgress {
		bar = progressbar.Default(int64(len(args)), "scoring")
	}

	failed := scoreFiles(ctx, env.Pipeline, args, scoreOptions{
		OutDir:   outDir,
		Overview: showOverview,
		Out:      os.Stdout,
		ErrOut:   os.Stderr,
		Progress: bar,
	})
	if failed > 0 {
		return eris.Errorf("score: %d of %d files failed", failed, len(args))
	}
	return nil
}

type scoreOptions struct {
	OutDir   string
	Overview bool
	Out      io.Writer
	ErrOut   io.Writer
	Progress *progressbar.ProgressBar
}

// scoreFiles scores every file in turn and returns how many failed. A failed
// file does not stop the remaining ones.
func scoreFiles(ctx context.Context, p *pipeline.Pipeline, files []string, opts scoreOptions) int {
	failed := 0
	dirs := exportDirs(opts.OutDir, files)
	for i, path := range files {
		if ctx.Err() != nil {
			failed++
			continue
		}

		dir := dirs[i]

		if err := scoreFile(ctx, p, path, dir, opts); err != nil {
			failed++
			_, _ = fmt.Fprintf(opts.ErrOut, "%s: %s\n", path, pipeline.UserMessage(err))
			zap.L().Warn("score: file failed", zap.String("file", path), zap.Error(err))
		}
		if opts.Progress != nil {
			_ = opts.Progress.Add(1)
		}
	}
	return failed
}

func scoreFile(ctx context.Context, p *pipeline.Pipeline, path, dir string, opts scoreOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "score: open %s", path)
	}
	upload, err := dataset.NewUpload(filepath.Base(path), f)
	_ = f.Close()
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, upload)
	if err != nil {
		return err
	}

	paths, err := res.Partitions.ExportDir(dir)
	if err != nil {
		return err
	}

	writeScoreSummary(opts.Out, path, res, paths)
	if opts.Overview {
		if err := overview.Render(opts.Out, overview.Build(res.Dataset)); err != nil {
			return eris.Wrap(err, "score: render overview")
		}
	}
	return nil
}

// writeScoreSummary prints one line per run followed by the exported files.
func writeScoreSummary(w io.Writer, path string, res *pipeline.Result, paths []string) {
	_, _ = fmt.Fprintf(w, "%s: %s [run %s]\n", path, res.Summary(), truncateID(res.RunID))
	counts := res.Partitions.Counts()
	for i, n := range partition.Names {
		if i >= len(paths) {
			break
		}
		_, _ = fmt.Fprintf(w, "  %-24s %6d rows  %s\n", n.Title(), counts[n], paths[i])
	}
}

// exportDirs returns one export directory per file. A single file exports
// straight into outDir. Several files each get a subdirectory named after the
// file stem, with "-2", "-3", ... appended when stems collide.
func exportDirs(outDir string, files []string) []string {
	dirs := make([]string, len(files))
	if len(files) == 1 {
		dirs[0] = outDir
		return dirs
	}

	used := make(map[string]bool, len(files))
	for i, path := range files {
		stem := fileStem(path)
		name := stem
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[name] = true
		dirs[i] = filepath.Join(outDir, name)
	}
	return dirs
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
