package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/predictor"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect the churn model artifact",
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect [artifact]",
	Short: "Validate an artifact and print its features",
	Long:  "Validate a model artifact against its schema and print the ordered feature list. Defaults to predictor.artifact_path.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Predictor.ArtifactPath
		if len(args) == 1 {
			path = args[0]
		}

		a, err := predictor.ReadArtifact(path)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(a)
		}
		formatArtifact(os.Stdout, path, a)
		return nil
	},
}

func init() {
	modelInspectCmd.Flags().Bool("json", false, "print the artifact as JSON")
	modelCmd.AddCommand(modelInspectCmd)
	rootCmd.AddCommand(modelCmd)
}

// formatArtifact writes a human-readable description of a to out.
func formatArtifact(out io.Writer, path string, a *predictor.Artifact) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Artifact:\t%s\n", path)
	_, _ = fmt.Fprintf(w, "Model:\t%s\n", predictor.New(*a).Name())
	_, _ = fmt.Fprintf(w, "Threshold:\t%g\n", a.Threshold)
	_, _ = fmt.Fprintf(w, "Intercept:\t%g\n", a.Intercept)
	_, _ = fmt.Fprintf(w, "Features:\t%d\n", len(a.FeatureNames))
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "#\tFEATURE\tKIND\tDETAIL")
	for i, name := range a.FeatureNames {
		if nf, ok := a.Numeric[name]; ok {
			_, _ = fmt.Fprintf(w, "%d\t%s\tnumeric\tweight=%g mean=%g scale=%g\n", i+1, name, nf.Weight, nf.Mean, nf.Scale)
			continue
		}
		levels := make([]string, 0, len(a.Categorical[name]))
		for level := range a.Categorical[name] {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		_, _ = fmt.Fprintf(w, "%d\t%s\tcategorical\t%d levels %v\n", i+1, name, len(levels), levels)
	}
	_ = w.Flush()
}
