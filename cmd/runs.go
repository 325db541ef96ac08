package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scoring run history",
	Long:  "Commands for listing, viewing, summarizing and pruning scoring runs.",
}

// openRunStore opens the run history store or fails when it is disabled.
func openRunStore(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}
	st, err := initStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history is disabled (store.driver=none)")
	}
	return st, nil
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		sessionID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(status),
			SessionID: sessionID,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.ListRuns(cmd.Context(), store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		var cutoff time.Time
		if since > 0 {
			cutoff = time.Now().Add(-since)
		}
		formatRunStats(os.Stdout, computeRunStats(runs, cutoff))
		return nil
	},
}

// -- runs prune --

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Store.RetentionDays
		}
		if days <= 0 {
			return eris.New("runs prune: retention is disabled; pass --days")
		}

		n, err := st.DeleteRunsBefore(cmd.Context(), time.Now().AddDate(0, 0, -days))
		if err != nil {
			return eris.Wrap(err, "runs prune")
		}
		fmt.Fprintf(os.Stdout, "Deleted %d runs older than %d days.\n", n, days)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (complete, failed)")
	runsListCmd.Flags().String("session", "", "filter by HTTP session id")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsPruneCmd.Flags().Int("days", 0, "retention in days (default from config store.retention_days)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	ByCategory map[model.ErrorCategory]int
	Rows       int
	Churned    int
	Tiers      map[model.Tier]int
	AvgDurSecs float64
}

// computeRunStats aggregates runs created at or after since. A zero since
// includes every run.
func computeRunStats(runs []model.Run, since time.Time) runStats {
	s := runStats{
		ByCategory: make(map[model.ErrorCategory]int),
		Tiers:      make(map[model.Tier]int),
	}

	var totalMs int64
	for _, r := range runs {
		if !since.IsZero() && r.CreatedAt.Before(since) {
			continue
		}
		s.Total++
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			s.Rows += r.Rows
			s.Churned += r.Churned
			for tier, n := range r.TierCounts {
				s.Tiers[tier] += n
			}
			totalMs += r.DurationMs
		case model.RunStatusFailed:
			s.Failed++
			s.ByCategory[r.ErrorCategory]++
		}
	}

	if s.Complete > 0 {
		s.AvgDurSecs = float64(totalMs) / 1000 / float64(s.Complete)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tROWS\tCHURNED\tGOLD\tSILVER\tBRONZE\tERROR_CAT\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t-------\t----\t------\t------\t---------\t-------\t--------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = source[:27] + "..."
		}
		dur := (time.Duration(r.DurationMs) * time.Millisecond).String()

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			truncateID(r.ID),
			source,
			r.Status,
			r.Rows,
			r.Churned,
			r.TierCounts[model.TierGold],
			r.TierCounts[model.TierSilver],
			r.TierCounts[model.TierBronze],
			r.ErrorCategory,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	for _, cat := range []model.ErrorCategory{
		model.ErrorCategoryUnreadable,
		model.ErrorCategoryDecode,
		model.ErrorCategoryMissingColumn,
		model.ErrorCategoryPrediction,
		model.ErrorCategoryInternal,
	} {
		if n := s.ByCategory[cat]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", cat, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Rows scored:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "Churned:\t%d\n", s.Churned)
	for _, tier := range []model.Tier{model.TierGold, model.TierSilver, model.TierBronze} {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", tier, s.Tiers[tier])
	}
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
