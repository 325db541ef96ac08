package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/config"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "churn-cli",
	Short: "Customer churn scoring pipeline",
	Long: `Score customer datasets with a pre-trained churn model and build retention lists.

Each run selects the model's feature columns, predicts churn, buckets customers
by tenure and total charges, and assigns churned customers to the Gold, Silver
or Bronze tier.

  score     score CSV/XLSX files and export the tier lists
  overview  churn, customer group and segment distributions of an export
  serve     Upload & Predict and Data Overview over HTTP
  runs      run history (list, show, stats, prune)
  model     inspect the churn model artifact

Configuration comes from config.yaml, .env and CHURN_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
