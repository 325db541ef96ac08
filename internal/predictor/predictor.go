// Package predictor loads the churn classification artifact and exposes it
// behind a narrow interface: ordered feature names in, one binary label per row out.
package predictor

import (
	"context"

	"github.com/sells-group/churn-cli/internal/model"
)

// Predictor maps feature-projected rows to churn labels. Implementations are
// loaded once at startup and must be safe for concurrent use after load.
type Predictor interface {
	// Name identifies the loaded model in logs and run history.
	Name() string
	// FeatureNames returns the required input columns in order.
	FeatureNames() []string
	// Predict returns exactly one label per row of features, in row order.
	Predict(ctx context.Context, features *model.Table) ([]model.ChurnLabel, error)
}
