package predictor

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/model"
)

// LogisticModel scores rows with a standardized logistic regression. It is
// immutable after Load.
type LogisticModel struct {
	artifact Artifact
}

// Load reads the artifact at path and builds the model. Callers treat a
// failure here as fatal.
func Load(path string) (*LogisticModel, error) {
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	m := New(*a)
	zap.L().Info("predictor: model loaded",
		zap.String("path", path),
		zap.String("model", m.Name()),
		zap.Int("features", len(a.FeatureNames)),
	)
	return m, nil
}

// New builds a model from an already validated artifact.
func New(a Artifact) *LogisticModel {
	a.FeatureNames = slices.Clone(a.FeatureNames)
	return &LogisticModel{artifact: a}
}

// Name returns "<name>@<version>", or just the name when unversioned.
func (m *LogisticModel) Name() string {
	if m.artifact.Version == "" {
		return m.artifact.Name
	}
	return m.artifact.Name + "@" + m.artifact.Version
}

// FeatureNames returns a copy of the ordered input columns.
func (m *LogisticModel) FeatureNames() []string {
	return slices.Clone(m.artifact.FeatureNames)
}

// Threshold returns the probability at or above which a row is labelled churned.
func (m *LogisticModel) Threshold() float64 {
	return m.artifact.Threshold
}

// Predict labels each row churned when its probability reaches the threshold.
func (m *LogisticModel) Predict(ctx context.Context, features *model.Table) ([]model.ChurnLabel, error) {
	probs, err := m.Probabilities(ctx, features)
	if err != nil {
		return nil, err
	}

	labels := make([]model.ChurnLabel, len(probs))
	for i, p := range probs {
		if p >= m.artifact.Threshold {
			labels[i] = model.LabelChurned
		}
	}
	return labels, nil
}

// Probabilities returns the churn probability for each row.
func (m *LogisticModel) Probabilities(ctx context.Context, features *model.Table) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "predictor: context done")
	}
	if !slices.Equal(features.Columns, m.artifact.FeatureNames) {
		return nil, eris.Errorf("predictor: feature columns %v do not match model features %v",
			features.Columns, m.artifact.FeatureNames)
	}

	probs := make([]float64, len(features.Rows))
	for r, row := range features.Rows {
		z := m.artifact.Intercept
		for i, name := range m.artifact.FeatureNames {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			c, err := m.contribution(name, cell)
			if err != nil {
				return nil, eris.Wrapf(err, "predictor: row %d", r)
			}
			z += c
		}
		probs[r] = sigmoid(z)
	}
	return probs, nil
}

// contribution returns the logit term for one cell. Blank numeric cells are
// imputed with the training mean; unseen categories contribute nothing.
func (m *LogisticModel) contribution(feature, cell string) (float64, error) {
	if num, ok := m.artifact.Numeric[feature]; ok {
		if cell == "" {
			return 0, nil
		}
		x, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, eris.Errorf("feature %q: cannot convert %q to a number", feature, cell)
		}
		return num.Weight * (x - num.Mean) / num.Scale, nil
	}
	return m.artifact.Categorical[feature][cell], nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
