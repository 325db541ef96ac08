package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/churn-cli/internal/model"
)

// --- Predictor Mock ---

type mockPredictor struct {
	mock.Mock
	features []string
}

func newMockPredictor(features ...string) *mockPredictor {
	return &mockPredictor{features: features}
}

func (m *mockPredictor) Name() string { return "mock@1" }

func (m *mockPredictor) FeatureNames() []string { return m.features }

func (m *mockPredictor) Predict(ctx context.Context, t *model.Table) ([]model.ChurnLabel, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChurnLabel), args.Error(1)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRun(ctx context.Context, run *model.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
