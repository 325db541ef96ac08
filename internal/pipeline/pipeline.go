// Package pipeline runs one upload through loading, feature selection,
// prediction, segmentation and tier assignment, and records the run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/features"
	"github.com/sells-group/churn-cli/internal/metrics"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/partition"
	"github.com/sells-group/churn-cli/internal/predictor"
	"github.com/sells-group/churn-cli/internal/segment"
)

// Phase names recorded on every run.
const (
	PhaseLoad      = "1_load"
	PhaseFeatures  = "2_select_features"
	PhasePredict   = "3_predict"
	PhaseSegment   = "4_segment"
	PhasePartition = "5_partition"
)

// RunRecorder persists run history. store.Store satisfies it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *model.Run) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records every run, successful or not.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMetrics observes every run on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline scores uploads with a predictor loaded once at startup.
type Pipeline struct {
	predictor predictor.Predictor
	recorder  RunRecorder
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a Pipeline around an already loaded predictor.
func New(pred predictor.Predictor, opts ...Option) *Pipeline {
	p := &Pipeline{predictor: pred, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predictor returns the injected predictor.
func (p *Pipeline) Predictor() predictor.Predictor {
	return p.predictor
}

// Result is the output of one successful run. Partitions are derived from
// Dataset and rebuilt on decode.
type Result struct {
	RunID       string                `json:"run_id"`
	Source      string                `json:"source"`
	Model       string                `json:"model"`
	Dataset     *model.ScoredDataset  `json:"dataset"`
	Phases      []model.PhaseResult   `json:"phases"`
	CompletedAt time.Time             `json:"completed_at"`
	Partitions  *partition.Partitions `json:"-"`
}

// Run scores one upload. Failures are returned as one of the dataset,
// features or prediction errors; no partial result is ever returned.
func (p *Pipeline) Run(ctx context.Context, upload *dataset.Upload) (*Result, error) {
	return p.RunForSession(ctx, "", upload)
}

// RunForSession is Run with the owning session tagged on logs and run history.
func (p *Pipeline) RunForSession(ctx context.Context, sessionID string, upload *dataset.Upload) (*Result, error) {
	source := ""
	if upload != nil {
		source = upload.Name
	}
	log := zap.L().With(zap.String("source", source), zap.String("model", p.predictor.Name()))
	if sessionID != "" {
		log = log.With(zap.String("session_id", sessionID))
	}
	log.Info("pipeline: starting run")

	start := p.now()
	run := &model.Run{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Source:    source,
		Model:     p.predictor.Name(),
		CreatedAt: start.UTC(),
	}

	trackPhase := func(name string, fn func() error) error {
		phaseStart := time.Now()
		fnErr := fn()
		pr := model.PhaseResult{Name: name, DurationMs: time.Since(phaseStart).Milliseconds()}
		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.DurationMs),
				zap.Error(fnErr),
			)
		} else {
			pr.Status = model.PhaseStatusComplete
			log.Debug("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.DurationMs),
			)
		}
		run.Phases = append(run.Phases, pr)
		return fnErr
	}

	result, err := p.execute(ctx, upload, trackPhase)
	run.DurationMs = p.now().Sub(start).Milliseconds()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.ErrorCategory = Categorize(err)
		run.Error = err.Error()
	} else {
		run.Status = model.RunStatusComplete
		run.Rows = result.Dataset.Len()
		run.Churned = result.Partitions.Churned.Len()
		run.TierCounts = map[model.Tier]int{
			model.TierGold:   result.Partitions.Gold.Len(),
			model.TierSilver: result.Partitions.Silver.Len(),
			model.TierBronze: result.Partitions.Bronze.Len(),
		}
		result.RunID = run.ID
		result.Source = source
		result.Model = run.Model
		result.Phases = run.Phases
		result.CompletedAt = p.now().UTC()
	}

	p.record(ctx, log, run)

	if err != nil {
		return nil, err
	}
	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("rows", run.Rows),
		zap.Int("churned", run.Churned),
		zap.Int64("duration_ms", run.DurationMs),
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, upload *dataset.Upload, trackPhase func(string, func() error) error) (*Result, error) {
	var table *model.Table
	if err := trackPhase(PhaseLoad, func() error {
		t, err := dataset.Load(upload)
		table = t
		return err
	}); err != nil {
		return nil, err
	}

	var feats *model.Table
	if err := trackPhase(PhaseFeatures, func() error {
		f, err := features.Select(table, p.predictor.FeatureNames())
		if err != nil {
			return err
		}
		if err := features.Require(table, model.ColumnTenure, model.ColumnTotalCharges); err != nil {
			return err
		}
		feats = f
		return nil
	}); err != nil {
		return nil, err
	}

	var labels []model.ChurnLabel
	if err := trackPhase(PhasePredict, func() error {
		l, err := p.predict(ctx, feats)
		labels = l
		return err
	}); err != nil {
		return nil, err
	}

	var scored *model.ScoredDataset
	if err := trackPhase(PhaseSegment, func() error {
		scored = score(table, labels)
		return nil
	}); err != nil {
		return nil, err
	}

	var parts *partition.Partitions
	if err := trackPhase(PhasePartition, func() error {
		parts = partition.Split(scored)
		return nil
	}); err != nil {
		return nil, err
	}

	return &Result{Dataset: scored, Partitions: parts}, nil
}

// predict calls the predictor and converts every failure mode, including a
// panic or a label count mismatch, into a PredictionError.
func (p *Pipeline) predict(ctx context.Context, feats *model.Table) (labels []model.ChurnLabel, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels = nil
			err = &PredictionError{Err: eris.Errorf("predictor panic: %v", r)}
		}
	}()

	labels, err = p.predictor.Predict(ctx, feats)
	if err != nil {
		return nil, &PredictionError{Err: err}
	}
	if len(labels) != feats.Len() {
		return nil, &PredictionError{Err: eris.Errorf("predictor returned %d labels for %d rows", len(labels), feats.Len())}
	}
	for i, l := range labels {
		if l != model.LabelRetained && l != model.LabelChurned {
			return nil, &PredictionError{Err: eris.Errorf("row %d: label %d is not binary", i, l)}
		}
	}
	return labels, nil
}

// score attaches label, segment and tier to every row of t.
func score(t *model.Table, labels []model.ChurnLabel) *model.ScoredDataset {
	ds := &model.ScoredDataset{
		Columns: append([]string(nil), t.Columns...),
		Records: make([]model.ScoredRecord, len(t.Rows)),
	}
	for i := range t.Rows {
		tenure, _ := t.Value(i, model.ColumnTenure)
		charges, _ := t.Value(i, model.ColumnTotalCharges)
		seg := segment.OfCells(tenure, charges)
		ds.Records[i] = model.ScoredRecord{
			Row:     i,
			Values:  append([]string(nil), t.Rows[i]...),
			Label:   labels[i],
			Segment: seg,
			Tier:    segment.AssignTier(seg),
		}
	}
	return ds
}

func (p *Pipeline) record(ctx context.Context, log *zap.Logger, run *model.Run) {
	p.metrics.ObserveRun(run)
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		log.Warn("pipeline: failed to record run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// UnmarshalJSON decodes a result and rebuilds its partitions.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "pipeline: decode result")
	}
	*r = Result(v)
	if r.Dataset != nil {
		r.Partitions = partition.Split(r.Dataset)
	}
	return nil
}

// Summary renders a one-line description of a result for logs and CLI output.
func (r *Result) Summary() string {
	if r == nil || r.Partitions == nil {
		return "no results"
	}
	return fmt.Sprintf("%d rows, %d churned (gold %d, silver %d, bronze %d)",
		r.Dataset.Len(), r.Partitions.Churned.Len(),
		r.Partitions.Gold.Len(), r.Partitions.Silver.Len(), r.Partitions.Bronze.Len())
}
