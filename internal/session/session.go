// Package session holds per-user pipeline state: the current upload and the
// last successful result. Sessions are persisted through a Store.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/overview"
	"github.com/sells-group/churn-cli/internal/pipeline"
)

var (
	// ErrNoResults is returned when a view needs a scored dataset that does not exist yet.
	ErrNoResults = eris.New("session: no prediction results, upload data and run the prediction first")
	// ErrNotFound is returned by stores for unknown or expired session ids.
	ErrNotFound = eris.New("session: not found")
)

// Session is the state owned by one user. A run mutates it only on success,
// and runs on the same session never overlap.
type Session struct {
	ID string

	mu        sync.Mutex
	upload    *dataset.Upload
	result    *pipeline.Result
	updatedAt time.Time
}

// New creates an empty session. An empty id is replaced with a fresh uuid.
func New(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{ID: id, updatedAt: time.Now().UTC()}
}

// SetUpload replaces the current upload. The last result is kept until the
// next successful prediction.
func (s *Session) SetUpload(u *dataset.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upload = u
	s.updatedAt = time.Now().UTC()
}

// Upload returns the current upload, or nil.
func (s *Session) Upload() *dataset.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload
}

// Result returns the last successful result, or nil.
func (s *Session) Result() *pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// UpdatedAt returns the time of the last state change.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Predict runs the current upload through p. The result replaces the
// previous one only when the run succeeds.
func (s *Session) Predict(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := p.RunForSession(ctx, s.ID, s.upload)
	if err != nil {
		return nil, err
	}
	s.result = res
	s.updatedAt = time.Now().UTC()
	return res, nil
}

// Overview summarizes the last result. It fails with ErrNoResults before the
// first successful prediction.
func (s *Session) Overview() (*overview.Overview, error) {
	res := s.Result()
	if res == nil || res.Dataset == nil {
		return nil, ErrNoResults
	}
	return overview.Build(res.Dataset), nil
}

type snapshot struct {
	ID         string           `json:"id"`
	UploadName string           `json:"upload_name,omitempty"`
	UploadData []byte           `json:"upload_data,omitempty"`
	HasUpload  bool             `json:"has_upload"`
	Result     *pipeline.Result `json:"result,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// MarshalJSON encodes the session including the raw upload bytes.
func (s *Session) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{ID: s.ID, Result: s.result, UpdatedAt: s.updatedAt}
	if s.upload != nil {
		snap.HasUpload = true
		snap.UploadName = s.upload.Name
		snap.UploadData = s.upload.Bytes()
	}
	return json.Marshal(snap)
}

// UnmarshalJSON restores a session encoded by MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return eris.Wrap(err, "session: decode")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ID = snap.ID
	s.result = snap.Result
	s.updatedAt = snap.UpdatedAt
	s.upload = nil
	if snap.HasUpload {
		s.upload = dataset.NewUploadBytes(snap.UploadName, snap.UploadData)
	}
	return nil
}
