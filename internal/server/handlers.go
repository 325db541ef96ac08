package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/partition"
	"github.com/sells-group/churn-cli/internal/pipeline"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
)

// SessionHeader carries the session id on requests and responses.
const (
	SessionHeader = "X-Session-ID"
	sessionCookie = "churn_session"
	previewRows   = 5
)

type errorResponse struct {
	Error    string              `json:"error"`
	Category model.ErrorCategory `json:"category,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, category model.ErrorCategory) {
	writeJSON(w, status, errorResponse{Error: msg, Category: category})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  s.pipeline.Predictor().Name(),
	})
}

// sessionID reads the caller's session id from the header, then the cookie.
func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// loadSession returns the caller's session, creating one when the id is
// missing or has expired.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id := sessionID(r)
	var sess *session.Session
	if id != "" {
		found, err := s.sessions.Get(r.Context(), id)
		switch {
		case err == nil:
			sess = found
		case errors.Is(err, session.ErrNotFound):
		default:
			return nil, err
		}
	}
	if sess == nil {
		sess = session.New("")
	}

	w.Header().Set(SessionHeader, sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

type uploadResponse struct {
	SessionID string       `json:"session_id"`
	File      string       `json:"file"`
	Rows      int          `json:"rows"`
	Columns   []string     `json:"columns"`
	Preview   *model.Table `json:"preview"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(w, r)
	if err != nil {
		s.internalError(w, "load session", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", s.cfg.MaxUploadBytes), "")
			return
		}
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`, "")
		return
	}
	defer file.Close()

	upload, err := dataset.NewUpload(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.UserMessage(dataset.ErrEmptyOrUnreadable), model.ErrorCategoryUnreadable)
		return
	}

	table, err := dataset.Load(upload)
	if err != nil {
		writeError(w, http.StatusBadRequest, pipeline.UserMessage(err), pipeline.Categorize(err))
		return
	}

	sess.SetUpload(upload)
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		s.internalError(w, "save session", err)
		return
	}

	zap.L().Info("server: upload accepted",
		zap.String("session_id", sess.ID),
		zap.String("file", upload.Name),
		zap.Int("rows", table.Len()),
	)
	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID: sess.ID,
		File:      upload.Name,
		Rows:      table.Len(),
		Columns:   table.Columns,
		Preview:   table.Head(previewRows),
	})
}

type predictResponse struct {
	SessionID string                    `json:"session_id"`
	RunID     string                    `json:"run_id"`
	Model     string                    `json:"model"`
	Rows      int                       `json:"rows"`
	Views     map[partition.Name]int    `json:"views"`
	Downloads map[partition.Name]string `json:"downloads"`
	Summary   string                    `json:"summary"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(w, r)
	if err != nil {
		s.internalError(w, "load session", err)
		return
	}

	res, err := sess.Predict(r.Context(), s.pipeline)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if pipeline.Categorize(err) == model.ErrorCategoryInternal {
			status = http.StatusInternalServerError
		}
		writeError(w, status, pipeline.UserMessage(err), pipeline.Categorize(err))
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		s.internalError(w, "save session", err)
		return
	}

	downloads := make(map[partition.Name]string, len(partition.Names))
	for _, n := range partition.Names {
		downloads[n] = "/api/results/" + n.FileName()
	}
	writeJSON(w, http.StatusOK, predictResponse{
		SessionID: sess.ID,
		RunID:     res.RunID,
		Model:     res.Model,
		Rows:      res.Dataset.Len(),
		Views:     res.Partitions.Counts(),
		Downloads: downloads,
		Summary:   res.Summary(),
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(w, r)
	if err != nil {
		s.internalError(w, "load session", err)
		return
	}

	ov, err := sess.Overview()
	if errors.Is(err, session.ErrNoResults) {
		writeError(w, http.StatusConflict,
			"Please upload data and run the prediction first in the 'Upload & Predict' page.", "")
		return
	}
	if err != nil {
		s.internalError(w, "build overview", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// viewName accepts either a view name ("gold") or its file name
// ("gold_churn_customers.csv").
func viewName(s string) (partition.Name, bool) {
	if n, ok := partition.ParseName(s); ok {
		return n, true
	}
	for _, n := range partition.Names {
		if n.FileName() == s {
			return n, true
		}
	}
	return "", false
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	name, ok := viewName(chi.URLParam(r, "view"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown view", "")
		return
	}

	sess, err := s.loadSession(w, r)
	if err != nil {
		s.internalError(w, "load session", err)
		return
	}
	res := sess.Result()
	if res == nil || res.Partitions == nil {
		writeError(w, http.StatusConflict,
			"Please upload data and run the prediction first in the 'Upload & Predict' page.", "")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name.FileName()))
		err = res.Partitions.WriteView(w, name)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name.XLSXFileName()))
		err = res.Partitions.WriteViewXLSX(w, name)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx", "")
		return
	}
	if err != nil {
		zap.L().Error("server: write view", zap.String("view", string(name)), zap.Error(err))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		SessionID: q.Get("session_id"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer", "")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer", "")
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found", "")
		return
	}
	if err != nil {
		s.internalError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("server: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, pipeline.UserMessage(err), model.ErrorCategoryInternal)
}
