package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/churn-cli/internal/dataset"
	"github.com/sells-group/churn-cli/internal/metrics"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/overview"
	"github.com/sells-group/churn-cli/internal/pipeline"
	"github.com/sells-group/churn-cli/internal/session"
	"github.com/sells-group/churn-cli/internal/store"
)

// tenurePredictor marks customers with less than a year of tenure as churned.
type tenurePredictor struct{}

func (tenurePredictor) Name() string           { return "tenure-rule@1" }
func (tenurePredictor) FeatureNames() []string { return []string{"tenure", "Contract"} }

func (tenurePredictor) Predict(_ context.Context, t *model.Table) ([]model.ChurnLabel, error) {
	labels := make([]model.ChurnLabel, t.Len())
	for i, row := range t.Rows {
		v, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, err
		}
		if v <= 12 {
			labels[i] = model.LabelChurned
		}
	}
	return labels, nil
}

const telcoCSV = "customerID,tenure,Contract,TotalCharges\n" +
	"A1,10,Month-to-month,500\n" +
	"A2,48,Two year,3000\n" +
	"A3,2,Month-to-month,50\n" +
	"A4,11,Month-to-month,1000\n" +
	"A5,30,One year,1500\n" +
	"A6,70,Two year,6000\n"

type testEnv struct {
	srv      *httptest.Server
	sessions *session.MemoryStore
	runs     store.Store
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	runs, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, runs.Migrate(context.Background()))
	t.Cleanup(func() { runs.Close() })

	reg := prometheus.NewRegistry()
	p := pipeline.New(tenurePredictor{},
		pipeline.WithRecorder(runs),
		pipeline.WithMetrics(metrics.New(reg)),
	)
	sessions := session.NewMemoryStore(time.Hour)
	s := New(cfg, p, sessions, WithRunStore(runs), WithGatherer(reg))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, sessions: sessions, runs: runs, registry: reg}
}

func (e *testEnv) upload(t *testing.T, sessionID, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	require.NoError(t, err)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "tenure-rule@1", body["model"])
}

func TestUploadPredictOverviewDownload(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "telco.csv", telcoCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	up := decode[uploadResponse](t, resp)
	sid := up.SessionID
	require.NotEmpty(t, sid)
	assert.Equal(t, sid, resp.Header.Get(SessionHeader))
	assert.Equal(t, 6, up.Rows)
	assert.Equal(t, []string{"customerID", "tenure", "Contract", "TotalCharges"}, up.Columns)
	assert.Equal(t, 5, up.Preview.Len())

	// Overview before prediction is blocked.
	resp = env.do(t, http.MethodGet, "/api/overview", sid)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/predict", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pr := decode[predictResponse](t, resp)
	assert.Equal(t, 6, pr.Rows)
	assert.Equal(t, 3, pr.Views["churned"])
	assert.Equal(t, 2, pr.Views["bronze"])
	assert.Equal(t, 1, pr.Views["silver"])
	assert.Equal(t, 0, pr.Views["gold"])
	assert.Equal(t, "/api/results/bronze_churn_customers.csv", pr.Downloads["bronze"])

	resp = env.do(t, http.MethodGet, "/api/overview", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ov := decode[overview.Overview](t, resp)
	assert.Equal(t, 6, ov.Total)
	assert.Equal(t, overview.Count{Label: "Churn", Count: 3, Percent: 50}, ov.Churn[1])

	resp = env.do(t, http.MethodGet, "/api/results/bronze_churn_customers.csv", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bronze_churn_customers.csv")
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"customerID", "tenure", "Contract", "TotalCharges",
		"Churn_Prediction", "Customer_Segment", "Customer_Group"}, records[0])
	assert.Equal(t, []string{"A1", "10", "Month-to-month", "500",
		"1", "Growing Customers - Low Spender", "Bronze"}, records[1])

	resp = env.do(t, http.MethodGet, "/api/results/results", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records, err = csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 7)

	resp = env.do(t, http.MethodGet, "/api/runs?status=complete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decode[[]model.Run](t, resp)
	require.Len(t, runs, 1)
	assert.Equal(t, pr.RunID, runs[0].ID)
	assert.Equal(t, sid, runs[0].SessionID)

	resp = env.do(t, http.MethodGet, "/api/runs/"+pr.RunID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[model.Run](t, resp)
	assert.Equal(t, 2, run.TierCounts[model.TierBronze])
}

func TestResults_XLSX(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "telco.csv", telcoCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sid := decode[uploadResponse](t, resp).SessionID
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/predict", sid).StatusCode)

	resp = env.do(t, http.MethodGet, "/api/results/churned?format=xlsx", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "churn_customers.xlsx")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	tbl, err := dataset.LoadXLSX(body)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "Customer_Group", tbl.Columns[len(tbl.Columns)-1])

	resp = env.do(t, http.MethodGet, "/api/results/churned?format=pdf", sid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpload_Empty(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "empty.csv", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, "The file appears to be empty or unreadable. Check the format and try again.", body.Error)
	assert.Equal(t, model.ErrorCategoryUnreadable, body.Category)
}

func TestUpload_HeaderOnly(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "header.csv", "customerID,tenure,Contract,TotalCharges\n")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, model.ErrorCategoryNoRows, body.Category)
	assert.Contains(t, body.Error, "no customer rows")
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodPost, "/api/upload", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredict_MissingColumnKeepsPreviousResult(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "telco.csv", telcoCSV)
	sid := decode[uploadResponse](t, resp).SessionID
	resp = env.do(t, http.MethodPost, "/api/predict", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.upload(t, sid, "partial.csv", "tenure,Contract\n10,One year\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/predict", sid)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, `Missing required column: "TotalCharges"`, body.Error)
	assert.Equal(t, model.ErrorCategoryMissingColumn, body.Category)

	resp = env.do(t, http.MethodGet, "/api/overview", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6, decode[overview.Overview](t, resp).Total)
}

func TestPredict_NoUpload(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodPost, "/api/predict", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(SessionHeader))
}

func TestResults_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.do(t, http.MethodGet, "/api/results/platinum", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/results/gold", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRuns_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.do(t, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Run](t, resp))
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "telco.csv", telcoCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/predict", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, cookie.Value, resp.Header.Get(SessionHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.upload(t, "", "telco.csv", telcoCSV)
	sid := decode[uploadResponse](t, resp).SessionID
	env.do(t, http.MethodPost, "/api/predict", sid)

	resp = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "churn_pipeline_runs_total")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/overview", "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/api/overview", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Health is outside the rate-limited group.
	resp = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/overview", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
		req.Header.Set("X-Real-IP", "203.0.113."+strconv.Itoa(i+1))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusConflict, http.StatusConflict, http.StatusTooManyRequests}, statuses)
}

func TestRateLimit_TrustProxyKeysOnForwardedAddress(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 1, TrustProxy: true})

	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/overview", nil)
		require.NoError(t, err)
		req.Header.Set("X-Real-IP", "203.0.113."+strconv.Itoa(i+1))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("b"))
	assert.Len(t, rl.clients, 1)
}
