package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-weblog-analyzer/internal/auth"
	"github.com/viniciushammett/go-weblog-analyzer/internal/detector"
	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ingest"
	"github.com/viniciushammett/go-weblog-analyzer/internal/logger"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ml"
	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

const sample = `127.0.0.1 - - [10/Oct/2023:13:55:36 -0700] "GET /test HTTP/1.0" 200 1234 "-" "curl/7.0"
junk line
10.0.0.2 - - [10/Oct/2023:14:05:00 -0700] "POST /login HTTP/1.1" 503 10 "-" "ua"
`

type zeros struct{}

func (zeros) Reconstruct(m features.Matrix) (features.Matrix, error) {
	out := make(features.Matrix, len(m))
	for i, r := range m {
		out[i] = make([]float64, len(r))
	}
	return out, nil
}

type env struct {
	h     http.Handler
	store *store.Store
}

func newEnv(t *testing.T, guard func(*auth.JWT) auth.Guard) env {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	files, err := ingest.New(filepath.Join(dir, "uploads"), time.Minute)
	require.NoError(t, err)

	sc := &ml.Scaler{Min: make([]float64, features.Width), Scale: make([]float64, features.Width)}
	for i := range sc.Scale {
		sc.Scale[i] = 1
	}
	scorer := ml.NewScorer(ml.Resources{Model: zeros{}, Scaler: sc})
	j, err := auth.NewJWT("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	g := auth.Guard{}
	if guard != nil {
		g = guard(j)
	}
	srv := NewServer(Deps{
		Log:      logger.Nop(),
		Store:    db,
		Files:    files,
		Detector: detector.New(logger.Nop(), scorer, db, nil),
		Users:    auth.NewUsers(db, j),
		Guard:    g,
	}, Config{})
	return env{h: srv.Handler(), store: db}
}

func (e env) do(t *testing.T, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		j, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(j)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e env) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())
	return e.do(t, http.MethodPost, "/api/upload", buf.Bytes(), "Content-Type", mw.FormDataContentType())
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUploadScanAndStats(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.upload(t, "access.log", sample)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/scan/access.log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(SkippedLinesHeader))
	var rep report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.ThreatCount)
	assert.Equal(t, "Path: /test", rep.Threats[0].Details)

	rec = e.do(t, http.MethodGet, "/api/stats/access.log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum report.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 2, sum.TotalRequests)
	assert.Equal(t, 50.0, sum.ErrorRate)
}

func TestScanEmptyFileAndMissing(t *testing.T) {
	e := newEnv(t, nil)
	require.Equal(t, http.StatusOK, e.upload(t, "empty.log", "").Code)
	rec := e.do(t, http.MethodPost, "/api/scan/empty.log", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"threat_count":0,"threats":[]}`, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/scan/nope.log", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/stats/nope.log", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadWithoutFile(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/upload", []byte("x"), "Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelStatus(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/model/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, ml.FallbackThreshold, body["threshold"])
}

func TestHistoryLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	payload := map[string]any{
		"filename": "a.log",
		"stats":    map[string]any{"total_requests": 3, "unique_ips": 1, "error_rate": 0},
		"threats":  []map[string]any{{"ip": "1.1.1.1", "severity": "High", "time": "", "details": "Path: /", "reconstruction_error": 0.3}},
	}
	rec := e.do(t, http.MethodPost, "/api/history/save", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"history_id":1`)

	rec = e.do(t, http.MethodGet, "/api/history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.ScanHeader
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].ThreatCount)

	rec = e.do(t, http.MethodGet, "/api/history/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sc store.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sc))
	assert.Equal(t, "a.log", sc.Filename)
	assert.Equal(t, 3, sc.TotalRequests)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/history/abc", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/history/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/history/1", nil).Code)

	e.do(t, http.MethodPost, "/api/history/save", payload)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/history/clear-all", nil).Code)
	rec = e.do(t, http.MethodPost, "/api/history/save", payload)
	assert.Contains(t, rec.Body.String(), `"history_id":1`)
}

func TestServersAndAnalyze(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/servers", map[string]string{"owner_id": "u1", "name": "web-1", "ipv4": "10.0.0.1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ServerID string `json:"server_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.ServerID
	require.NotEmpty(t, id)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/servers", map[string]string{"name": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/servers", map[string]string{"owner_id": "u1", "name": "  "}).Code)

	rec = e.do(t, http.MethodGet, "/api/servers/user/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "web-1")

	rec = e.do(t, http.MethodPost, "/api/servers/"+id+"/analyze", map[string]any{"log_content": "GET /x", "path": "/x", "status": 404})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a struct {
		LogStatus string `json:"log_status"`
		IsAnomaly bool   `json:"is_anomaly"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, store.LogWarning, a.LogStatus)
	assert.True(t, a.IsAnomaly)

	rec = e.do(t, http.MethodGet, "/api/servers/"+id+"/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_logs":1`)

	rec = e.do(t, http.MethodGet, "/api/servers/"+id+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st store.ServerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.WarningCount)
	assert.Equal(t, 100.0, st.WarningPercentage)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/servers/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/servers/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/servers/"+id+"/analyze", map[string]string{}).Code)
}

func TestAuthFlowAndGuard(t *testing.T) {
	e := newEnv(t, func(j *auth.JWT) auth.Guard { return auth.Guard{JWT: j, Static: "ops-token"} })

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/history/", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/history/", nil, "Authorization", "Bearer ops-token").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", nil).Code)

	creds := map[string]string{"username": "alice", "password": "pw"}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/auth/register", creds).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/auth/register", creds).Code)

	rec := e.do(t, http.MethodPost, "/api/auth/login", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice", sess.Username)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/history/", nil, "Authorization", "Bearer "+sess.Token).Code)

	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "invalid"))
}

func TestFailMapsStoreValidationToBadRequest(t *testing.T) {
	s := NewServer(Deps{Log: logger.Nop()}, Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/servers", nil)
	s.fail(rec, req, fmt.Errorf("create server: %w", store.ErrInvalid))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
