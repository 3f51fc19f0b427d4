package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelParsing(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("warn", &buf, File{})
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	l = newLogger("nonsense", &buf, File{})
	l.Info().Msg("fallback to info")
	assert.Contains(t, buf.String(), "fallback to info")
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("info", &buf, File{})
	h := l.HTTP(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/healthz", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}

func TestFileSink(t *testing.T) {
	path := t.TempDir() + "/app.log"
	var buf bytes.Buffer
	l := newLogger("info", &buf, File{Path: path})
	l.Info().Msg("to both")
	assert.Contains(t, buf.String(), "to both")
	assert.FileExists(t, path)
}
