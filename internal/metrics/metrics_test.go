package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterAndHandler(t *testing.T) {
	require.NotPanics(t, MustRegister)

	Scans.WithLabelValues("ok").Inc()
	LinesSkipped.Add(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(Scans.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(LinesSkipped))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "wla_lines_skipped_total 3"))
}
