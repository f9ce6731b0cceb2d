package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(FetchTotal.WithLabelValues("ok"))
	FetchTotal.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FetchTotal.WithLabelValues("ok")))

	RegistryStoredBytes.WithLabelValues("memory").Set(1234)
	assert.Equal(t, float64(1234), testutil.ToFloat64(RegistryStoredBytes.WithLabelValues("memory")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	FetchBytesTotal.Add(10)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "blobprobe_fetch_bytes_total"))
}
