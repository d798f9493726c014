package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Uploads.WithLabelValues(ResultStored).Inc()
	m.Uploads.WithLabelValues(ResultIgnored).Add(2)
	m.BytesWritten.Add(512)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(ResultStored)))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.BytesWritten))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `img_upload_uploads_total{result="ignored"} 2`)
	assert.Contains(t, string(body), "img_upload_bytes_written_total 512")
}
