package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/autoreply/internal/keywords"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Message("reply")
	m.Message("reply")
	m.Verdict("warn")
	m.Command("add", nil)
	m.Command("add", errors.New("x"))
	m.OCR("match")
	m.Gateway("connected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("warn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocr.WithLabelValues("match")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Message("x")
		m.Verdict("x")
		m.Command("x", nil)
		m.OCR("x")
		m.Gateway("x")
		m.WatchStore(nil)
	})
}

func TestHandlerExposesStoreGauges(t *testing.T) {
	s, err := keywords.Open(keywords.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, s.Add("a", "1", nil, false))
	require.NoError(t, s.Alias("b", "a"))

	m := New()
	m.WatchStore(s)
	m.Message("reply")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "autoreply_keywords 1")
	assert.Contains(t, string(body), "autoreply_aliases 1")
	assert.Contains(t, string(body), `autoreply_messages_total{outcome="reply"} 1`)
}
