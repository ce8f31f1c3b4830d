package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/autoreply/internal/keywords"
	"github.com/EgorLis/autoreply/internal/metrics"
)

func newTestServer(t *testing.T, connected func() bool) (*Server, *keywords.Store) {
	t.Helper()
	store, err := keywords.Open(keywords.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, store.Add("pm2", "process manager", nil, false))
	require.NoError(t, store.Add("cat", "meow", nil, true))
	require.NoError(t, store.Alias("pm", "pm2"))
	_, err = store.AddOCR("Stack Trace", "pm2")
	require.NoError(t, err)

	m := metrics.New()
	m.WatchStore(store)
	return New("127.0.0.1:0", store, m, connected), store
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	up := true
	s, _ := newTestServer(t, func() bool { return up })

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","gateway":"connected"}`, rec.Body.String())

	up = false
	rec = get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","gateway":"disconnected"}`, rec.Body.String())
}

func TestHealthOffline(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","gateway":"offline"}`, rec.Body.String())
}

func TestKeywords(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/keywords")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"groups":[["cat"],["pm2","pm"]]}`, rec.Body.String())

	rec = get(t, s, "/keywords?filter=meme")
	assert.JSONEq(t, `{"groups":[["cat"]]}`, rec.Body.String())

	rec = get(t, s, "/keywords?filter=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetKeyword(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/keywords/PM")
	require.Equal(t, http.StatusOK, rec.Code)
	var v keywordView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "pm2", v.Key)
	assert.Equal(t, "pm", v.Alias)
	assert.Equal(t, "process manager", v.Content)

	rec = get(t, s, "/keywords/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOCRAndStats(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s, "/ocr")
	assert.JSONEq(t, `{"triggers":[{"trigger":"stack trace","target":"pm2"}]}`, rec.Body.String())

	rec = get(t, s, "/stats")
	var st keywords.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Keywords)
	assert.Equal(t, 1, st.Aliases)
	assert.Equal(t, 1, st.Memes)
	assert.Equal(t, 1, st.OCRTriggers)
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autoreply_keywords 2")
}

func TestStartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)

	require.NoError(t, s.Shutdown(context.Background()))
}
