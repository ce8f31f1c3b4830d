package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/autoreply/internal/keywords"
)

type staticSource map[string][]byte

func (s staticSource) Snapshot() (map[string][]byte, error) { return s, nil }

type brokenSource struct{}

func (brokenSource) Snapshot() (map[string][]byte, error) { return nil, errors.New("boom") }

func newTestScheduler(t *testing.T, src Source, keep int) *Scheduler {
	t.Helper()
	s, err := New(src, Conf{Dir: filepath.Join(t.TempDir(), "backups"), Keep: keep})
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestRunOnceWritesEveryDocument(t *testing.T) {
	s := newTestScheduler(t, staticSource{"options": []byte(`{"prefix":"."}`), "ocr": []byte(`{}`)}, 3)

	paths, err := s.RunOnce()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "ocr-20240501T120001.000Z.json", filepath.Base(paths[0]))
	assert.Equal(t, "options-20240501T120001.000Z.json", filepath.Base(paths[1]))

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, `{"prefix":"."}`, string(data))
}

func TestRunOnceKeepsNewest(t *testing.T) {
	s := newTestScheduler(t, staticSource{"options": []byte(`{}`), "ocr": []byte(`{}`)}, 2)

	var last []string
	for i := 0; i < 4; i++ {
		var err error
		last, err = s.RunOnce()
		require.NoError(t, err)
	}

	for _, name := range []string{"options", "ocr"} {
		files, err := s.List(name)
		require.NoError(t, err)
		assert.Len(t, files, 2, name)
	}
	opts, _ := s.List("options")
	assert.Equal(t, last[1], opts[1])
}

func TestRunOnceSnapshotError(t *testing.T) {
	s := newTestScheduler(t, brokenSource{}, 2)
	_, err := s.RunOnce()
	assert.ErrorContains(t, err, "boom")
}

func TestRunOnceFromStore(t *testing.T) {
	store, err := keywords.Open(keywords.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, store.Add("hello", "hi", nil, false))

	s := newTestScheduler(t, store, 5)
	paths, err := s.RunOnce()
	require.NoError(t, err)
	require.Len(t, paths, 2)

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hello"`)
}

func TestNewValidates(t *testing.T) {
	_, err := New(staticSource{}, Conf{Cron: "not a cron", Dir: "x"})
	assert.Error(t, err)

	_, err = New(staticSource{}, Conf{Cron: "@daily"})
	assert.Error(t, err)

	s, err := New(staticSource{}, Conf{Cron: "0 3 * * *", Dir: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.conf.Keep)
}

func TestStartStop(t *testing.T) {
	s, err := New(staticSource{}, Conf{Cron: "0 3 * * *", Dir: t.TempDir(), Keep: 1})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStartWithoutCron(t *testing.T) {
	s, err := New(staticSource{}, Conf{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
