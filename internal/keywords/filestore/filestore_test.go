package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EgorLis/autoreply/internal/keywords"
)

func TestLoadMissingDocument(t *testing.T) {
	fs, err := Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.Load(keywords.DocOptions)
	assert.ErrorIs(t, err, keywords.ErrNoDocument)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Save(keywords.DocOCR, []byte(`{"a":"b"}`)))
	got, err := fs.Load(keywords.DocOCR)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(got))

	_, err = os.Stat(filepath.Join(dir, "ocr.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreOnFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	require.NoError(t, err)

	s, err := keywords.Open(fs)
	require.NoError(t, err)
	require.NoError(t, s.Add("pm2", "Process Manager 2", nil, false))
	require.NoError(t, s.Alias("pm", "pm2"))
	require.NoError(t, fs.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "options.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"prefix":".","roleID":"","pm2":{"content":"Process Manager 2"},"pm":"pm2"}`, string(raw))

	fs2, err := Open(dir)
	require.NoError(t, err)
	defer fs2.Close()
	s2, err := keywords.Open(fs2)
	require.NoError(t, err)
	_, e, ok := s2.Resolve("PM", true)
	require.True(t, ok)
	assert.Equal(t, "Process Manager 2", e.Content)
}
