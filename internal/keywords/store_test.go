package keywords

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	b := NewMemoryBackend()
	s, err := Open(b)
	require.NoError(t, err)
	return s, b
}

func mustAdd(t *testing.T, s *Store, key, content string) {
	t.Helper()
	require.NoError(t, s.Add(key, content, nil, false))
}

func TestOpenWritesDefaults(t *testing.T) {
	s, b := newTestStore(t)
	assert.Equal(t, DefaultPrefix, s.Prefix())
	assert.Equal(t, "", s.RoleID())

	opts, err := b.Load(DocOptions)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prefix":".","roleID":""}`, string(opts))
	ocr, err := b.Load(DocOCR)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(ocr))
}

func TestAddAndResolveCaseInsensitive(t *testing.T) {
	s, b := newTestStore(t)
	before := b.Saves()
	mustAdd(t, s, "PM2", "Process Manager 2")
	assert.Equal(t, before+1, b.Saves(), "every mutation is persisted")

	key, e, ok := s.Resolve("pm2", true)
	require.True(t, ok)
	assert.Equal(t, "PM2", key)
	assert.Equal(t, KindCanonical, e.Kind)
	assert.Equal(t, "Process Manager 2", e.Content)

	err := s.Add("pm2", "again", nil, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAddValidation(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.Add("prefix", "x", nil, false), ErrReservedKey)
	assert.ErrorIs(t, s.Add("ROLEID", "x", nil, false), ErrReservedKey)
	assert.ErrorIs(t, s.Add("", "x", nil, false), ErrEmptyKey)
	assert.ErrorIs(t, s.Add("k", "", nil, false), ErrEmptyResponse)

	files := []Attachment{{URL: "https://cdn.example/a.png", Name: "a.png"}}
	require.NoError(t, s.Add("img", "", files, true))
	_, e, ok := s.Resolve("img", true)
	require.True(t, ok)
	assert.Equal(t, files, e.Files)
	assert.True(t, e.IsMeme)
}

func TestEdit(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "help", "old")
	require.NoError(t, s.Alias("h", "help"))

	require.NoError(t, s.Edit("H", "new", nil, true))
	_, e, _ := s.Resolve("help", true)
	assert.Equal(t, "new", e.Content)
	assert.True(t, e.IsMeme)

	_, raw, _ := s.Resolve("h", false)
	assert.Equal(t, KindAlias, raw.Kind, "editing through an alias edits the canonical")

	assert.ErrorIs(t, s.Edit("missing", "x", nil, false), ErrNotFound)
	assert.ErrorIs(t, s.Edit("help", "", nil, false), ErrEmptyResponse)
}

func TestAliasIsReferentiallyTransparent(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "help", "read the docs")
	require.NoError(t, s.Alias("halp", "help"))

	k1, e1, ok1 := s.Resolve("halp", true)
	k2, e2, ok2 := s.Resolve("help", true)
	assert.Equal(t, ok2, ok1)
	assert.Equal(t, k2, k1)
	assert.Equal(t, e2, e1)

	k, raw, ok := s.Resolve("halp", false)
	require.True(t, ok)
	assert.Equal(t, "halp", k)
	assert.Equal(t, Entry{Kind: KindAlias, Target: "help"}, raw)
}

func TestAliasOfAliasPointsAtCanonical(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "help", "docs")
	require.NoError(t, s.Alias("h", "help"))
	require.NoError(t, s.Alias("hh", "h"))

	_, raw, ok := s.Resolve("hh", false)
	require.True(t, ok)
	assert.Equal(t, "help", raw.Target)
}

func TestAliasErrors(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "help", "docs")
	mustAdd(t, s, "other", "x")

	assert.ErrorIs(t, s.Alias("prefix", "help"), ErrReservedKey)
	assert.ErrorIs(t, s.Alias("x", "roleID"), ErrReservedKey)
	assert.ErrorIs(t, s.Alias("OTHER", "help"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Alias("x", "nope"), ErrNotFound)
	assert.ErrorIs(t, s.Alias("", "help"), ErrEmptyKey)
}

func TestAliasRejectsChainFromLegacyData(t *testing.T) {
	b := NewMemoryBackend()
	b.Put(DocOptions, []byte(`{"prefix":"!","a":"b","b":"c","c":{"content":"hi"}}`))
	s, err := Open(b)
	require.NoError(t, err)

	_, e, ok := s.Resolve("a", true)
	require.True(t, ok)
	assert.Equal(t, KindAlias, e.Kind, "resolve follows a single hop only")

	assert.ErrorIs(t, s.Alias("help", "a"), ErrNotFound)
	_, _, ok = s.Resolve("help", false)
	assert.False(t, ok)
}

func TestRemoveCanonicalCascades(t *testing.T) {
	s, b := newTestStore(t)
	mustAdd(t, s, "help", "docs")
	mustAdd(t, s, "keep", "x")
	require.NoError(t, s.Alias("h", "help"))
	require.NoError(t, s.Alias("HALP", "help"))
	require.NoError(t, s.Alias("k", "keep"))
	_, err := s.AddOCR("read the docs", "h")
	require.NoError(t, err)
	_, err = s.AddOCR("keep me", "keep")
	require.NoError(t, err)

	require.NoError(t, s.Remove("HELP"))

	for _, k := range []string{"help", "h", "halp"} {
		_, _, ok := s.Resolve(k, false)
		assert.False(t, ok, k)
	}
	_, _, ok := s.MatchOCR("please read the docs")
	assert.False(t, ok)
	assert.Equal(t, []OCRTrigger{{Trigger: "keep me", Target: "keep"}}, s.OCRTriggers())

	ocr, err := b.Load(DocOCR)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keep me":"keep"}`, string(ocr))

	assert.ErrorIs(t, s.Remove("help"), ErrNotFound)
}

func TestRemoveAliasOnly(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "help", "docs")
	require.NoError(t, s.Alias("h", "help"))
	require.NoError(t, s.Alias("hh", "help"))

	require.NoError(t, s.Remove("h"))
	_, _, ok := s.Resolve("h", false)
	assert.False(t, ok)
	_, _, ok = s.Resolve("help", false)
	assert.True(t, ok)
	_, _, ok = s.Resolve("hh", true)
	assert.True(t, ok)
}

func TestRename(t *testing.T) {
	s, b := newTestStore(t)
	mustAdd(t, s, "a", "payload")
	require.NoError(t, s.Alias("x", "a"))
	require.NoError(t, s.Alias("y", "a"))
	_, err := s.AddOCR("needle", "a")
	require.NoError(t, err)

	_, before, _ := s.Resolve("a", true)
	require.NoError(t, s.Rename("A", "b"))

	_, _, ok := s.Resolve("a", true)
	assert.False(t, ok)
	key, after, ok := s.Resolve("b", true)
	require.True(t, ok)
	assert.Equal(t, "b", key)
	assert.Equal(t, before, after)

	for _, alias := range []string{"x", "y"} {
		_, raw, ok := s.Resolve(alias, false)
		require.True(t, ok)
		assert.Equal(t, "b", raw.Target, alias)
	}
	canon, _, ok := s.MatchOCR("a NEEDLE in text")
	require.True(t, ok)
	assert.Equal(t, "b", canon)

	ocr, err := b.Load(DocOCR)
	require.NoError(t, err)
	assert.JSONEq(t, `{"needle":"b"}`, string(ocr))
}

func TestRenameErrors(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "a", "1")
	mustAdd(t, s, "b", "2")

	assert.ErrorIs(t, s.Rename("a", "B"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Rename("missing", "c"), ErrNotFound)
	assert.ErrorIs(t, s.Rename("a", "prefix"), ErrReservedKey)
	assert.ErrorIs(t, s.Rename("roleID", "z"), ErrReservedKey)
}

func TestRenameCaseOnly(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "pm2", "x")
	require.NoError(t, s.Alias("p", "pm2"))
	require.NoError(t, s.Rename("pm2", "PM2"))

	key, _, ok := s.Resolve("pm2", true)
	require.True(t, ok)
	assert.Equal(t, "PM2", key)
	_, raw, _ := s.Resolve("p", false)
	assert.Equal(t, "PM2", raw.Target)
}

func TestRenameAliasMovesPointer(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "a", "1")
	require.NoError(t, s.Alias("x", "a"))
	require.NoError(t, s.Rename("x", "z"))

	_, raw, ok := s.Resolve("z", false)
	require.True(t, ok)
	assert.Equal(t, Entry{Kind: KindAlias, Target: "a"}, raw)
}

func TestSetMeme(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "cat", "meow")
	require.NoError(t, s.Alias("kitty", "cat"))
	require.NoError(t, s.SetMeme("kitty", true))
	_, e, _ := s.Resolve("cat", true)
	assert.True(t, e.IsMeme)
	assert.ErrorIs(t, s.SetMeme("dog", true), ErrNotFound)
}

func TestSettings(t *testing.T) {
	s, b := newTestStore(t)
	require.NoError(t, s.SetPrefix("!"))
	require.NoError(t, s.SetRoleID("42"))
	assert.ErrorIs(t, s.SetPrefix(""), ErrEmptyKey)

	reopened, err := Open(b)
	require.NoError(t, err)
	assert.Equal(t, "!", reopened.Prefix())
	assert.Equal(t, "42", reopened.RoleID())

	_, _, ok := reopened.Resolve("prefix", false)
	assert.False(t, ok, "settings are not keywords")
}

func TestOCR(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "crash", "see pinned")
	mustAdd(t, s, "oom", "more ram")
	require.NoError(t, s.Alias("c", "crash"))

	canon, err := s.AddOCR("  Segmentation Fault ", "c")
	require.NoError(t, err)
	assert.Equal(t, "crash", canon)
	_, err = s.AddOCR("fault", "oom")
	require.NoError(t, err)

	_, err = s.AddOCR("segmentation fault", "oom")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = s.AddOCR("x", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddOCR("x", "prefix")
	assert.ErrorIs(t, err, ErrReservedKey)
	_, err = s.AddOCR("   ", "oom")
	assert.ErrorIs(t, err, ErrEmptyTrigger)

	key, e, ok := s.MatchOCR("Program received SEGMENTATION FAULT at 0x0")
	require.True(t, ok)
	assert.Equal(t, "crash", key, "first trigger in insertion order wins")
	assert.Equal(t, "see pinned", e.Content)

	key, _, ok = s.MatchOCR("page fault")
	require.True(t, ok)
	assert.Equal(t, "oom", key)

	_, _, ok = s.MatchOCR("all good")
	assert.False(t, ok)

	require.NoError(t, s.RemoveOCR("SEGMENTATION fault"))
	assert.True(t, errors.Is(s.RemoveOCR("segmentation fault"), ErrNotFound))
	assert.Equal(t, "`fault` -> oom", s.OCRList())
}

func TestOCRCollapsesWhitespace(t *testing.T) {
	s, _ := newTestStore(t)
	mustAdd(t, s, "crash", "see pinned")

	_, err := s.AddOCR("segmentation   fault", "crash")
	require.NoError(t, err)
	assert.Equal(t, "`segmentation fault` -> crash", s.OCRList())

	_, err = s.AddOCR("Segmentation\tFault", "crash")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	key, _, ok := s.MatchOCR("core dumped:\nsegmentation\n  fault")
	require.True(t, ok)
	assert.Equal(t, "crash", key)

	require.NoError(t, s.RemoveOCR("segmentation   fault"))
	assert.Empty(t, s.OCRTriggers())
}

func TestLoadKeepsOrderAndRoundTrips(t *testing.T) {
	doc := `{
	"prefix": "!",
	"roleID": "123",
	"zeta": {"content": "z"},
	"alpha": {"content": "a", "files": [{"attachment": "https://x/y.png", "name": "y.png"}], "isMeme": true},
	"z": "zeta"
}
`
	b := NewMemoryBackend()
	b.Put(DocOptions, []byte(doc))
	b.Put(DocOCR, []byte(`{"Needle": "alpha"}`))
	s, err := Open(b)
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(snap[DocOptions]))
	assert.JSONEq(t, `{"needle":"alpha"}`, string(snap[DocOCR]))

	again := NewMemoryBackend()
	again.Put(DocOptions, snap[DocOptions])
	again.Put(DocOCR, snap[DocOCR])
	s2, err := Open(again)
	require.NoError(t, err)
	snap2, err := s2.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(snap[DocOptions]), string(snap2[DocOptions]))
}

func TestLoadRejectsBadDocument(t *testing.T) {
	b := NewMemoryBackend()
	b.Put(DocOptions, []byte(`{"k": 12}`))
	_, err := Open(b)
	assert.Error(t, err)

	b.Put(DocOptions, []byte(`[1,2]`))
	_, err = Open(b)
	assert.Error(t, err)
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Save(string, []byte) error { return errors.New("disk full") }

func TestSaveErrorPropagates(t *testing.T) {
	mem := NewMemoryBackend()
	mem.Put(DocOptions, []byte(`{}`))
	mem.Put(DocOCR, []byte(`{}`))
	s, err := Open(failingBackend{mem})
	require.NoError(t, err)

	err = s.Add("k", "v", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, errors.Is(err, ErrAlreadyExists))
}
