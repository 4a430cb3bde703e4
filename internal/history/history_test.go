package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

type failingStore struct {
	*MemoryStore
	fail bool
}

func (f *failingStore) SaveRevisions(ctx context.Context, key string, revs []Revision) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.SaveRevisions(ctx, key, revs)
}

func openEmpty(t *testing.T, store Store) *History {
	t.Helper()
	h, err := Open(context.Background(), store, "doc")
	require.NoError(t, err)
	return h
}

func TestOpen_Empty(t *testing.T) {
	h := openEmpty(t, NewMemoryStore())
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, -1, h.Cursor())
	_, ok := h.Current()
	assert.False(t, ok)
	_, ok = h.Undo()
	assert.False(t, ok)
	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestAppend_IdempotentForSameText(t *testing.T) {
	h := openEmpty(t, NewMemoryStore())
	require.True(t, h.Append("A"))
	require.False(t, h.Append("A"))
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, h.Cursor())
}

func TestAppend_TruncatesRedoBranch(t *testing.T) {
	h := openEmpty(t, NewMemoryStore())
	h.Append("A")
	h.Append("B")
	h.Append("C")
	require.Equal(t, 2, h.Cursor())

	text, ok := h.Undo()
	require.True(t, ok)
	assert.Equal(t, "B", text)
	assert.Equal(t, 1, h.Cursor())

	require.True(t, h.Append("D"))
	assert.Equal(t, 2, h.Cursor())
	texts := []string{}
	for _, r := range h.Revisions() {
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{"A", "B", "D"}, texts)

	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestAppend_SameAsCurrentAfterUndoIsNoop(t *testing.T) {
	h := openEmpty(t, NewMemoryStore())
	h.Append("A")
	h.Append("B")
	h.Undo()
	assert.False(t, h.Append("A"))
	assert.Equal(t, 2, h.Len(), "redo branch is kept when nothing changed")
	text, ok := h.Redo()
	require.True(t, ok)
	assert.Equal(t, "B", text)
}

func TestUndoRedo_Walk(t *testing.T) {
	h := openEmpty(t, NewMemoryStore())
	h.Append("A")
	h.Append("B")

	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	text, _ := h.Undo()
	assert.Equal(t, "A", text)
	_, ok := h.Undo()
	assert.False(t, ok, "cannot undo past the first revision")
	text, _ = h.Redo()
	assert.Equal(t, "B", text)
}

func TestFlush_LazyUntilAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveRevisions(ctx, "doc", []Revision{{Timestamp: time.Unix(1, 0).UTC(), Text: "X"}}))
	saves := store.Saves("doc")

	h, err := Open(ctx, store, "doc")
	require.NoError(t, err)
	assert.Equal(t, 0, h.Cursor())
	current, _ := h.Current()
	assert.Equal(t, "X", current)

	require.NoError(t, h.Flush(ctx))
	assert.Equal(t, saves, store.Saves("doc"), "clean flush must not write")

	h.Undo()
	h.Redo()
	require.NoError(t, h.Flush(ctx))
	assert.Equal(t, saves, store.Saves("doc"), "cursor moves are not persisted")

	h.Append("Y")
	require.NoError(t, h.Flush(ctx))
	assert.Equal(t, saves+1, store.Saves("doc"))
	stored, _ := store.LoadRevisions(ctx, "doc")
	assert.Equal(t, h.Revisions(), stored)
	assert.False(t, h.Dirty())

	require.NoError(t, h.Flush(ctx))
	assert.Equal(t, saves+1, store.Saves("doc"))
}

func TestFlush_FailureKeepsStateAndRetries(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), fail: true}
	h := openEmpty(t, store)
	h.Append("A")

	err := h.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsErrorType(err, errs.ErrStorage))
	assert.True(t, h.Dirty())
	assert.Equal(t, 1, h.Len())

	store.fail = false
	require.NoError(t, h.Flush(context.Background()))
	assert.False(t, h.Dirty())
	assert.Equal(t, 1, store.Saves("doc"))
}

func TestAppend_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	h, err := Open(context.Background(), nil, "doc", WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	h.Append("A")
	assert.Equal(t, fixed, h.Revisions()[0].Timestamp)
	assert.NoError(t, h.Flush(context.Background()))
}

func TestFileStore_RoundTripAndShape(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	revs := []Revision{
		{Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Text: "Hello"},
		{Timestamp: time.Date(2024, 5, 1, 10, 0, 1, 500, time.UTC), Text: "Hello world"},
	}
	require.NoError(t, store.SaveRevisions(ctx, "book/ch1.txt", revs))

	path := store.Path("book/ch1.txt")
	assert.Equal(t, filepath.Join(dir, "book_ch1.txt.history.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"timestamp": "2024-05-01T10:00:00Z", "text": "Hello"},
		{"timestamp": "2024-05-01T10:00:01.0000005Z", "text": "Hello world"}
	]`, string(data))

	loaded, err := store.LoadRevisions(ctx, "book/ch1.txt")
	require.NoError(t, err)
	assert.Equal(t, revs, loaded)

	h, err := Open(ctx, store, "book/ch1.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Cursor())
}

func TestFileStore_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	revs, err := store.LoadRevisions(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, revs)

	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("{"), 0o644))
	_, err = Open(context.Background(), store, "bad")
	require.Error(t, err)
	assert.True(t, errs.IsErrorType(err, errs.ErrStorage))
}
