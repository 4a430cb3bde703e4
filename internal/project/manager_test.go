package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

func TestExtractMetadata(t *testing.T) {
	text := "Alice met Bob in Paris.\nThey talked about NASA and the weather, Alice said."

	ch := ExtractMetadata("ch1", text)
	assert.Equal(t, "ch1", ch.Name)
	assert.Equal(t, []string{"Alice", "Bob", "Paris", "They"}, ch.Names)
	assert.Equal(t, "Alice met Bob in Paris.", ch.Plot)
	assert.Empty(t, ch.Locations)
}

func TestExtractMetadata_PlotTruncated(t *testing.T) {
	line := strings.Repeat("é", 250)
	ch := ExtractMetadata("long", line+"\nsecond")
	assert.Equal(t, 200, len([]rune(ch.Plot)))
}

func TestExtractMetadata_Empty(t *testing.T) {
	ch := ExtractMetadata("empty", "")
	assert.Empty(t, ch.Names)
	assert.Equal(t, "", ch.Plot)
	assert.Equal(t, "", ch.Language)
}

func TestExtractMetadata_Language(t *testing.T) {
	text := "The old lighthouse keeper climbed the stairs every evening to light the lamp. " +
		"He had done this for forty years and never once missed a night, even when the storms were at their worst."
	ch := ExtractMetadata("ch1", text)
	assert.Equal(t, "en", ch.Language)
}

func TestManager_LoadMissingReturnsNew(t *testing.T) {
	m := NewManager(t.TempDir())

	p, err := m.Load("novel", "My Novel")
	require.NoError(t, err)
	assert.Equal(t, "novel", p.ID)
	assert.Equal(t, "My Novel", p.Title)
	assert.Empty(t, p.Chapters)

	p, err = m.Load("untitled", "")
	require.NoError(t, err)
	assert.Equal(t, "untitled", p.Title)
}

func TestManager_AddChapterPersists(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	p, err := m.Load("novel", "Novel")
	require.NoError(t, err)

	_, err = m.AddChapter(p, "ch1", "Alice arrives.\nMore text.")
	require.NoError(t, err)
	_, err = m.AddChapter(p, "ch2", "Bob leaves.")
	require.NoError(t, err)
	_, err = m.AddChapter(p, "ch1", "Alice arrives again.")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "novel", "project.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Novel", decoded["title"])

	reloaded, err := m.Load("novel", "")
	require.NoError(t, err)
	require.Len(t, reloaded.Chapters, 2)
	assert.Equal(t, "ch1", reloaded.Chapters[0].Name)
	assert.Equal(t, "Alice arrives again.", reloaded.Chapters[0].Plot)

	ch, ok := reloaded.Chapter("ch2")
	require.True(t, ok)
	assert.Equal(t, []string{"Bob"}, ch.Names)

	ids, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"novel"}, ids)
}

func TestOverview(t *testing.T) {
	p := &Project{ID: "x", Chapters: []Chapter{
		{Name: "ch1", Plot: "Alice arrives."},
		{Name: "ch2", Plot: "Bob leaves."},
		{Name: "ch3", Plot: "Storm."},
	}}

	assert.Equal(t, "ch1: Alice arrives.\nch2: Bob leaves.", Overview(p, 2))
	assert.Equal(t, "", Overview(p, 0))
	assert.Equal(t, "ch1: Alice arrives.\nch2: Bob leaves.\nch3: Storm.", Overview(p, 10))
	assert.Equal(t, "", Overview(nil, 1))
}

func TestManager_InvalidID(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.Load("../escape", "")
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))

	err = m.Save(&Project{})
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))
}

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestManager_ListMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "none"))
	ids, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
