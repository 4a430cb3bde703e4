package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

func newMemLibrary(t *testing.T, files map[string]string) (*Library, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/src", name), []byte(content), 0o644))
	}
	return New("/src", "", "fr", WithFs(fs)), fs
}

func refs(chapters []Chapter) []string {
	out := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ch.Ref)
	}
	return out
}

func TestChapters_NaturalOrderAndFiltering(t *testing.T) {
	lib, _ := newMemLibrary(t, map[string]string{
		"ch10.txt":     "ten",
		"ch2.txt":      "two",
		"ch1.md":       "one",
		"ch2.fr.txt":   "deux",
		"notes.pdf":    "binary",
		".draft.txt":   "hidden",
		"part/ch3.txt": "three",
	})

	chapters, err := lib.Chapters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1.md", "ch2.txt", "ch10.txt", "part/ch3.txt"}, refs(chapters))

	byRef := map[string]Chapter{}
	for _, ch := range chapters {
		byRef[ch.Ref] = ch
	}
	assert.True(t, byRef["ch2.txt"].Translated)
	assert.False(t, byRef["ch10.txt"].Translated)
	assert.Equal(t, "ch10", byRef["ch10.txt"].Title)
	assert.Equal(t, filepath.Join("/src", "part", "ch3.fr.txt"), byRef["part/ch3.txt"].OutputPath)
}

func TestUntranslated(t *testing.T) {
	lib, _ := newMemLibrary(t, map[string]string{
		"a1.txt":    "x",
		"a2.txt":    "y",
		"a2.fr.txt": "y-fr",
		"a11.txt":   "z",
	})

	pending, err := lib.Untranslated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1.txt", "a11.txt"}, pending)
}

func TestLoad(t *testing.T) {
	lib, _ := newMemLibrary(t, map[string]string{"ch1.txt": "Hello"})
	ctx := context.Background()

	text, err := lib.Load(ctx, "ch1.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	_, err = lib.Load(ctx, "missing.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoChapter))
	assert.True(t, errs.IsErrorType(err, errs.ErrValidation))

	for _, ref := range []string{"", "../secret.txt", "/etc/passwd.txt", "ch1.pdf"} {
		_, err = lib.Load(ctx, ref)
		assert.True(t, errs.IsErrorType(err, errs.ErrValidation), "ref %q", ref)
	}
}

func TestSaveTranslation_RoundTrip(t *testing.T) {
	lib, fs := newMemLibrary(t, map[string]string{"ch1.txt": "Hello"})
	ctx := context.Background()

	_, ok, err := lib.LoadTranslation(ctx, "ch1.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	out, err := lib.SaveTranslation(ctx, "ch1.txt", "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/src", "ch1.fr.txt"), out)

	text, ok, err := lib.LoadTranslation(ctx, "ch1.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bonjour", text)

	entries, err := afero.ReadDir(fs, "/src")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp file must be renamed away")

	pending, err := lib.Untranslated(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSaveTranslation_OutputDir(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "translated")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "book"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "book", "ch1.md"), []byte("# One"), 0o644))

	lib := New(src, out, "zh-Hans")
	assert.Equal(t, "zh", lib.TargetLanguage())

	written, err := lib.SaveTranslation(context.Background(), "book/ch1.md", "# 一")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "book", "ch1.zh.md"), written)

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "# 一", string(data))

	chapters, err := lib.Chapters(context.Background())
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.True(t, chapters[0].Translated)
}

func TestUpdateTargetLanguage(t *testing.T) {
	lib, _ := newMemLibrary(t, map[string]string{"ch1.txt": "x", "ch1.fr.txt": "y"})

	require.NoError(t, lib.UpdateTargetLanguage("de-DE"))
	assert.Equal(t, "de", lib.TargetLanguage())

	chapters, err := lib.Chapters(context.Background())
	require.NoError(t, err)
	// With German as target the French file is an ordinary chapter.
	assert.Equal(t, []string{"ch1.fr.txt", "ch1.txt"}, refs(chapters))

	err = lib.UpdateTargetLanguage("not a language!")
	assert.True(t, errs.IsErrorType(err, errs.ErrConfig))
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ch2", "ch10", true},
		{"ch10", "ch2", false},
		{"a", "b", true},
		{"Chapter 3", "chapter 12", true},
		{"ch01", "ch1", false},
		{"ch1", "ch01", true},
		{"ch1", "ch1a", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, naturalLess(tt.a, tt.b), "%q < %q", tt.a, tt.b)
	}
}

func TestChapters_Cancelled(t *testing.T) {
	lib, _ := newMemLibrary(t, map[string]string{"ch1.txt": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lib.Chapters(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRef(t *testing.T) {
	lib, _ := newMemLibrary(t, nil)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join("/src", "ch1.txt"), "ch1.txt", true},
		{filepath.Join("/src", "part", "ch3.md"), "part/ch3.md", true},
		{filepath.Join("/src", "ch1.fr.txt"), "", false},
		{filepath.Join("/src", "cover.png"), "", false},
		{filepath.Join("/elsewhere", "ch1.txt"), "", false},
		{"/src", "", false},
	}
	for _, tt := range tests {
		got, ok := lib.Ref(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}
