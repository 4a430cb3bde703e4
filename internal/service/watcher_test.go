package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/glossary"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

func TestGlossarySet_ReloadKeepsGoodFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, glossary.Save(filepath.Join(dir, "names.json"),
		&glossary.Glossary{Name: "names", AutoToPrompt: true, Entries: glossary.Entries{"Frodo": "Frodon"}}))
	require.NoError(t, glossary.Save(filepath.Join(dir, "places.toml"),
		&glossary.Glossary{Name: "places", AutoToPrompt: true, Entries: glossary.Entries{"Shire": "Comté"}}))
	require.NoError(t, glossary.Save(filepath.Join(dir, "manual.yaml"),
		&glossary.Glossary{Name: "manual", Entries: glossary.Entries{"Ring": "Anneau"}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	set := NewGlossarySet(dir)
	assert.Error(t, set.Reload())
	assert.Equal(t, glossary.Entries{"Frodo": "Frodon", "Shire": "Comté"}, set.Entries())
	assert.Len(t, set.Glossaries(), 3)

	// Callers get a copy.
	set.Entries()["Frodo"] = "changed"
	assert.Equal(t, "Frodon", set.Entries()["Frodo"])
}

func startWatcher(t *testing.T, app *App) {
	t.Helper()
	w, err := NewWatcher(app.Session, app.Library, app.Glossaries)
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcher_RefreshesOpenChapterSource(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ch1.txt": "Hello"})
	app, _ := newTestApp(t, cfg, provider.NewMock())
	require.NoError(t, app.Session.OpenChapter(context.Background(), "ch1.txt"))
	startWatcher(t, app)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Library.SourceDir, "ch1.txt"), []byte("Hello again"), 0o644))
	require.Eventually(t, func() bool {
		return app.Session.Snapshot().Source == "Hello again"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReloadsGlossaries(t *testing.T) {
	cfg := testConfig(t, nil)
	app, _ := newTestApp(t, cfg, provider.NewMock())
	startWatcher(t, app)

	require.NoError(t, glossary.Save(filepath.Join(cfg.GlossaryDir(), "names.json"),
		&glossary.Glossary{Name: "names", AutoToPrompt: true, Entries: glossary.Entries{"Gandalf": "Gandalf le Gris"}}))
	require.Eventually(t, func() bool {
		return app.Glossaries.Entries()["Gandalf"] == "Gandalf le Gris"
	}, 3*time.Second, 10*time.Millisecond)
}
