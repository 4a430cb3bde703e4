package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/history"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
)

func TestScheduler_ScheduleAndReschedule(t *testing.T) {
	cfg := testConfig(t, nil)
	app, _ := newTestApp(t, cfg, provider.NewMock())

	require.NoError(t, app.Scheduler.Schedule(context.Background()))
	assert.Len(t, app.Cron.Entries(), 1)

	info := app.Scheduler.Info()
	require.NotNil(t, info.Autosave)
	assert.Equal(t, "@every 1h", info.Autosave.Expression)
	assert.Nil(t, info.AutoBatch)

	rs := app.Settings.GetRuntimeSettings()
	rs.AutoBatchCron = "0 3 * * *"
	require.NoError(t, app.Scheduler.Reschedule(rs))
	assert.Len(t, app.Cron.Entries(), 2)

	// Same expressions keep their entries.
	before := app.Cron.Entries()
	require.NoError(t, app.Scheduler.Reschedule(rs))
	assert.Equal(t, before[0].ID, app.Cron.Entries()[0].ID)

	rs.AutosaveCron = ""
	require.NoError(t, app.Scheduler.Reschedule(rs))
	assert.Len(t, app.Cron.Entries(), 1)
	info = app.Scheduler.Info()
	assert.Nil(t, info.Autosave)
	require.NotNil(t, info.AutoBatch)
	assert.Equal(t, 3, info.AutoBatch.Next.Hour())
}

func TestScheduler_RejectsInvalidExpression(t *testing.T) {
	cfg := testConfig(t, nil)
	app, _ := newTestApp(t, cfg, provider.NewMock())

	rs := app.Settings.GetRuntimeSettings()
	rs.AutoBatchCron = "every tuesday"
	assert.Error(t, app.Scheduler.Reschedule(rs))
}

func TestScheduler_AutoBatchQueuesUntranslated(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ch1.txt": "one", "ch2.txt": "two"})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Library.SourceDir, "ch2.fr.txt"), []byte("deux"), 0o644))
	app, events := newTestApp(t, cfg, provider.NewMock())
	ctx := context.Background()

	n, err := app.Scheduler.AutoBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return events.batchCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(cfg.Library.SourceDir, "ch1.fr.txt"))
	require.NoError(t, err)
	assert.Equal(t, "MOCK: one", string(data))

	n, err = app.Scheduler.AutoBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, app.Scheduler.Info().LastAutoBatch.IsZero())
}

func TestScheduler_AutoBatchSharesConcurrentRuns(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ch1.txt": "one"})
	release := make(chan struct{})
	m := provider.NewMock()
	m.Fn = func(_ context.Context, text, _ string, _ map[string]string) (string, error) {
		<-release
		return "done: " + text, nil
	}
	app, events := newTestApp(t, cfg, m)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := app.Scheduler.AutoBatch(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(release)

	require.Eventually(t, func() bool { return events.batchCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, m.Calls(), 1)
	assert.GreaterOrEqual(t, total, 1)
}

func TestScheduler_AutosaveWritesHistory(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ch1.txt": "Hello"})
	app, _ := newTestApp(t, cfg, provider.NewMock())
	ctx := context.Background()

	require.NoError(t, app.Session.OpenChapter(ctx, "ch1.txt"))
	app.Session.OnTextChanged("Bonjour")
	require.Eventually(t, func() bool { return app.Session.Snapshot().Revisions == 1 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, app.Session.Snapshot().Dirty)

	require.NoError(t, app.Scheduler.Autosave(ctx))
	assert.False(t, app.Session.Snapshot().Dirty)
	assert.False(t, app.Scheduler.Info().LastAutosave.IsZero())

	revs, err := history.NewFileStore(cfg.HistoryDir()).LoadRevisions(ctx, "ch1.txt")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "Bonjour", revs[0].Text)
}
