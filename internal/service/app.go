package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/MimeLyc/contextual-doc-translator/internal/config"
	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/glossary"
	"github.com/MimeLyc/contextual-doc-translator/internal/highlight"
	"github.com/MimeLyc/contextual-doc-translator/internal/history"
	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
	"github.com/MimeLyc/contextual-doc-translator/internal/library"
	"github.com/MimeLyc/contextual-doc-translator/internal/persistence"
	"github.com/MimeLyc/contextual-doc-translator/internal/project"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
	"github.com/MimeLyc/contextual-doc-translator/internal/ratelimit"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/icron"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// App wires the editing session to its stores, provider and schedules.
type App struct {
	Config     *config.Config
	Settings   *config.RuntimeSettingsStore
	Registry   *provider.Registry
	Limiter    *ratelimit.Limiter
	Loop       *session.Loop
	Session    *session.Session
	Library    *library.Library
	Projects   *project.Manager
	Project    *project.Project
	Glossaries *GlossarySet
	Cron       *cron.Cron
	Scheduler  *Scheduler

	providers *providerSettings
	thesaurus *glossary.Thesaurus
	db        *persistence.SQLiteStore
}

type appOptions struct {
	events   []session.Events
	registry *provider.Registry
}

type AppOption func(*appOptions)

// WithEvents adds receivers for session notifications.
func WithEvents(events ...session.Events) AppOption {
	return func(o *appOptions) {
		o.events = append(o.events, events...)
	}
}

func WithRegistry(r *provider.Registry) AppOption {
	return func(o *appOptions) {
		o.registry = r
	}
}

func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	initial, err := loadRuntimeSettings(cfg)
	if err != nil {
		return nil, err
	}
	settings, err := config.NewRuntimeSettingsStore(cfg.Storage.SettingsFile, initial)
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStorage, "open database").WithContext("path", cfg.DBPath())
	}
	var historyStore history.Store = db
	switch cfg.Storage.HistoryBackend {
	case config.HistoryBackendFile:
		historyStore = history.NewFileStore(cfg.HistoryDir())
	case config.HistoryBackendMemory:
		historyStore = history.NewMemoryStore()
	}

	registry := o.registry
	if registry == nil {
		registry = provider.NewRegistry()
	}
	registry.SetBreaker(provider.BreakerSettings{
		ConsecutiveFailures: uint32(max(cfg.Translate.BreakerFailures, 0)),
		OpenTimeout:         time.Duration(cfg.Translate.BreakerTimeout) * time.Second,
	})

	lib := library.New(cfg.Library.SourceDir, cfg.Library.OutputDir, initial.TargetLanguage,
		library.WithExtensions(cfg.Library.Extensions...))

	projects := project.NewManager(cfg.ProjectsDir())
	proj, err := projects.Load(cfg.Library.ProjectID, "")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	glossaries := NewGlossarySet(cfg.GlossaryDir())
	glossaries.Include(glossary.FindInAncestors(cfg.Library.SourceDir,
		cfg.Translate.SourceLanguage.String(), initial.TargetLanguage))
	if err := glossaries.Reload(); err != nil {
		errs.Report(errs.Wrap(err, errs.ErrStorage, "load glossaries"))
	}

	unit := highlight.Graphemes
	if cfg.Session.HighlightUnit == "runes" {
		unit = highlight.Runes
	}

	limiter := ratelimit.New(initial.RateLimit)
	providers := newProviderSettings(settings, registry, cfg)
	loop := session.NewLoop()
	sess := session.New(loop, jobs.NewRunner(limiter), providers,
		session.WithLibrary(lib),
		session.WithHistoryStore(historyStore),
		session.WithBatchStore(db),
		session.WithEvents(session.Fanout(append([]session.Events{logEvents{}}, o.events...)...)),
		session.WithGlossary(glossaries.Entries),
		session.WithProject(projects, proj),
		session.WithDebounce(cfg.Debounce()),
		session.WithHighlightUnit(unit),
	)

	engine := cron.New(cron.WithParser(icron.Parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	app := &App{
		Config:     cfg,
		Settings:   settings,
		Registry:   registry,
		Limiter:    limiter,
		Loop:       loop,
		Session:    sess,
		Library:    lib,
		Projects:   projects,
		Project:    proj,
		Glossaries: glossaries,
		Cron:       engine,
		Scheduler:  NewScheduler(sess, lib, settings, engine),
		providers:  providers,
		thesaurus:  glossary.NewThesaurus(glossary.DefaultSynonymCacheSize),
		db:         db,
	}
	settings.OnChange(app.applyRuntimeSettings)

	if n := sess.ResumeBatch(); n > 0 {
		log.Info("Resumed %d batch items from the previous run", n)
	}
	if pending, err := lib.Untranslated(ctx); err == nil {
		log.Info("Library %s: %d chapters without a translation", lib.SourceDir(), len(pending))
	} else {
		log.Warn("Failed to scan %s: %v", lib.SourceDir(), err)
	}
	return app, nil
}

// loadRuntimeSettings overlays the saved settings file, if any, on cfg.
func loadRuntimeSettings(cfg *config.Config) (config.RuntimeSettings, error) {
	saved, err := config.LoadRuntimeSettingsFile(cfg.Storage.SettingsFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg.RuntimeSettings(), nil
	case err != nil:
		return config.RuntimeSettings{}, err
	}

	config.WithRuntimeSettings(saved)(cfg)
	initial := cfg.RuntimeSettings()
	initial.APIKey = saved.APIKey
	log.Info("Applied runtime settings from %s", cfg.Storage.SettingsFile)
	return initial, nil
}

func (a *App) applyRuntimeSettings(rs config.RuntimeSettings) {
	a.Limiter.SetRate(rs.RateLimit)
	if err := a.Library.UpdateTargetLanguage(rs.TargetLanguage); err != nil {
		errs.Report(err)
	}
	if err := a.Scheduler.Reschedule(rs); err != nil {
		errs.Report(err)
	}
	log.Info("Runtime settings updated: provider=%s model=%q target=%s rate=%v",
		rs.Provider, rs.Model, rs.TargetLanguage, rs.RateLimit)
}

// Provider returns the provider for the current runtime settings.
func (a *App) Provider() (provider.Provider, error) {
	return a.providers.Provider()
}

// SuggestGlossary asks the provider for term translations found in text that
// no loaded glossary covers yet.
func (a *App) SuggestGlossary(ctx context.Context, text string) (glossary.Entries, error) {
	if text == "" {
		return nil, errs.New(errs.ErrValidation, "text is required")
	}
	prov, err := a.Provider()
	if err != nil {
		return nil, err
	}
	rs := a.Settings.GetRuntimeSettings()
	return glossary.NewSuggester(prov).Suggest(ctx, text,
		a.Config.Translate.SourceLanguage.String(), rs.TargetLanguage, a.Glossaries.Entries())
}

// Synonyms proposes alternatives for word in the target language, given the
// text around it. Repeated lookups for the same spot are served from cache.
func (a *App) Synonyms(ctx context.Context, word, left, right string) ([]string, error) {
	prov, err := a.Provider()
	if err != nil {
		return nil, err
	}
	rs := a.Settings.GetRuntimeSettings()
	return a.thesaurus.Synonyms(ctx, prov, word, left, right, languageName(rs.TargetLanguage))
}

// Close saves the open document, stops the loop and closes the database.
func (a *App) Close(ctx context.Context) error {
	err := a.Session.Close(ctx)
	if errors.Is(err, session.ErrClosed) {
		err = nil
	}
	a.Loop.Close()
	return multierr.Append(err, a.db.Close())
}
