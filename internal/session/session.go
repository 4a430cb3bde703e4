package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/glossary"
	"github.com/MimeLyc/contextual-doc-translator/internal/highlight"
	"github.com/MimeLyc/contextual-doc-translator/internal/history"
	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
	"github.com/MimeLyc/contextual-doc-translator/internal/library"
	"github.com/MimeLyc/contextual-doc-translator/internal/project"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrTranslationInFlight rejects a translate request while the previous one is running.
	ErrTranslationInFlight = errors.New("a translation is already in progress")
	// ErrClosed is returned once the session's loop has been closed.
	ErrClosed = errors.New("session closed")
)

// Settings supplies the translation parameters current at request time.
type Settings interface {
	// Provider fails with an errs.ErrConfig error when the configured provider cannot be built.
	Provider() (provider.Provider, error)
	Prompt() string
}

// StaticSettings is a fixed Settings.
type StaticSettings struct {
	Translator   provider.Provider
	Instructions string
}

func (s StaticSettings) Provider() (provider.Provider, error) {
	if s.Translator == nil {
		return nil, errs.New(errs.ErrConfig, "no translation provider configured")
	}
	return s.Translator, nil
}

func (s StaticSettings) Prompt() string { return s.Instructions }

type options struct {
	library      *library.Library
	historyStore history.Store
	batchStore   jobs.Store
	events       Events
	glossary     func() glossary.Entries
	projects     *project.Manager
	project      *project.Project
	debounce     time.Duration
	unit         highlight.Unit
	clock        func() time.Time
}

type Option func(*options)

func WithLibrary(lib *library.Library) Option {
	return func(o *options) { o.library = lib }
}

// WithHistoryStore persists revision history per chapter ref.
func WithHistoryStore(store history.Store) Option {
	return func(o *options) { o.historyStore = store }
}

func WithBatchStore(store jobs.Store) Option {
	return func(o *options) { o.batchStore = store }
}

func WithEvents(events Events) Option {
	return func(o *options) { o.events = events }
}

// WithGlossary sets the source of glossary entries; only entries whose term
// occurs in the source text are sent with a job.
func WithGlossary(fn func() glossary.Entries) Option {
	return func(o *options) { o.glossary = fn }
}

// WithProject records translated chapters in p and adds the overview of
// earlier chapters to each prompt.
func WithProject(m *project.Manager, p *project.Project) Option {
	return func(o *options) {
		o.projects = m
		o.project = p
	}
}

func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

func WithHighlightUnit(u highlight.Unit) Option {
	return func(o *options) { o.unit = u }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Snapshot is a read model of the session for API responses.
type Snapshot struct {
	Ref         string                  `json:"ref"`
	Source      string                  `json:"source"`
	Text        string                  `json:"text"`
	Revisions   int                     `json:"revisions"`
	Cursor      int                     `json:"cursor"`
	CanUndo     bool                    `json:"can_undo"`
	CanRedo     bool                    `json:"can_redo"`
	Dirty       bool                    `json:"dirty"`
	Pending     bool                    `json:"pending"`
	Translating bool                    `json:"translating"`
	Baseline    string                  `json:"baseline"`
	Ranges      []highlight.ChangeRange `json:"ranges"`
	Batch       jobs.State              `json:"batch"`
}

// Session is the editing session of one document at a time. Its exported
// methods may be called from any goroutine except the loop itself; state
// changes all happen on the loop.
type Session struct {
	loop      *Loop
	runner    *jobs.Runner
	settings  Settings
	opts      options
	events    Events
	debouncer *Debouncer
	scheduler *jobs.Scheduler

	// Owned by the loop.
	ref         string
	source      string
	text        string
	hist        *history.History
	hl          *highlight.Highlighter
	ranges      []highlight.ChangeRange
	translating bool
}

func New(loop *Loop, runner *jobs.Runner, settings Settings, opts ...Option) *Session {
	o := options{
		debounce: DefaultDebounce,
		unit:     highlight.Graphemes,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		loop:     loop,
		runner:   runner,
		settings: settings,
		opts:     o,
		events:   o.events,
		hl:       highlight.New(o.unit),
		ranges:   []highlight.ChangeRange{},
	}
	if s.events == nil {
		s.events = NopEvents{}
	}
	s.hist, _ = history.Open(context.Background(), nil, "", history.WithClock(o.clock))
	s.debouncer = NewDebouncer(o.debounce, loop, s.commit)

	schedOpts := []jobs.SchedulerOption{}
	if o.batchStore != nil {
		schedOpts = append(schedOpts, jobs.WithStore(o.batchStore))
	}
	schedOpts = append(schedOpts, jobs.WithOnIdle(func() { log.Debug("Batch queue is idle") }))
	s.scheduler = jobs.NewScheduler(runner, &batchHandler{s: s}, loop, schedOpts...)
	return s
}

// Scheduler exposes the batch scheduler for listing items.
func (s *Session) Scheduler() *jobs.Scheduler { return s.scheduler }

// OnTextChanged records an edit. The revision and highlight update follow once
// the debounce delay passes without another edit.
func (s *Session) OnTextChanged(text string) {
	s.loop.Post(func() {
		s.text = text
		s.debouncer.Trigger(text)
	})
}

// OnTranslateRequested starts a translation of the current source text.
// Configuration errors are returned before any job exists; the outcome of the
// job arrives through Events.
func (s *Session) OnTranslateRequested() error {
	var err error
	if !s.loop.Do(func() { err = s.startTranslation() }) {
		return ErrClosed
	}
	return err
}

// OnBatchRequested queues refs for batch translation. With no refs, every
// chapter without a translation is queued.
func (s *Session) OnBatchRequested(ctx context.Context, refs []string) ([]*jobs.BatchItem, error) {
	if len(refs) == 0 {
		if s.opts.library == nil {
			return nil, errs.New(errs.ErrConfig, "no chapter library configured")
		}
		pending, err := s.opts.library.Untranslated(ctx)
		if err != nil {
			return nil, err
		}
		refs = pending
	}

	var items []*jobs.BatchItem
	if !s.loop.Do(func() { items = s.scheduler.Start(refs) }) {
		return nil, ErrClosed
	}
	return items, nil
}

// ResumeBatch re-queues batch items left pending by a previous run.
func (s *Session) ResumeBatch() int {
	n := 0
	s.loop.Do(func() { n = s.scheduler.Resume() })
	return n
}

// OnUndoRequested steps back one revision. A pending edit is committed first.
func (s *Session) OnUndoRequested() (string, bool) {
	return s.step((*history.History).Undo)
}

// OnRedoRequested steps forward one revision.
func (s *Session) OnRedoRequested() (string, bool) {
	return s.step((*history.History).Redo)
}

func (s *Session) step(move func(*history.History) (string, bool)) (string, bool) {
	var (
		text string
		ok   bool
	)
	s.loop.Do(func() {
		s.debouncer.Flush()
		text, ok = move(s.hist)
		if ok {
			s.text = text
			s.publishRanges()
		}
	})
	return text, ok
}

// OpenChapter saves the current document and switches to ref: the source
// text is loaded from the library and the translation history from the store.
// With stored history the baseline is the first revision.
func (s *Session) OpenChapter(ctx context.Context, ref string) error {
	if s.opts.library == nil {
		return errs.New(errs.ErrConfig, "no chapter library configured")
	}
	source, err := s.opts.library.Load(ctx, ref)
	if err != nil {
		return err
	}

	var openErr error
	if !s.loop.Do(func() { openErr = s.open(ctx, ref, source) }) {
		return ErrClosed
	}
	return openErr
}

func (s *Session) open(ctx context.Context, ref, source string) error {
	s.debouncer.Flush()
	if err := s.flushHistory(ctx); err != nil {
		return err
	}

	h, err := history.Open(ctx, s.opts.historyStore, ref, history.WithClock(s.opts.clock))
	if err != nil {
		return err
	}

	if h.Len() == 0 {
		translated, ok, err := s.opts.library.LoadTranslation(ctx, ref)
		if err != nil {
			return err
		}
		if ok {
			h.Append(translated)
		}
	}

	// Nothing below fails, so a failed open leaves the current chapter intact.
	s.hl.Reset()
	if first, ok := h.First(); ok {
		s.hl.SetBaseline(first)
	}

	s.ref = ref
	s.source = source
	s.hist = h
	s.text, _ = h.Current()
	s.publishRanges()
	log.Info("Opened chapter %s (%d revisions)", ref, h.Len())
	return nil
}

// Flush commits a pending edit and saves unsaved revisions.
func (s *Session) Flush(ctx context.Context) error {
	var err error
	if !s.loop.Do(func() {
		s.debouncer.Flush()
		err = s.flushHistory(ctx)
	}) {
		return ErrClosed
	}
	return err
}

// Save writes unsaved revisions but leaves a pending edit to its debounce timer.
func (s *Session) Save(ctx context.Context) error {
	var err error
	if !s.loop.Do(func() { err = s.flushHistory(ctx) }) {
		return ErrClosed
	}
	return err
}

func (s *Session) flushHistory(ctx context.Context) error {
	if err := s.hist.Flush(ctx); err != nil {
		flushFailures.Inc()
		errs.Report(err)
		return err
	}
	return nil
}

// Close saves pending work and stops the debounce timer. The loop stays open.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.debouncer.Cancel()
	return err
}

func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.loop.Do(func() {
		baseline, _ := s.hl.Baseline()
		snap = Snapshot{
			Ref:         s.ref,
			Source:      s.source,
			Text:        s.text,
			Revisions:   s.hist.Len(),
			Cursor:      s.hist.Cursor(),
			CanUndo:     s.hist.CanUndo(),
			CanRedo:     s.hist.CanRedo(),
			Dirty:       s.hist.Dirty(),
			Pending:     s.debouncer.Pending(),
			Translating: s.translating,
			Baseline:    baseline,
			Ranges:      append([]highlight.ChangeRange{}, s.ranges...),
			Batch:       s.scheduler.State(),
		}
	})
	return snap
}

// SetSource replaces the source text for documents not backed by the library.
func (s *Session) SetSource(text string) {
	s.loop.Post(func() { s.source = text })
}

// commit runs when the debounce delay passes: one revision append and one
// highlight recompute for the latest text.
func (s *Session) commit(text string) {
	if base, ok := s.hl.Baseline(); (!ok || base == "") && text != "" {
		s.hl.SetBaseline(text)
	}
	appended := s.hist.Append(text)
	commitsTotal.WithLabelValues(strconv.FormatBool(appended)).Inc()
	s.text = text
	s.publishRanges()
}

func (s *Session) publishRanges() {
	start := time.Now()
	s.ranges = s.hl.Recompute(s.text)
	highlightDuration.Observe(time.Since(start).Seconds())
	s.events.OnHighlightRanges(append([]highlight.ChangeRange{}, s.ranges...))
}

func (s *Session) startTranslation() error {
	if s.translating {
		return ErrTranslationInFlight
	}
	if strings.TrimSpace(s.source) == "" {
		return errs.New(errs.ErrValidation, "nothing to translate")
	}
	job, err := s.buildJob(s.ref, s.source)
	if err != nil {
		return err
	}

	s.translating = true
	ref := s.ref
	s.runner.Run(context.Background(), job, func(res jobs.Result) {
		s.loop.Post(func() { s.translationDone(ref, res) })
	})
	return nil
}

func (s *Session) translationDone(ref string, res jobs.Result) {
	s.translating = false
	if !res.OK() {
		errs.Report(res.Err)
		s.events.OnTranslationFailed(res.Err)
		return
	}

	if ref != s.ref {
		// The user moved to another chapter; keep the result in that chapter's history.
		if err := s.appendToStored(context.Background(), ref, res.Text); err != nil {
			s.events.OnTranslationFailed(err)
			return
		}
		log.Info("Stored translation of %s after the chapter was closed", ref)
		s.events.OnTranslationStored(ref)
		return
	}

	s.applyText(res.Text)
	s.events.OnTranslationComplete(res.Text)
}

// applyText makes text the current revision of the open document.
func (s *Session) applyText(text string) {
	s.debouncer.Flush()
	if base, ok := s.hl.Baseline(); (!ok || base == "") && text != "" {
		s.hl.SetBaseline(text)
	}
	s.hist.Append(text)
	s.text = text
	s.publishRanges()
}

func (s *Session) appendToStored(ctx context.Context, ref, text string) error {
	h, err := history.Open(ctx, s.opts.historyStore, ref, history.WithClock(s.opts.clock))
	if err != nil {
		return err
	}
	h.Append(text)
	return h.Flush(ctx)
}

// buildJob resolves the provider first so configuration errors never produce a job.
func (s *Session) buildJob(ref, source string) (jobs.Job, error) {
	p, err := s.settings.Provider()
	if err != nil {
		if !errs.IsErrorType(err, errs.ErrConfig) {
			err = errs.Wrap(err, errs.ErrConfig, "translation provider unavailable")
		}
		return jobs.Job{}, err
	}

	var terms glossary.Entries
	if s.opts.glossary != nil {
		terms = glossary.Match(s.opts.glossary(), source)
	}

	return jobs.Job{
		Ref:        ref,
		SourceText: source,
		Prompt:     s.composePrompt(ref),
		Glossary:   terms,
		Provider:   p,
	}, nil
}

func (s *Session) composePrompt(ref string) string {
	parts := make([]string, 0, 2)
	if base := strings.TrimSpace(s.settings.Prompt()); base != "" {
		parts = append(parts, base)
	}
	if s.opts.project != nil {
		upto := len(s.opts.project.Chapters)
		for i, ch := range s.opts.project.Chapters {
			if ch.Name == ref {
				upto = i
				break
			}
		}
		if overview := project.Overview(s.opts.project, upto); overview != "" {
			parts = append(parts, "Previous chapters:\n"+overview)
		}
	}
	return strings.Join(parts, "\n\n")
}
