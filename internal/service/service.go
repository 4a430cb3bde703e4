package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/contextual-doc-translator/internal/config"
	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/library"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/icron"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

type runtimeSettings interface {
	GetRuntimeSettings() config.RuntimeSettings
}

// Scheduler runs the periodic work of a session: autosave of the open
// document's history and, when configured, batch translation of every chapter
// that has none yet.
type Scheduler struct {
	sess     *session.Session
	lib      *library.Library
	settings runtimeSettings
	cron     *cron.Cron
	now      func() time.Time

	group singleflight.Group

	mu            sync.Mutex
	ctx           context.Context
	autosave      cronEntry
	autoBatch     cronEntry
	lastAutosave  time.Time
	lastAutoBatch time.Time
}

type cronEntry struct {
	expr string
	id   cron.EntryID
}

// ScheduleInfo describes the registered schedules.
type ScheduleInfo struct {
	Autosave      *icron.TriggerInfo `json:"autosave,omitempty"`
	AutoBatch     *icron.TriggerInfo `json:"auto_batch,omitempty"`
	LastAutosave  time.Time          `json:"last_autosave,omitempty"`
	LastAutoBatch time.Time          `json:"last_auto_batch,omitempty"`
}

func NewScheduler(sess *session.Session, lib *library.Library, settings runtimeSettings, c *cron.Cron) *Scheduler {
	return &Scheduler{
		sess:     sess,
		lib:      lib,
		settings: settings,
		cron:     c,
		now:      time.Now,
		ctx:      context.Background(),
	}
}

// Schedule registers the cron entries for the current settings. Jobs run
// with ctx.
func (s *Scheduler) Schedule(ctx context.Context) error {
	log.Info("Schedule session jobs")
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	return s.Reschedule(s.settings.GetRuntimeSettings())
}

// Reschedule replaces entries whose expression changed. An empty expression
// removes the entry.
func (s *Scheduler) Reschedule(rs config.RuntimeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setEntryLocked(&s.autosave, rs.AutosaveCron, s.runAutosave); err != nil {
		return errs.Wrap(err, errs.ErrConfig, "schedule autosave")
	}
	if err := s.setEntryLocked(&s.autoBatch, rs.AutoBatchCron, s.runAutoBatch); err != nil {
		return errs.Wrap(err, errs.ErrConfig, "schedule auto batch")
	}
	return nil
}

func (s *Scheduler) setEntryLocked(e *cronEntry, expr string, fn func()) error {
	if e.expr == expr {
		return nil
	}
	if e.id != 0 {
		s.cron.Remove(e.id)
		log.Info("Removed schedule %q", e.expr)
	}
	*e = cronEntry{}
	if expr == "" {
		return nil
	}
	id, err := s.cron.AddFunc(expr, fn)
	if err != nil {
		return err
	}
	*e = cronEntry{expr: expr, id: id}
	log.Info("Scheduled %q", expr)
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) runAutosave() {
	if err := s.Autosave(s.jobContext()); err != nil {
		log.Error("Autosave failed: %v", err)
	}
}

func (s *Scheduler) runAutoBatch() {
	if _, err := s.AutoBatch(s.jobContext()); err != nil {
		log.Error("Auto batch failed: %v", err)
	}
}

// Autosave writes unsaved revisions of the open document.
func (s *Scheduler) Autosave(ctx context.Context) error {
	if err := s.sess.Save(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastAutosave = s.now()
	s.mu.Unlock()
	return nil
}

// AutoBatch queues every untranslated chapter. Concurrent calls share one scan.
func (s *Scheduler) AutoBatch(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("auto-batch", func() (any, error) {
		refs, err := s.lib.Untranslated(ctx)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		s.lastAutoBatch = s.now()
		s.mu.Unlock()
		if len(refs) == 0 {
			log.Debug("Auto batch: nothing to translate")
			return 0, nil
		}
		items, err := s.sess.OnBatchRequested(ctx, refs)
		if err != nil {
			return 0, err
		}
		log.Info("Auto batch queued %d chapters", len(items))
		return len(items), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Info reports the next and last activation of each registered schedule.
func (s *Scheduler) Info() ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	info := ScheduleInfo{LastAutosave: s.lastAutosave, LastAutoBatch: s.lastAutoBatch}
	if s.autosave.expr != "" {
		info.Autosave, _ = icron.GetTriggerInfo(s.autosave.expr, now)
	}
	if s.autoBatch.expr != "" {
		info.AutoBatch, _ = icron.GetTriggerInfo(s.autoBatch.expr, now)
	}
	return info
}
