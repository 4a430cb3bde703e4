package session

import (
	"context"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/jobs"
)

// batchHandler connects the scheduler to the library, the history store and
// the project. The scheduler calls it on the loop.
type batchHandler struct {
	s *Session
}

var _ jobs.Handler = (*batchHandler)(nil)

func (h *batchHandler) Build(ref string) (jobs.Job, error) {
	lib := h.s.opts.library
	if lib == nil {
		return jobs.Job{}, errs.New(errs.ErrConfig, "no chapter library configured")
	}
	source, err := lib.Load(context.Background(), ref)
	if err != nil {
		return jobs.Job{}, err
	}
	return h.s.buildJob(ref, source)
}

// Succeeded writes the translation file, records it in the ref's history and
// the project. Completion is only reported once all of that is stored.
func (h *batchHandler) Succeeded(ref string, res jobs.Result) error {
	s := h.s
	ctx := context.Background()

	if _, err := s.opts.library.SaveTranslation(ctx, ref, res.Text); err != nil {
		return err
	}

	if ref == s.ref {
		s.applyText(res.Text)
		if err := s.flushHistory(ctx); err != nil {
			return err
		}
	} else if err := s.appendToStored(ctx, ref, res.Text); err != nil {
		return err
	}

	if s.opts.projects != nil && s.opts.project != nil {
		if _, err := s.opts.projects.AddChapter(s.opts.project, ref, res.Text); err != nil {
			return err
		}
	}

	s.events.OnBatchItemComplete(ref, res.Text)
	return nil
}

func (h *batchHandler) Failed(ref string, err error) {
	errs.Report(err)
	h.s.events.OnBatchItemFailed(ref, err)
}
