package history

import (
	"context"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
)

// Revision is an immutable text snapshot.
type Revision struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// Store loads and saves the full revision list of one document.
type Store interface {
	LoadRevisions(ctx context.Context, key string) ([]Revision, error)
	SaveRevisions(ctx context.Context, key string, revisions []Revision) error
}

// History is a linear undo/redo timeline for one document. Appending while
// the cursor is behind the end discards the redo branch. Changes stay in
// memory until Flush.
//
// History is not safe for concurrent use; the editing session owns it.
type History struct {
	store Store
	key   string
	now   func() time.Time

	revisions []Revision
	cursor    int
	dirty     bool
}

type Option func(*History)

func WithClock(now func() time.Time) Option {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

// Open loads the revisions stored under key. The cursor points at the last
// revision, or -1 when there are none.
func Open(ctx context.Context, store Store, key string, opts ...Option) (*History, error) {
	h := &History{store: store, key: key, now: time.Now, cursor: -1}
	for _, opt := range opts {
		opt(h)
	}
	if store == nil {
		return h, nil
	}

	revs, err := store.LoadRevisions(ctx, key)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStorage, "load revisions").WithContext("key", key)
	}
	h.revisions = revs
	h.cursor = len(revs) - 1
	return h, nil
}

// Append records text as a new revision. Returns false when text equals the
// current revision.
func (h *History) Append(text string) bool {
	if h.cursor >= 0 && h.revisions[h.cursor].Text == text {
		return false
	}
	h.revisions = append(h.revisions[:h.cursor+1], Revision{Timestamp: h.now().UTC(), Text: text})
	h.cursor = len(h.revisions) - 1
	h.dirty = true
	return true
}

// Undo moves back one revision. ok is false at the oldest revision.
func (h *History) Undo() (string, bool) {
	if h.cursor <= 0 {
		return "", false
	}
	h.cursor--
	return h.revisions[h.cursor].Text, true
}

// Redo moves forward one revision. ok is false at the newest revision.
func (h *History) Redo() (string, bool) {
	if h.cursor >= len(h.revisions)-1 {
		return "", false
	}
	h.cursor++
	return h.revisions[h.cursor].Text, true
}

// Flush saves all revisions when there are unsaved appends. A failed save
// leaves the history dirty so Flush can be retried.
func (h *History) Flush(ctx context.Context) error {
	if !h.dirty || h.store == nil {
		return nil
	}
	if err := h.store.SaveRevisions(ctx, h.key, h.Revisions()); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "save revisions").WithContext("key", h.key)
	}
	h.dirty = false
	return nil
}

// Current returns the text at the cursor.
func (h *History) Current() (string, bool) {
	if h.cursor < 0 {
		return "", false
	}
	return h.revisions[h.cursor].Text, true
}

// First returns the oldest revision's text.
func (h *History) First() (string, bool) {
	if len(h.revisions) == 0 {
		return "", false
	}
	return h.revisions[0].Text, true
}

func (h *History) Len() int    { return len(h.revisions) }
func (h *History) Cursor() int { return h.cursor }
func (h *History) Dirty() bool { return h.dirty }

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.revisions)-1 }

// Revisions returns a copy of the timeline.
func (h *History) Revisions() []Revision {
	out := make([]Revision, len(h.revisions))
	copy(out, h.revisions)
	return out
}
