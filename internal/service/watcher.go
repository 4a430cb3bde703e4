package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/library"
	"github.com/MimeLyc/contextual-doc-translator/internal/session"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const defaultSettleDelay = 200 * time.Millisecond

// Watcher follows the source and glossary directories. Edits to the open
// chapter's source refresh the session; glossary edits reload the glossary set.
type Watcher struct {
	fsw        *fsnotify.Watcher
	sess       *session.Session
	lib        *library.Library
	glossaries *GlossarySet
	settle     time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func NewWatcher(sess *session.Session, lib *library.Library, glossaries *GlossarySet) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStorage, "create watcher")
	}
	w := &Watcher{
		fsw:        fsw,
		sess:       sess,
		lib:        lib,
		glossaries: glossaries,
		settle:     defaultSettleDelay,
		pending:    make(map[string]struct{}),
	}

	if err := w.addTree(lib.SourceDir()); err != nil {
		fsw.Close()
		return nil, err
	}
	if glossaries != nil {
		if err := os.MkdirAll(glossaries.Dir(), 0o755); err == nil {
			if err := fsw.Add(glossaries.Dir()); err != nil {
				log.Warn("Cannot watch glossaries in %s: %v", glossaries.Dir(), err)
			}
		}
	}
	return w, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return errs.Wrap(err, errs.ErrStorage, "watch source").WithContext("path", p)
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errs.Wrap(err, errs.ErrStorage, "watch source").WithContext("path", p)
		}
		return nil
	})
}

// Run handles events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log.Info("Watching %s for changes", w.lib.SourceDir())

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				errs.Report(err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}

	// Editors write in several steps; act once the path has been quiet.
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[ev.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() { w.process(ctx) })
}

func (w *Watcher) process(ctx context.Context) {
	w.mu.Lock()
	paths := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	reloadGlossaries := false
	for p := range paths {
		if w.glossaries != nil && filepath.Dir(p) == filepath.Clean(w.glossaries.Dir()) {
			reloadGlossaries = true
			continue
		}
		ref, ok := w.lib.Ref(p)
		if !ok {
			continue
		}
		w.refreshSource(ctx, ref)
	}
	if reloadGlossaries {
		if err := w.glossaries.Reload(); err != nil {
			errs.Report(errs.Wrap(err, errs.ErrStorage, "reload glossaries"))
		}
	}
}

func (w *Watcher) refreshSource(ctx context.Context, ref string) {
	if w.sess.Snapshot().Ref != ref {
		log.Debug("Source of %s changed", ref)
		return
	}
	source, err := w.lib.Load(ctx, ref)
	if err != nil {
		errs.Report(err)
		return
	}
	w.sess.SetSource(source)
	log.Info("Reloaded source of open chapter %s", ref)
}
