package service

import (
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/glossary"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// GlossarySet holds the merged auto-to-prompt entries of every glossary in a
// directory plus any included project glossary files.
type GlossarySet struct {
	dir string

	mu       sync.RWMutex
	included []string
	items    []*glossary.Glossary
	merged   glossary.Entries
}

func NewGlossarySet(dir string) *GlossarySet {
	return &GlossarySet{dir: dir, merged: glossary.Entries{}}
}

func (g *GlossarySet) Dir() string { return g.dir }

// Include adds glossary files outside the directory to every reload. Empty
// paths are ignored.
func (g *GlossarySet) Include(paths ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			g.included = append(g.included, p)
		}
	}
}

// Reload rereads the directory. Files that fail to parse are skipped and
// reported in the returned error; the rest are still applied.
func (g *GlossarySet) Reload() error {
	items, err := glossary.LoadDir(g.dir)

	g.mu.RLock()
	included := append([]string(nil), g.included...)
	g.mu.RUnlock()
	for _, p := range included {
		item, loadErr := glossary.Load(p)
		if loadErr != nil {
			log.Warn("Project glossary %s not loaded: %v", p, loadErr)
			continue
		}
		items = append(items, item)
	}
	merged := glossary.Merge(items...)

	g.mu.Lock()
	g.items = items
	g.merged = merged
	g.mu.Unlock()

	log.Info("Loaded %d glossaries (%d prompt entries) from %s", len(items), len(merged), g.dir)
	if err != nil {
		log.Warn("Some glossaries failed to load: %v", err)
	}
	return err
}

// Entries returns a copy of the merged entries.
func (g *GlossarySet) Entries() glossary.Entries {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.merged)
}

func (g *GlossarySet) Glossaries() []*glossary.Glossary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*glossary.Glossary(nil), g.items...)
}

func (g *GlossarySet) find(name string) *glossary.Glossary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, item := range g.items {
		if item.Name == name {
			return item
		}
	}
	return nil
}

func validGlossaryName(name string) error {
	if strings.TrimSpace(name) == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return errs.Newf(errs.ErrValidation, "invalid glossary name %q", name)
	}
	return nil
}

// AddEntries stores entries in the named glossary, creating it as an
// auto-to-prompt JSON file in the directory when it does not exist yet.
func (g *GlossarySet) AddEntries(name string, entries glossary.Entries) error {
	if err := validGlossaryName(name); err != nil {
		return err
	}
	return g.edit(name, true, func(item *glossary.Glossary) {
		for source, target := range entries {
			if strings.TrimSpace(source) != "" && strings.TrimSpace(target) != "" {
				item.Add(source, target)
			}
		}
	})
}

// RemoveEntry deletes source from the named glossary.
func (g *GlossarySet) RemoveEntry(name, source string) error {
	return g.edit(name, false, func(item *glossary.Glossary) {
		item.Remove(source)
	})
}

func (g *GlossarySet) edit(name string, create bool, apply func(*glossary.Glossary)) error {
	item := g.find(name)
	if item == nil {
		if !create {
			return errs.Newf(errs.ErrValidation, "glossary %q not found", name)
		}
		created, err := glossary.Create(g.dir, name)
		if err != nil {
			return errs.Wrap(err, errs.ErrStorage, "create glossary").WithContext("name", name)
		}
		created.AutoToPrompt = true
		item = created
	}

	// Edit a fresh copy so a failed save leaves the loaded set untouched.
	fresh, err := glossary.Load(item.Path())
	if err != nil {
		return errs.Wrap(err, errs.ErrStorage, "read glossary").WithContext("name", name)
	}
	if item.AutoToPrompt {
		fresh.AutoToPrompt = true
	}
	apply(fresh)
	if err := glossary.Save("", fresh); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "save glossary").WithContext("name", name)
	}
	g.reloadQuiet()
	return nil
}

// Rename changes a glossary's name and file name.
func (g *GlossarySet) Rename(name, newName string) error {
	if err := validGlossaryName(newName); err != nil {
		return err
	}
	item := g.find(name)
	if item == nil {
		return errs.Newf(errs.ErrValidation, "glossary %q not found", name)
	}
	newPath, err := glossary.Rename(item.Path(), newName)
	if err != nil {
		return errs.Wrap(err, errs.ErrStorage, "rename glossary").WithContext("name", name)
	}
	renamed, err := glossary.Load(newPath)
	if err != nil {
		return errs.Wrap(err, errs.ErrStorage, "read glossary").WithContext("name", newName)
	}
	renamed.Name = newName
	if err := glossary.Save("", renamed); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "save glossary").WithContext("name", newName)
	}
	g.reloadQuiet()
	return nil
}

// Delete removes the named glossary file.
func (g *GlossarySet) Delete(name string) error {
	item := g.find(name)
	if item == nil {
		return errs.Newf(errs.ErrValidation, "glossary %q not found", name)
	}
	if err := glossary.Delete(item.Path()); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "delete glossary").WithContext("name", name)
	}
	g.reloadQuiet()
	return nil
}

// reloadQuiet reloads after an edit. Parse errors in other files were already
// reported by earlier reloads and do not fail the edit.
func (g *GlossarySet) reloadQuiet() {
	if err := g.Reload(); err != nil {
		log.Debug("Glossary reload after edit: %v", err)
	}
}

