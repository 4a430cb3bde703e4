package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/text/language"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/pkg/file"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

var defaultExtensions = []string{".txt", ".md"}

type options struct {
	fs         afero.Fs
	extensions []string
}

type Option func(*options)

// WithFs swaps the filesystem, mostly for tests with afero.NewMemMapFs.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithExtensions overrides the recognised chapter extensions.
func WithExtensions(exts ...string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// Library maps chapter refs to source files and their translations.
// A ref is the slash separated path of the chapter relative to the source directory.
type Library struct {
	fs         afero.Fs
	extensions map[string]bool

	mu        sync.RWMutex
	sourceDir string
	outputDir string
	lang      string
}

// New creates a library over sourceDir. Translations are written to outputDir,
// or next to the sources when outputDir is empty, with the target language inserted
// before the extension.
func New(sourceDir, outputDir, lang string, opts ...Option) *Library {
	o := options{
		fs:         afero.NewOsFs(),
		extensions: defaultExtensions,
	}
	for _, opt := range opts {
		opt(&o)
	}

	exts := make(map[string]bool, len(o.extensions))
	for _, ext := range o.extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	return &Library{
		fs:         o.fs,
		extensions: exts,
		sourceDir:  filepath.Clean(sourceDir),
		outputDir:  outputDir,
		lang:       normalizeLang(lang),
	}
}

func normalizeLang(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(lang))
	}
	base, _ := tag.Base()
	return base.String()
}

func (l *Library) SourceDir() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sourceDir
}

func (l *Library) TargetLanguage() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}

// UpdateTargetLanguage changes the suffix used for translation files.
func (l *Library) UpdateTargetLanguage(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return errs.Wrap(err, errs.ErrConfig, "invalid target language").WithContext("language", lang)
	}
	base, _ := tag.Base()

	l.mu.Lock()
	l.lang = base.String()
	l.mu.Unlock()
	return nil
}

// Chapters lists every chapter under the source directory in natural order.
func (l *Library) Chapters(ctx context.Context) ([]Chapter, error) {
	l.mu.RLock()
	root, lang := l.sourceDir, l.lang
	l.mu.RUnlock()

	var chapters []Chapter
	err := afero.Walk(l.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := info.Name()
		if strings.HasPrefix(name, ".") && p != root {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !l.isChapterFile(name, lang) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		ref := filepath.ToSlash(rel)
		out := l.outputPath(ref)
		chapters = append(chapters, Chapter{
			Ref:        ref,
			Title:      strings.TrimSuffix(name, filepath.Ext(name)),
			Path:       p,
			OutputPath: out,
			Translated: l.exists(out),
			Size:       info.Size(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.ErrStorage, "scan chapters").WithContext("dir", root)
	}

	sort.Slice(chapters, func(i, j int) bool {
		return naturalLess(chapters[i].Ref, chapters[j].Ref)
	})
	log.Debug("Scanned %d chapters in %s", len(chapters), root)
	return chapters, nil
}

// Untranslated returns the refs of chapters without a translation file, in natural order.
func (l *Library) Untranslated(ctx context.Context) ([]string, error) {
	chapters, err := l.Chapters(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		if !ch.Translated {
			refs = append(refs, ch.Ref)
		}
	}
	return refs, nil
}

// Load reads the source text of a chapter.
func (l *Library) Load(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := l.resolve(ref)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.Wrap(ErrNoChapter, errs.ErrValidation, "load chapter").WithContext("ref", ref)
		}
		return "", errs.Wrap(err, errs.ErrStorage, "load chapter").WithContext("ref", ref)
	}
	return string(data), nil
}

// LoadTranslation reads the saved translation of a chapter. The bool is false when
// none has been written yet.
func (l *Library) LoadTranslation(ctx context.Context, ref string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if _, err := l.resolve(ref); err != nil {
		return "", false, err
	}
	data, err := afero.ReadFile(l.fs, l.outputPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, errs.ErrStorage, "load translation").WithContext("ref", ref)
	}
	return string(data), true, nil
}

// SaveTranslation atomically writes text as the translation of ref and returns the written path.
func (l *Library) SaveTranslation(ctx context.Context, ref, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := l.resolve(ref); err != nil {
		return "", err
	}
	out := l.outputPath(ref)
	if err := writeAtomic(l.fs, out, []byte(text)); err != nil {
		return "", errs.Wrap(err, errs.ErrStorage, "save translation").
			WithContext("ref", ref).
			WithContext("path", out)
	}
	log.Info("Saved translation of %s to %s", ref, out)
	return out, nil
}

// Ref maps a file path under the source directory to its chapter ref. The bool
// is false for paths outside the directory and for non-chapter files.
func (l *Library) Ref(p string) (string, bool) {
	l.mu.RLock()
	root, lang := l.sourceDir, l.lang
	l.mu.RUnlock()

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if !l.isChapterFile(filepath.Base(p), lang) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (l *Library) resolve(ref string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(ref, "\\", "/"))
	if strings.TrimSpace(ref) == "" || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", errs.Newf(errs.ErrValidation, "invalid chapter ref %q", ref)
	}
	if !l.extensions[strings.ToLower(path.Ext(clean))] {
		return "", errs.Newf(errs.ErrValidation, "unsupported chapter type %q", path.Ext(clean)).WithContext("ref", ref)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return filepath.Join(l.sourceDir, filepath.FromSlash(clean)), nil
}

func (l *Library) outputPath(ref string) string {
	l.mu.RLock()
	dir, lang := l.outputDir, l.lang
	if dir == "" {
		dir = l.sourceDir
	}
	l.mu.RUnlock()
	return filepath.Join(dir, file.WithSuffix(filepath.FromSlash(path.Clean(ref)), lang))
}

func (l *Library) isChapterFile(name, lang string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if !l.extensions[ext] {
		return false
	}
	// Translations written next to their sources are not chapters themselves.
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return lang == "" || !strings.HasSuffix(strings.ToLower(stem), "."+lang)
}

func (l *Library) exists(p string) bool {
	ok, err := afero.Exists(l.fs, p)
	return err == nil && ok
}

func writeAtomic(fs afero.Fs, p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, p); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
