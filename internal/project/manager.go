package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/pkg/file"
	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const (
	metadataFile = "project.json"
	maxPlotRunes = 200
)

// Manager loads and saves projects below a base directory, one subdirectory per project.
type Manager struct {
	baseDir string
	mu      sync.Mutex
	now     func() time.Time
}

func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir, now: time.Now}
}

// NewID returns a fresh project identifier.
func NewID() string {
	return uuid.NewString()
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.baseDir, id, metadataFile)
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// Load reads a project, or returns a new unsaved one when it does not exist yet.
func (m *Manager) Load(id, title string) (*Project, error) {
	if !validID(id) {
		return nil, errs.Newf(errs.ErrValidation, "invalid project id %q", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			if title == "" {
				title = id
			}
			now := m.now()
			return &Project{ID: id, Title: title, Chapters: []Chapter{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		return nil, errs.Wrap(err, errs.ErrStorage, "read project").WithContext("id", id)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(err, errs.ErrStorage, "decode project").WithContext("id", id)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.Chapters == nil {
		p.Chapters = []Chapter{}
	}
	return &p, nil
}

// Save writes the project metadata atomically.
func (m *Manager) Save(p *Project) error {
	if p == nil || !validID(p.ID) {
		return errs.New(errs.ErrValidation, "project without a valid id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(p)
}

func (m *Manager) saveLocked(p *Project) error {
	p.UpdatedAt = m.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.ErrStorage, "encode project").WithContext("id", p.ID)
	}
	if err := file.WriteAtomic(m.path(p.ID), data, 0o644); err != nil {
		return errs.Wrap(err, errs.ErrStorage, "write project").WithContext("id", p.ID)
	}
	return nil
}

// AddChapter extracts metadata from text, records it under name and saves the project.
// A chapter with the same name is replaced in place.
func (m *Manager) AddChapter(p *Project, name, text string) (Chapter, error) {
	if p == nil || !validID(p.ID) {
		return Chapter{}, errs.New(errs.ErrValidation, "project without a valid id")
	}
	ch := ExtractMetadata(name, text)

	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := false
	for i := range p.Chapters {
		if p.Chapters[i].Name == name {
			p.Chapters[i] = ch
			replaced = true
			break
		}
	}
	if !replaced {
		p.Chapters = append(p.Chapters, ch)
	}
	if err := m.saveLocked(p); err != nil {
		return Chapter{}, err
	}
	log.Debug("Project %s: recorded chapter %s (%d names, language %q)", p.ID, name, len(ch.Names), ch.Language)
	return ch, nil
}

// List returns the ids of saved projects in lexical order.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errs.Wrap(err, errs.ErrStorage, "list projects")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(m.path(e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Overview summarises the chapters before index upto, one "name: plot" line each.
func Overview(p *Project, upto int) string {
	if p == nil {
		return ""
	}
	if upto < 0 {
		upto = 0
	}
	if upto > len(p.Chapters) {
		upto = len(p.Chapters)
	}
	lines := make([]string, 0, upto)
	for _, ch := range p.Chapters[:upto] {
		lines = append(lines, ch.Name+": "+ch.Plot)
	}
	return strings.Join(lines, "\n")
}

// ExtractMetadata collects capitalised words as names and the first line as plot.
func ExtractMetadata(name, text string) Chapter {
	seen := map[string]bool{}
	names := []string{}
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if isTitleWord(w) && !seen[w] {
			seen[w] = true
			names = append(names, w)
		}
	}
	sort.Strings(names)

	plot := ""
	if text != "" {
		plot = strings.SplitN(text, "\n", 2)[0]
		plot = strings.TrimRight(plot, "\r")
		if utf8.RuneCountInString(plot) > maxPlotRunes {
			plot = string([]rune(plot)[:maxPlotRunes])
		}
	}

	lang := ""
	if strings.TrimSpace(text) != "" {
		lang = whatlanggo.DetectLang(text).Iso6391()
	}

	return Chapter{
		Name:      name,
		Names:     names,
		Locations: []string{},
		Plot:      plot,
		Language:  lang,
	}
}

func isTitleWord(w string) bool {
	first, size := utf8.DecodeRuneInString(w)
	if first == utf8.RuneError || !unicode.IsUpper(first) {
		return false
	}
	for _, r := range w[size:] {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
