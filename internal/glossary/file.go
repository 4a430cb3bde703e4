package glossary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/contextual-doc-translator/pkg/file"
)

// Filename returns the project glossary filename for a language pair, using
// 2-letter base codes (e.g. "glossary.en-fr.json").
func Filename(sourceLang, targetLang string) string {
	return "glossary." + normalizeLanguageCode(sourceLang) + "-" + normalizeLanguageCode(targetLang) + ".json"
}

// FindInAncestors walks up from startDir looking for the language-pair
// glossary. Returns the closest path or "".
func FindInAncestors(startDir, sourceLang, targetLang string) string {
	filename := Filename(sourceLang, targetLang)
	currentDir := startDir

	for {
		candidate := filepath.Join(currentDir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

func formatOf(path string) (format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, true
	case ".yaml", ".yml":
		return formatYAML, true
	case ".toml":
		return formatTOML, true
	default:
		return formatJSON, false
	}
}

func (f format) unmarshal(data []byte, v any) error {
	switch f {
	case formatYAML:
		return yaml.Unmarshal(data, v)
	case formatTOML:
		return toml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func (f format) marshal(g *Glossary) ([]byte, error) {
	switch f {
	case formatYAML:
		return yaml.Marshal(g)
	case formatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(g); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(g, "", "  ")
	}
}

// Load reads a glossary from JSON, YAML or TOML (by extension). A flat
// {"source": "target"} document is accepted as entries of a glossary named
// after the file.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, _ := formatOf(path)
	unmarshal := f.unmarshal

	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse glossary %s: %w", filepath.Base(path), err)
	}

	g := &Glossary{}
	if _, structured := raw["entries"]; structured {
		if err := unmarshal(data, g); err != nil {
			return nil, fmt.Errorf("parse glossary %s: %w", filepath.Base(path), err)
		}
	} else {
		var flat Entries
		if err := unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parse glossary %s: %w", filepath.Base(path), err)
		}
		g.Entries = flat
	}

	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if g.Entries == nil {
		g.Entries = make(Entries)
	}
	g.path = path
	return g, nil
}

// Save writes g to path, or to the file it was loaded from when path is "".
func Save(path string, g *Glossary) error {
	if path == "" {
		path = g.path
	}
	if path == "" {
		return fmt.Errorf("path must be provided for unsaved glossary %q", g.Name)
	}

	f, _ := formatOf(path)
	data, err := f.marshal(g)
	if err != nil {
		return err
	}

	if err := file.WriteAtomic(path, data, 0o644); err != nil {
		return err
	}
	g.path = path
	return nil
}

// List returns the glossary files in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := formatOf(e.Name()); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every glossary in dir. Unreadable files are returned as errors
// alongside the glossaries that did load.
func LoadDir(dir string) ([]*Glossary, error) {
	paths, err := List(dir)
	if err != nil {
		return nil, err
	}

	var (
		out     []*Glossary
		loadErr error
	)
	for _, p := range paths {
		g, err := Load(p)
		if err != nil {
			loadErr = multierr.Append(loadErr, err)
			continue
		}
		out = append(out, g)
	}
	return out, loadErr
}

// Create writes a new empty glossary to <dir>/<name>.json.
func Create(dir, name string) (*Glossary, error) {
	g := New(name)
	if err := Save(filepath.Join(dir, name+".json"), g); err != nil {
		return nil, err
	}
	return g, nil
}

func Rename(path, newName string) (string, error) {
	newPath := filepath.Join(filepath.Dir(path), newName+filepath.Ext(path))
	if err := os.Rename(path, newPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return newPath, nil
}

func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
