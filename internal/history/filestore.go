package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/contextual-doc-translator/pkg/file"
)

// FileStore keeps one JSON file per key under Dir:
// [{"timestamp": "<RFC 3339>", "text": "..."}] in creation order.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Path maps key to its file. Path separators and other unsafe characters
// become underscores.
func (s *FileStore) Path(key string) string {
	name := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(key), "_")
	name = strings.Trim(name, ".")
	if name == "" {
		name = "_"
	}
	return filepath.Join(s.Dir, name+".history.json")
}

type fileRevision struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

func (s *FileStore) LoadRevisions(_ context.Context, key string) ([]Revision, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var raw []fileRevision
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(s.Path(key)), err)
	}

	revs := make([]Revision, 0, len(raw))
	for i, r := range raw {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("revision %d: invalid timestamp %q: %w", i, r.Timestamp, err)
		}
		revs = append(revs, Revision{Timestamp: ts, Text: r.Text})
	}
	return revs, nil
}

func (s *FileStore) SaveRevisions(_ context.Context, key string, revisions []Revision) error {
	raw := make([]fileRevision, 0, len(revisions))
	for _, r := range revisions {
		raw = append(raw, fileRevision{Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano), Text: r.Text})
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return file.WriteAtomic(s.Path(key), data, 0o644)
}
